package device

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openqlab/awgctl/internal/wave"
)

// Op identifies a simulator operation for fault injection.
type Op string

const (
	OpNewWaveform       Op = "new_waveform"
	OpDeleteWaveform    Op = "delete_waveform"
	OpSetSequenceEntry  Op = "set_sequence_entry"
	OpSetSequenceLength Op = "set_sequence_length"
	OpExec              Op = "exec"
)

type simWaveform struct {
	payload   wave.Payload
	timestamp string
}

// Simulator is an in-memory Instrument. It mimics the observable behavior
// the orchestrator depends on: a waveform catalog with device-supplied
// timestamps, a growable blank-initialized sequence table, and strict
// 1-based position checking. Not safe for concurrent use, matching the
// exclusively-owned-resource model of real instruments.
type Simulator struct {
	channels   int
	rate       float64
	amplitudes []float64

	waveforms map[string]simWaveform
	rows      []Row
	clock     int

	journal  []string
	failures map[Op]*faultPlan
}

type faultPlan struct {
	successes int // calls to let through before failing
	message   string
}

// NewSimulator builds a simulator with the given channel count, sample rate
// and per-channel amplitudes (one amplitude is replicated across channels).
func NewSimulator(channels int, rate float64, amplitudes ...float64) *Simulator {
	if len(amplitudes) == 1 && channels > 1 {
		amp := amplitudes[0]
		amplitudes = make([]float64, channels)
		for i := range amplitudes {
			amplitudes[i] = amp
		}
	}
	return &Simulator{
		channels:   channels,
		rate:       rate,
		amplitudes: amplitudes,
		waveforms:  map[string]simWaveform{},
		failures:   map[Op]*faultPlan{},
	}
}

// FailAfter arranges for op to succeed the given number of further times and
// then fail exactly once. FailAfter(op, 0) fails the very next call.
func (s *Simulator) FailAfter(op Op, successes int) {
	s.failures[op] = &faultPlan{
		successes: successes,
		message:   fmt.Sprintf("injected %s failure", op),
	}
}

// Journal returns every command the simulator has executed, in order.
func (s *Simulator) Journal() []string {
	return s.journal
}

func (s *Simulator) step(op Op, cmd string) error {
	s.journal = append(s.journal, cmd)
	if plan, ok := s.failures[op]; ok {
		if plan.successes > 0 {
			plan.successes--
			return nil
		}
		delete(s.failures, op)
		return fmt.Errorf("%s", plan.message)
	}
	return nil
}

func (s *Simulator) tick() string {
	s.clock++
	return fmt.Sprintf("t%06d", s.clock)
}

func (s *Simulator) WaveformNames() ([]string, error) {
	names := make([]string, 0, len(s.waveforms))
	for name := range s.waveforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Simulator) WaveformLength(name string) (int, error) {
	wf, ok := s.waveforms[name]
	if !ok {
		return 0, fmt.Errorf("unknown waveform %q", name)
	}
	return wf.payload.Len(), nil
}

func (s *Simulator) WaveformTimestamp(name string) (string, error) {
	wf, ok := s.waveforms[name]
	if !ok {
		return "", fmt.Errorf("unknown waveform %q", name)
	}
	return wf.timestamp, nil
}

func (s *Simulator) WaveformData(name string) (wave.Payload, error) {
	wf, ok := s.waveforms[name]
	if !ok {
		return wave.Payload{}, fmt.Errorf("unknown waveform %q", name)
	}
	return wf.payload, nil
}

func (s *Simulator) SequenceLength() (int, error) {
	return len(s.rows), nil
}

func (s *Simulator) SequenceEntry(pos int) (Row, error) {
	if pos < 1 || pos > len(s.rows) {
		return Row{}, fmt.Errorf("sequence position %d out of range [1, %d]", pos, len(s.rows))
	}
	return s.rows[pos-1], nil
}

func (s *Simulator) ChannelCount() (int, error) {
	return s.channels, nil
}

func (s *Simulator) SampleRate() (float64, error) {
	return s.rate, nil
}

func (s *Simulator) Amplitude(channel int) (float64, error) {
	if channel < 1 || channel > len(s.amplitudes) {
		return 0, fmt.Errorf("channel %d out of range [1, %d]", channel, len(s.amplitudes))
	}
	return s.amplitudes[channel-1], nil
}

func (s *Simulator) NewWaveform(name string, p wave.Payload) error {
	if err := s.step(OpNewWaveform, fmt.Sprintf("WLIS:WAV:NEW %q len=%d", name, p.Len())); err != nil {
		return err
	}
	if p.IsZero() {
		return fmt.Errorf("refusing to store empty waveform %q", name)
	}
	s.waveforms[name] = simWaveform{payload: p, timestamp: s.tick()}
	return nil
}

func (s *Simulator) DeleteWaveform(name string) error {
	if err := s.step(OpDeleteWaveform, fmt.Sprintf("WLIS:WAV:DEL %q", name)); err != nil {
		return err
	}
	if _, ok := s.waveforms[name]; !ok {
		return fmt.Errorf("unknown waveform %q", name)
	}
	delete(s.waveforms, name)
	return nil
}

func (s *Simulator) SetSequenceLength(n int) error {
	if err := s.step(OpSetSequenceLength, fmt.Sprintf("SEQ:LENG %d", n)); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("sequence length must be non-negative, got %d", n)
	}
	return s.resizeSequence(n)
}

func (s *Simulator) resizeSequence(n int) error {
	for len(s.rows) < n {
		s.rows = append(s.rows, Row{Entries: make([]string, s.channels)})
	}
	s.rows = s.rows[:n]
	return nil
}

func (s *Simulator) SetSequenceEntry(pos int, row Row) error {
	if err := s.step(OpSetSequenceEntry, fmt.Sprintf("SEQ:ELEM %d", pos)); err != nil {
		return err
	}
	if pos < 1 || pos > len(s.rows) {
		return fmt.Errorf("sequence position %d out of range [1, %d]", pos, len(s.rows))
	}
	if len(row.Entries) != s.channels {
		return fmt.Errorf("row has %d entries for a %d-channel device", len(row.Entries), s.channels)
	}
	for _, name := range row.Entries {
		if name == "" {
			continue
		}
		if _, ok := s.waveforms[name]; !ok {
			return fmt.Errorf("row references unknown waveform %q", name)
		}
	}
	s.rows[pos-1] = row
	return nil
}

func (s *Simulator) Exec(cmd string) error {
	if err := s.step(OpExec, cmd); err != nil {
		return err
	}
	switch {
	case cmd == CmdDeleteAllWaveforms:
		s.waveforms = map[string]simWaveform{}
	case cmd == CmdClearSequence:
		s.rows = nil
	case cmd == CmdRun:
		// Trigger playback: nothing observable in the simulator.
	case strings.HasPrefix(cmd, "SEQ:JUMP:IMM "):
		// Immediate jump: nothing observable in the simulator.
	default:
		return fmt.Errorf("unsupported raw command %q", cmd)
	}
	return nil
}
