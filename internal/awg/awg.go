package awg

import (
	"fmt"

	"github.com/openqlab/awgctl/internal/device"
	"github.com/openqlab/awgctl/internal/program"
	"github.com/openqlab/awgctl/internal/wave"
)

// SyncMode selects how the constructor reaches a synchronized mirror:
// reading the full device state, or clearing the device to empty.
type SyncMode int

const (
	// SyncRead mirrors whatever the device currently holds.
	SyncRead SyncMode = iota
	// SyncClear wipes the device's waveform catalog and sequence table.
	SyncClear
)

// Defaults taken over from the instrument family this design grew on:
// segments are padded to at least 250 samples on a 1-sample grid, and the
// shared idle waveform is 4000 samples long.
const (
	minSegmentSamples = 250
	segmentQuantum    = 1
	idleLength        = 4000
)

// ArmedProgram points at the program that will play on the next trigger.
type ArmedProgram struct {
	Name     string
	Position int // first claimed sequence-table position
}

// ProgramInfo summarizes one registered program.
type ProgramInfo struct {
	Name          string
	FirstPosition int
	Positions     []int
	ElementCount  int
}

type registryEntry struct {
	compiled  *program.Compiled
	positions []int
	rows      []device.Row
}

// AWG owns the local mirror of one instrument: waveform store, sequence
// table, program registry, and the idle program anchor. Construction reads
// or clears the device and bootstraps the idle program; after that the
// mirror and device move in lockstep through Upload and Unload.
type AWG struct {
	dev      device.Instrument
	channels int

	store    *WaveformStore
	seq      []*device.Row // nil = free position
	programs map[string]*registryEntry
	armed    *ArmedProgram

	idlePayload wave.Payload
	idleAnchor  int // 1-based; 0 until the idle program is bootstrapped
}

// New builds an orchestrator for the instrument, synchronizes per mode, and
// bootstraps the idle program.
func New(dev device.Instrument, mode SyncMode) (*AWG, error) {
	channels, err := dev.ChannelCount()
	if err != nil {
		return nil, deviceErr("query channel count", err)
	}
	a := &AWG{
		dev:         dev,
		channels:    channels,
		store:       NewWaveformStore(),
		programs:    map[string]*registryEntry{},
		idlePayload: wave.Idle(idleLength),
	}

	switch mode {
	case SyncRead:
		if err := a.Synchronize(); err != nil {
			return nil, err
		}
	case SyncClear:
		if err := a.Clear(); err != nil {
			return nil, err
		}
	default:
		return nil, preconditionErr("unknown sync mode %d", mode)
	}
	return a, nil
}

// Synchronize rebuilds the waveform and sequence mirrors wholesale from
// device queries, then re-runs the idempotent idle bootstrap. Registered
// programs are kept; their claimed positions are re-read along with the rest
// of the table.
func (a *AWG) Synchronize() error {
	if err := a.readWaveforms(); err != nil {
		return err
	}
	if err := a.readSequence(); err != nil {
		return err
	}
	return a.initializeIdleProgram()
}

// Clear empties the device's sequence table and waveform catalog, drops the
// registry and armed program, and re-bootstraps the idle program.
func (a *AWG) Clear() error {
	if err := a.dev.Exec(device.CmdClearSequence); err != nil {
		return deviceErr("clear sequence table", err)
	}
	if err := a.readSequence(); err != nil {
		return err
	}
	if err := a.dev.Exec(device.CmdDeleteAllWaveforms); err != nil {
		return deviceErr("clear waveform catalog", err)
	}
	if err := a.readWaveforms(); err != nil {
		return err
	}
	a.programs = map[string]*registryEntry{}
	a.armed = nil
	a.idleAnchor = 0
	return a.initializeIdleProgram()
}

// readWaveforms replaces the waveform store with the device catalog.
func (a *AWG) readWaveforms() error {
	names, err := a.dev.WaveformNames()
	if err != nil {
		return deviceErr("list waveforms", err)
	}
	entries := make([]WaveformEntry, 0, len(names))
	for _, name := range names {
		length, err := a.dev.WaveformLength(name)
		if err != nil {
			return deviceErr(fmt.Sprintf("read length of %q", name), err)
		}
		ts, err := a.dev.WaveformTimestamp(name)
		if err != nil {
			return deviceErr(fmt.Sprintf("read timestamp of %q", name), err)
		}
		data, err := a.dev.WaveformData(name)
		if err != nil {
			return deviceErr(fmt.Sprintf("read data of %q", name), err)
		}
		entries = append(entries, WaveformEntry{Name: name, Length: length, Timestamp: ts, Payload: data})
	}
	a.store = NewWaveformStore(entries...)
	return nil
}

// readSequence replaces the sequence mirror with the device table. Blank
// rows are normalized to "no element".
func (a *AWG) readSequence() error {
	length, err := a.dev.SequenceLength()
	if err != nil {
		return deviceErr("read sequence length", err)
	}
	seq := make([]*device.Row, length)
	for pos := 1; pos <= length; pos++ {
		row, err := a.dev.SequenceEntry(pos)
		if err != nil {
			return deviceErr(fmt.Sprintf("read sequence row %d", pos), err)
		}
		if !row.Blank() {
			r := row
			seq[pos-1] = &r
		}
	}
	a.seq = seq
	return nil
}

// initializeIdleProgram makes sure the always-present idle program exists:
// an infinitely looping element playing the idle waveform on every channel.
// Idempotent: an existing idle waveform is reused by content, an existing
// idle element anywhere in the table becomes the anchor.
func (a *AWG) initializeIdleProgram() error {
	var idleName string
	if e, ok := a.store.ByPayload(a.idlePayload); ok {
		idleName = e.Name
	} else {
		idleName = wave.IdleName(idleLength)
		if err := a.uploadWaveform(a.idlePayload, idleName, nil); err != nil {
			return err
		}
	}

	row := a.idleRow(idleName)
	if pos := a.findRow(row); pos > 0 {
		a.idleAnchor = pos
		return nil
	}

	positions, err := a.claim(1)
	if err != nil {
		return err
	}
	if err := a.writeRow(positions[0], row); err != nil {
		return err
	}
	a.idleAnchor = positions[0]
	return nil
}

func (a *AWG) idleRow(idleName string) device.Row {
	entries := make([]string, a.channels)
	for i := range entries {
		entries[i] = idleName
	}
	return device.Row{Entries: entries, LoopInfinite: true}
}

// IdleAnchor returns the 1-based table position of the idle program.
func (a *AWG) IdleAnchor() int {
	return a.idleAnchor
}

// findRow returns the 1-based position of the first mirrored element equal
// to row, or 0.
func (a *AWG) findRow(row device.Row) int {
	for i, r := range a.seq {
		if r != nil && r.Equal(row) {
			return i + 1
		}
	}
	return 0
}

// claim returns n free sequence-table positions in ascending order. If fewer
// are free the table is extended by exactly the shortfall; extension is
// monotonic, allocation never shrinks the table.
func (a *AWG) claim(n int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}
	free := make([]int, 0, n)
	for i, r := range a.seq {
		if r == nil {
			free = append(free, i+1)
			if len(free) == n {
				return free, nil
			}
		}
	}

	shortfall := n - len(free)
	newLength := len(a.seq) + shortfall
	if err := a.dev.SetSequenceLength(newLength); err != nil {
		return nil, deviceErr(fmt.Sprintf("extend sequence table to %d", newLength), err)
	}
	for pos := len(a.seq) + 1; pos <= newLength; pos++ {
		a.seq = append(a.seq, nil)
		free = append(free, pos)
	}
	return free, nil
}

// uploadWaveform writes a payload to the device under name and records it in
// the store. With a non-nil log, a compensating delete is pushed after the
// device write succeeds.
func (a *AWG) uploadWaveform(p wave.Payload, name string, log *undoLog) error {
	if err := a.dev.NewWaveform(name, p); err != nil {
		return deviceErr(fmt.Sprintf("upload waveform %q", name), err)
	}
	if log != nil {
		log.push("delete waveform "+name, func() error {
			return a.deleteWaveform(name)
		})
	}
	ts, err := a.dev.WaveformTimestamp(name)
	if err != nil {
		return deviceErr(fmt.Sprintf("read timestamp of %q", name), err)
	}
	return a.store.Add(name, WaveformEntry{
		Name:      name,
		Length:    p.Len(),
		Timestamp: ts,
		Payload:   p,
	}, false)
}

// deleteWaveform removes a waveform from device and mirror.
func (a *AWG) deleteWaveform(name string) error {
	if err := a.dev.DeleteWaveform(name); err != nil {
		return deviceErr(fmt.Sprintf("delete waveform %q", name), err)
	}
	if _, ok := a.store.ByName(name); ok {
		if _, err := a.store.Pop(name); err != nil {
			return err
		}
	}
	return nil
}

// writeRow writes one sequence row to the device, then mirrors it. Device
// first: on failure the mirror still matches the device.
func (a *AWG) writeRow(pos int, row device.Row) error {
	if err := a.dev.SetSequenceEntry(pos, row); err != nil {
		return deviceErr(fmt.Sprintf("write sequence row %d", pos), err)
	}
	r := row
	a.seq[pos-1] = &r
	return nil
}

// Store exposes the waveform-store mirror for read-only inspection.
func (a *AWG) Store() *WaveformStore {
	return a.store
}

// SequenceMirror returns a copy of the mirrored table: one row pointer per
// position, nil for free positions.
func (a *AWG) SequenceMirror() []*device.Row {
	out := make([]*device.Row, len(a.seq))
	copy(out, a.seq)
	return out
}

// ChannelCount returns the device's channel count as read at construction.
func (a *AWG) ChannelCount() int {
	return a.channels
}

// SampleRate queries the device's current sampling frequency.
func (a *AWG) SampleRate() (float64, error) {
	rate, err := a.dev.SampleRate()
	if err != nil {
		return 0, deviceErr("query sample rate", err)
	}
	return rate, nil
}

// Cleanup would defragment the sequence table and reclaim dead waveforms.
// Deliberately rejected rather than approximated.
func (a *AWG) Cleanup() error {
	return notImplementedErr("cleanup")
}

// Remove would delete a single program and evict waveforms nothing else
// references. Deliberately rejected rather than approximated; use Unload.
func (a *AWG) Remove(name string) error {
	return notImplementedErr("remove")
}

// RestoreState would replace the mirror with a captured snapshot and
// reconcile the device to match. Deliberately rejected rather than
// approximated; Snapshot (the capturing half) is implemented.
func (a *AWG) RestoreState(Snapshot) error {
	return notImplementedErr("state restore")
}
