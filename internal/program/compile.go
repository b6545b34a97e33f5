package program

import (
	"fmt"

	"github.com/openqlab/awgctl/internal/wave"
)

// Config carries the channel routing and analog calibration a program is
// compiled under. Channels, Markers and Amplitudes run in lockstep: index i
// describes hardware channel i+1. Exactly two markers are routed per channel;
// NoChannel leaves a slot unassigned.
type Config struct {
	Channels   []ChannelID
	Markers    [][2]ChannelID
	SampleRate float64 // samples per second
	Amplitudes []float64
	Transforms []func(float64) float64 // optional per-channel voltage transform
}

func (cfg Config) validate() error {
	if len(cfg.Channels) == 0 {
		return fmt.Errorf("config has no channels")
	}
	if len(cfg.Markers) != len(cfg.Channels) {
		return fmt.Errorf("got %d marker pairs for %d channels, need exactly one pair per channel",
			len(cfg.Markers), len(cfg.Channels))
	}
	if len(cfg.Amplitudes) != len(cfg.Channels) {
		return fmt.Errorf("got %d amplitudes for %d channels", len(cfg.Amplitudes), len(cfg.Channels))
	}
	if cfg.Transforms != nil && len(cfg.Transforms) != len(cfg.Channels) {
		return fmt.Errorf("got %d voltage transforms for %d channels", len(cfg.Transforms), len(cfg.Channels))
	}
	for i, a := range cfg.Amplitudes {
		if a <= 0 {
			return fmt.Errorf("channel %d amplitude must be positive, got %v", i+1, a)
		}
	}
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %v", cfg.SampleRate)
	}
	return nil
}

// Compile lowers a flattened program into sequencing elements and the set of
// distinct payloads they require.
//
// Preconditions are checked before any work happens and are fatal: the
// program must already be flattened to depth 1 (MakeCompatible does that) and
// the config must be internally consistent. Violations mean the caller wired
// things up wrong, not that the input data is bad.
//
// Within one compile pass payloads are deduplicated by content: a leaf whose
// quantized payload equals an earlier one reuses the earlier *wave.Payload,
// so Compiled.Waveforms holds each distinct payload exactly once. A
// channel/marker triple that is entirely unassigned produces an idle sentinel
// (the sample count) instead of a payload.
func Compile(p Program, cfg Config) (*Compiled, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if d := p.Depth(); d != 1 {
		return nil, fmt.Errorf("program must be flattened to depth 1, got depth %d", d)
	}

	var (
		elements    []Element
		waveforms   []*wave.Payload
		idleLengths []int

		byDigest  = map[wave.Digest]*wave.Payload{}
		idleSeen  = map[int]bool{}
		timeAxis  []float64
		maxLength float64 // longest duration the axis covers
	)

	for li, leaf := range p.Leaves() {
		duration := leaf.Waveform.Duration()
		n := samplesIn(duration, cfg.SampleRate)
		if n < 1 {
			return nil, fmt.Errorf("leaf %d is shorter than one sample (%v s at %v Hz)", li, duration, cfg.SampleRate)
		}

		// The shared time axis only ever grows; shorter leaves reuse a
		// prefix of the longest axis seen so far.
		if duration > maxLength {
			timeAxis = sampleTimes(n, cfg.SampleRate)
			maxLength = duration
		}
		times := timeAxis[:n]

		entries := make([]Entry, len(cfg.Channels))
		for ci := range cfg.Channels {
			ch := cfg.Channels[ci]
			m1, m2 := cfg.Markers[ci][0], cfg.Markers[ci][1]

			if ch == NoChannel && m1 == NoChannel && m2 == NoChannel {
				entries[ci] = IdleEntry(n)
				if !idleSeen[n] {
					idleSeen[n] = true
					idleLengths = append(idleLengths, n)
				}
				continue
			}

			var transform func(float64) float64
			if cfg.Transforms != nil {
				transform = cfg.Transforms[ci]
			}

			var volts []float64
			if ch == NoChannel {
				volts = make([]float64, n)
			} else {
				volts = leaf.Waveform.Sample(ch, times)
			}
			codes := wave.Quantize(volts, cfg.Amplitudes[ci], transform)

			payload, err := wave.New(codes, markerBits(leaf.Waveform, m1, times), markerBits(leaf.Waveform, m2, times))
			if err != nil {
				return nil, fmt.Errorf("leaf %d channel %d: %w", li, ci+1, err)
			}

			if existing, ok := byDigest[payload.Digest()]; ok {
				entries[ci] = PayloadEntry(existing)
			} else {
				ptr := &payload
				byDigest[payload.Digest()] = ptr
				waveforms = append(waveforms, ptr)
				entries[ci] = PayloadEntry(ptr)
			}
		}

		elements = append(elements, Element{
			Entries:     entries,
			Repetitions: leaf.Repetitions,
		})
	}

	return &Compiled{
		elements:    elements,
		waveforms:   waveforms,
		idleLengths: idleLengths,
		config:      cfg,
	}, nil
}

// markerBits samples a marker channel into a per-sample bit array, or nil for
// an unassigned marker.
func markerBits(w Waveform, ch ChannelID, times []float64) []byte {
	if ch == NoChannel {
		return nil
	}
	values := w.Sample(ch, times)
	bits := make([]byte, len(values))
	for i, v := range values {
		if v > 0.5 {
			bits[i] = 1
		}
	}
	return bits
}

// samplesIn counts the whole samples in a duration at the given rate. The
// product is floored, but a value within relative rounding noise of the next
// integer counts as that integer: a length established by normalization must
// survive the round trip through seconds at fractional rates.
func samplesIn(duration, rate float64) int {
	exact := duration * rate
	n := int(exact)
	if float64(n+1)-exact < 1e-9*float64(n+1) {
		return n + 1
	}
	return n
}

// sampleTimes returns n sample instants starting at 0 with spacing 1/rate.
func sampleTimes(n int, rate float64) []float64 {
	step := 1 / rate
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * step
	}
	return times
}
