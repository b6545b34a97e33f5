package program

import "fmt"

// Ramp is a linear voltage segment: Start at t=0, Stop at the segment's end.
// A constant level has Start == Stop.
type Ramp struct {
	Start float64
	Stop  float64
}

// Window is a half-open time interval [From, To) in seconds during which a
// marker is high.
type Window struct {
	From float64
	To   float64
}

// Segment is one row of a table program: a duration, a repetition count, and
// per-channel voltage ramps plus marker windows.
type Segment struct {
	Duration    float64 // seconds
	Repetitions int
	Levels      map[ChannelID]Ramp
	Markers     map[ChannelID][]Window
}

// Table is a flat, depth-1 concrete Program: an ordered list of segments.
// The CLI loader decodes CUE program files into it; tests build it directly.
type Table struct {
	segments []Segment
}

// NewTable builds a table program. Segments with a non-positive duration or
// repetition count are rejected.
func NewTable(segments ...Segment) (*Table, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("table program needs at least one segment")
	}
	for i, s := range segments {
		if s.Duration <= 0 {
			return nil, fmt.Errorf("segment %d: duration must be positive, got %v", i, s.Duration)
		}
		if s.Repetitions < 1 {
			return nil, fmt.Errorf("segment %d: repetitions must be at least 1, got %d", i, s.Repetitions)
		}
	}
	return &Table{segments: segments}, nil
}

// Depth always reports 1: a table is flat by construction.
func (t *Table) Depth() int {
	return 1
}

// Copy returns a deep copy; MakeCompatible on the copy never touches the
// original.
func (t *Table) Copy() Program {
	segments := make([]Segment, len(t.segments))
	for i, s := range t.segments {
		dup := Segment{Duration: s.Duration, Repetitions: s.Repetitions}
		if s.Levels != nil {
			dup.Levels = make(map[ChannelID]Ramp, len(s.Levels))
			for ch, r := range s.Levels {
				dup.Levels[ch] = r
			}
		}
		if s.Markers != nil {
			dup.Markers = make(map[ChannelID][]Window, len(s.Markers))
			for ch, ws := range s.Markers {
				dup.Markers[ch] = append([]Window(nil), ws...)
			}
		}
		segments[i] = dup
	}
	return &Table{segments: segments}
}

// MakeCompatible pads every segment to at least minLength samples and rounds
// segment lengths up to the next multiple of quantum samples. The table is
// already flat, so no structural flattening happens.
func (t *Table) MakeCompatible(minLength, quantum int, sampleRate float64) error {
	if minLength < 1 || quantum < 1 {
		return fmt.Errorf("minimum length (%d) and quantum (%d) must be at least 1", minLength, quantum)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	for i := range t.segments {
		n := samplesIn(t.segments[i].Duration, sampleRate)
		if exact := t.segments[i].Duration * sampleRate; exact-float64(n) > 1e-9*exact {
			n++ // partial trailing sample rounds up
		}
		if n < minLength {
			n = minLength
		}
		if rem := n % quantum; rem != 0 {
			n += quantum - rem
		}
		t.segments[i].Duration = float64(n) / sampleRate
	}
	return nil
}

// Leaves returns one leaf per segment, in order.
func (t *Table) Leaves() []LeafEntry {
	leaves := make([]LeafEntry, len(t.segments))
	for i := range t.segments {
		leaves[i] = LeafEntry{
			Waveform:    segmentLeaf{seg: &t.segments[i]},
			Repetitions: t.segments[i].Repetitions,
		}
	}
	return leaves
}

// segmentLeaf adapts one Segment to the Waveform leaf interface.
type segmentLeaf struct {
	seg *Segment
}

func (l segmentLeaf) Duration() float64 {
	return l.seg.Duration
}

func (l segmentLeaf) Defines(ch ChannelID) bool {
	if _, ok := l.seg.Levels[ch]; ok {
		return true
	}
	_, ok := l.seg.Markers[ch]
	return ok
}

func (l segmentLeaf) Sample(ch ChannelID, times []float64) []float64 {
	out := make([]float64, len(times))
	if ramp, ok := l.seg.Levels[ch]; ok {
		for i, t := range times {
			frac := 0.0
			if l.seg.Duration > 0 {
				frac = t / l.seg.Duration
			}
			out[i] = ramp.Start + (ramp.Stop-ramp.Start)*frac
		}
		return out
	}
	if windows, ok := l.seg.Markers[ch]; ok {
		for i, t := range times {
			for _, w := range windows {
				if t >= w.From && t < w.To {
					out[i] = 1
					break
				}
			}
		}
	}
	return out
}
