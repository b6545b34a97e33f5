package program

// ChannelID names one logical channel of the upstream pulse representation.
// The empty string means "no channel assigned".
type ChannelID string

// NoChannel is the unassigned channel.
const NoChannel ChannelID = ""

// Waveform is one leaf of a flattened program: a segment with a fixed
// duration that can be sampled per channel at arbitrary time points.
type Waveform interface {
	// Duration returns the segment length in seconds.
	Duration() float64

	// Defines reports whether the leaf carries data for the channel.
	Defines(ch ChannelID) bool

	// Sample evaluates the channel at the given times (seconds). Sampling an
	// undefined or unassigned channel yields zeros. Marker channels sample to
	// 0 or 1.
	Sample(ch ChannelID, times []float64) []float64
}

// LeafEntry pairs a leaf with its playback repetition count.
type LeafEntry struct {
	Waveform    Waveform
	Repetitions int
}

// Program is the handle onto the upstream pulse representation. Compile
// requires Depth() == 1; callers flatten via MakeCompatible first.
type Program interface {
	// Depth returns the nesting depth of the program tree. A flat list of
	// leaves has depth 1.
	Depth() int

	// Copy returns a structurally independent duplicate, so destructive
	// normalization never aliases the caller's tree.
	Copy() Program

	// MakeCompatible pads every segment to at least minLength samples, aligns
	// segment lengths to multiples of quantum samples, and flattens nested
	// structure to depth 1.
	MakeCompatible(minLength, quantum int, sampleRate float64) error

	// Leaves returns the flattened (waveform, repetition-count) list in
	// program order.
	Leaves() []LeafEntry
}
