package device

import "github.com/openqlab/awgctl/internal/wave"

// Row is one sequence-table row as the device stores it: one waveform name
// per channel (empty string = blank slot), a repetition count, and optional
// branch and trigger-wait behavior. GotoIndex is a 1-based table position;
// it is meaningful only when GotoEnabled is set.
type Row struct {
	Entries      []string
	LoopCount    int
	LoopInfinite bool
	Wait         bool
	GotoIndex    int
	GotoEnabled  bool
}

// Blank reports whether every channel entry is empty. Devices return blank
// rows for positions nothing has been written to; the mirror normalizes them
// to "no element".
func (r Row) Blank() bool {
	for _, e := range r.Entries {
		if e != "" {
			return false
		}
	}
	return true
}

// Equal reports full row equality, entries included.
func (r Row) Equal(o Row) bool {
	if len(r.Entries) != len(o.Entries) {
		return false
	}
	for i := range r.Entries {
		if r.Entries[i] != o.Entries[i] {
			return false
		}
	}
	return r.LoopCount == o.LoopCount &&
		r.LoopInfinite == o.LoopInfinite &&
		r.Wait == o.Wait &&
		r.GotoIndex == o.GotoIndex &&
		r.GotoEnabled == o.GotoEnabled
}

// Instrument is the abstract hardware-control interface. Every call is one
// blocking command round trip with no timeout; callers needing cancellation
// wrap the implementation. Sequence positions are 1-based and valid in
// [1, SequenceLength].
type Instrument interface {
	// Catalog queries.
	WaveformNames() ([]string, error)
	WaveformLength(name string) (int, error)
	WaveformTimestamp(name string) (string, error)
	WaveformData(name string) (wave.Payload, error)

	// Sequence-table queries.
	SequenceLength() (int, error)
	SequenceEntry(pos int) (Row, error)

	// Device identity.
	ChannelCount() (int, error)
	SampleRate() (float64, error)
	Amplitude(channel int) (float64, error)

	// Mutating commands.
	NewWaveform(name string, p wave.Payload) error
	DeleteWaveform(name string) error
	SetSequenceLength(n int) error
	SetSequenceEntry(pos int, row Row) error

	// Exec issues a raw instrument command (bulk clear, trigger, jump).
	Exec(cmd string) error
}

// Raw commands the orchestrator issues through Exec.
const (
	CmdDeleteAllWaveforms = "WLIS:WAV:DEL ALL"
	CmdClearSequence      = "SEQ:LENG 0"
	CmdRun                = "AWGC:RUN"
)
