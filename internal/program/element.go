package program

import (
	"fmt"

	"github.com/openqlab/awgctl/internal/wave"
)

// EntryKind discriminates the three per-channel entry forms of a sequencing
// element.
type EntryKind int

const (
	// EntryPayload references a materialized binary payload that still needs
	// a device name.
	EntryPayload EntryKind = iota

	// EntryIdle is the idle sentinel: an integer sample count standing in for
	// a constant-idle payload, so idle time dedups purely by length.
	EntryIdle

	// EntryName references a waveform already known on the device by name
	// (for example the shared idle waveform).
	EntryName
)

// Entry is one per-channel slot of a sequencing element. Exactly one of the
// three payload forms is set, per Kind.
type Entry struct {
	Kind       EntryKind
	Payload    *wave.Payload
	IdleLength int
	Name       string
}

// PayloadEntry builds an entry referencing a materialized payload.
func PayloadEntry(p *wave.Payload) Entry {
	return Entry{Kind: EntryPayload, Payload: p}
}

// IdleEntry builds an idle sentinel of the given sample count.
func IdleEntry(length int) Entry {
	return Entry{Kind: EntryIdle, IdleLength: length}
}

// NameEntry builds an entry referencing an existing device waveform name.
func NameEntry(name string) Entry {
	return Entry{Kind: EntryName, Name: name}
}

func (e Entry) String() string {
	switch e.Kind {
	case EntryPayload:
		return fmt.Sprintf("payload(%s)", e.Payload.Digest().Short())
	case EntryIdle:
		return fmt.Sprintf("idle(%d)", e.IdleLength)
	default:
		return fmt.Sprintf("name(%s)", e.Name)
	}
}

// Element is one playback step: one entry per channel, a repetition count,
// and optional branch and trigger-wait behavior. GotoTarget is a 1-based
// sequence-table position; zero means no explicit branch (natural
// fallthrough to the next row).
type Element struct {
	Entries      []Entry
	Repetitions  int
	LoopInfinite bool
	Wait         bool
	GotoTarget   int
	GotoEnabled  bool
}

// Compiled is the immutable result of compiling one program under one
// configuration: the ordered sequencing elements and the deduplicated set of
// payloads they reference. Device names are assigned later during upload.
type Compiled struct {
	elements    []Element
	waveforms   []*wave.Payload
	idleLengths []int
	config      Config
}

// NewCompiled wraps hand-built sequencing elements as a compiled program,
// deriving the distinct payload set and idle lengths from the entries. Used
// for sequences constructed outside Compile, for example elements that
// reference device waveforms by name.
func NewCompiled(elements []Element, cfg Config) *Compiled {
	c := &Compiled{elements: elements, config: cfg}
	seen := map[wave.Digest]bool{}
	idleSeen := map[int]bool{}
	for _, elem := range elements {
		for _, entry := range elem.Entries {
			switch entry.Kind {
			case EntryPayload:
				if d := entry.Payload.Digest(); !seen[d] {
					seen[d] = true
					c.waveforms = append(c.waveforms, entry.Payload)
				}
			case EntryIdle:
				if !idleSeen[entry.IdleLength] {
					idleSeen[entry.IdleLength] = true
					c.idleLengths = append(c.idleLengths, entry.IdleLength)
				}
			}
		}
	}
	return c
}

// Elements returns the sequencing elements in program order. The slice and
// its elements must not be modified.
func (c *Compiled) Elements() []Element {
	return c.elements
}

// Waveforms returns the distinct materialized payloads in order of first
// use.
func (c *Compiled) Waveforms() []*wave.Payload {
	return c.waveforms
}

// IdleLengths returns the distinct idle-sentinel lengths in order of first
// use.
func (c *Compiled) IdleLengths() []int {
	return c.idleLengths
}

// Config returns the configuration the program was compiled under.
func (c *Compiled) Config() Config {
	return c.config
}
