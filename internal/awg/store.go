package awg

import (
	"fmt"
	"sort"

	"github.com/openqlab/awgctl/internal/wave"
)

// WaveformEntry is one waveform known to the device: its unique name, its
// binary payload, and the modification marker the device reported when it
// was written or discovered.
type WaveformEntry struct {
	Name      string
	Length    int
	Timestamp string
	Payload   wave.Payload
}

func (e WaveformEntry) validate() error {
	if e.Name == "" {
		return fmt.Errorf("waveform entry has no name")
	}
	if e.Payload.IsZero() {
		return fmt.Errorf("waveform entry %q has no payload", e.Name)
	}
	if e.Length != e.Payload.Len() {
		return fmt.Errorf("waveform entry %q declares length %d but payload has %d samples",
			e.Name, e.Length, e.Payload.Len())
	}
	return nil
}

// WaveformStore mirrors the device's waveform catalog with two consistent
// views: by unique name and by payload content. The content view is what
// makes uploads deduplicate: before sending a payload, the orchestrator asks
// whether identical content already lives on the device under any name.
//
// A device may legitimately hold the same content under several names (for
// example after a manual session). The name view keeps every such entry; the
// content view resolves to one live entry for the digest and is repaired when
// that entry is popped.
type WaveformStore struct {
	byName   map[string]WaveformEntry
	byDigest map[wave.Digest]WaveformEntry
}

// NewWaveformStore builds a store holding the given entries. Entries sharing
// a payload keep the last one in the content view, like the device reporting
// order would.
func NewWaveformStore(entries ...WaveformEntry) *WaveformStore {
	s := &WaveformStore{
		byName:   make(map[string]WaveformEntry, len(entries)),
		byDigest: make(map[wave.Digest]WaveformEntry, len(entries)),
	}
	for _, e := range entries {
		s.byName[e.Name] = e
		s.byDigest[e.Payload.Digest()] = e
	}
	return s
}

// ByName looks up an entry by its unique device name.
func (s *WaveformStore) ByName(name string) (WaveformEntry, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// ByPayload looks up an entry whose payload equals p.
func (s *WaveformStore) ByPayload(p wave.Payload) (WaveformEntry, bool) {
	e, ok := s.byDigest[p.Digest()]
	return e, ok
}

// Len returns the number of live entries.
func (s *WaveformStore) Len() int {
	return len(s.byName)
}

// All returns every entry sorted by name.
func (s *WaveformStore) All() []WaveformEntry {
	entries := make([]WaveformEntry, 0, len(s.byName))
	for _, e := range s.byName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Add inserts an entry under name into both views. If the name exists and
// overwrite is false, the store is unmodified and a collision error returns.
// With overwrite, the old entry is removed first and restored if the insert
// fails, so a failed overwrite never leaves the store partially mutated.
func (s *WaveformStore) Add(name string, entry WaveformEntry, overwrite bool) error {
	var replaced *WaveformEntry
	if old, ok := s.byName[name]; ok {
		if !overwrite {
			return collisionErr("waveform", name)
		}
		s.remove(old)
		replaced = &old
	}

	if err := s.insert(name, entry); err != nil {
		if replaced != nil {
			s.insertUnchecked(replaced.Name, *replaced)
		}
		return err
	}
	return nil
}

// Pop removes the named entry from both views and returns it.
func (s *WaveformStore) Pop(name string) (WaveformEntry, error) {
	e, ok := s.byName[name]
	if !ok {
		return WaveformEntry{}, fmt.Errorf("waveform %q is not in the store", name)
	}
	s.remove(e)
	return e, nil
}

func (s *WaveformStore) insert(name string, entry WaveformEntry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	if entry.Name != name {
		return fmt.Errorf("entry name %q does not match store key %q", entry.Name, name)
	}
	s.insertUnchecked(name, entry)
	return nil
}

func (s *WaveformStore) insertUnchecked(name string, entry WaveformEntry) {
	s.byName[name] = entry
	s.byDigest[entry.Payload.Digest()] = entry
}

func (s *WaveformStore) remove(e WaveformEntry) {
	delete(s.byName, e.Name)
	d := e.Payload.Digest()
	if cur, ok := s.byDigest[d]; ok && cur.Name == e.Name {
		delete(s.byDigest, d)
		// Another name may hold the same content; keep the content view live.
		for _, other := range s.byName {
			if other.Payload.Digest() == d {
				s.byDigest[d] = other
				break
			}
		}
	}
}
