package awg

import "github.com/openqlab/awgctl/internal/wave"

// Snapshot is a serializable capture of the orchestrator's mirror: waveform
// catalog metadata, the full sequence table, the program registry, and the
// armed program. Capturing is a pure read; restoring is deliberately not
// implemented (see RestoreState).
type Snapshot struct {
	Channels    int
	TableLength int
	IdleAnchor  int
	Waveforms   []SnapshotWaveform
	Rows        []SnapshotRow
	Programs    []SnapshotProgram
	ArmedName   string
	ArmedPos    int
}

// SnapshotWaveform is catalog metadata for one waveform; the payload is
// represented by its content digest rather than raw samples.
type SnapshotWaveform struct {
	Name      string
	Length    int
	Timestamp string
	Digest    string
}

// SnapshotRow is one sequence-table position. Free positions carry no row
// data.
type SnapshotRow struct {
	Position     int
	Free         bool
	Entries      []string
	LoopCount    int
	LoopInfinite bool
	Wait         bool
	GotoIndex    int
	GotoEnabled  bool
}

// SnapshotProgram records one registry entry's claimed positions.
type SnapshotProgram struct {
	Name      string
	Positions []int
}

// Snapshot captures the current mirror state.
func (a *AWG) Snapshot() Snapshot {
	snap := Snapshot{
		Channels:    a.channels,
		TableLength: len(a.seq),
		IdleAnchor:  a.idleAnchor,
	}

	for _, e := range a.store.All() {
		snap.Waveforms = append(snap.Waveforms, SnapshotWaveform{
			Name:      e.Name,
			Length:    e.Length,
			Timestamp: e.Timestamp,
			Digest:    e.Payload.Digest().Hex(),
		})
	}

	for i, r := range a.seq {
		row := SnapshotRow{Position: i + 1, Free: r == nil}
		if r != nil {
			row.Entries = append([]string(nil), r.Entries...)
			row.LoopCount = r.LoopCount
			row.LoopInfinite = r.LoopInfinite
			row.Wait = r.Wait
			row.GotoIndex = r.GotoIndex
			row.GotoEnabled = r.GotoEnabled
		}
		snap.Rows = append(snap.Rows, row)
	}

	for _, name := range a.Programs() {
		entry := a.programs[name]
		snap.Programs = append(snap.Programs, SnapshotProgram{
			Name:      name,
			Positions: append([]int(nil), entry.positions...),
		})
	}

	if a.armed != nil {
		snap.ArmedName = a.armed.Name
		snap.ArmedPos = a.armed.Position
	}
	return snap
}

// CanonicalJSON serializes the snapshot deterministically for storage and
// golden comparison.
func (s Snapshot) CanonicalJSON() ([]byte, error) {
	return wave.MarshalCanonical(s.CanonicalMap())
}

// CanonicalMap renders the snapshot as a plain map for canonical
// serialization, alone or embedded in a larger document.
func (s Snapshot) CanonicalMap() map[string]any {
	waveforms := make([]any, len(s.Waveforms))
	for i, w := range s.Waveforms {
		waveforms[i] = map[string]any{
			"name":      w.Name,
			"length":    w.Length,
			"timestamp": w.Timestamp,
			"digest":    w.Digest,
		}
	}

	rows := make([]any, len(s.Rows))
	for i, r := range s.Rows {
		m := map[string]any{
			"position": r.Position,
			"free":     r.Free,
		}
		if !r.Free {
			m["entries"] = r.Entries
			m["loop_count"] = r.LoopCount
			m["loop_infinite"] = r.LoopInfinite
			m["wait"] = r.Wait
			m["goto_enabled"] = r.GotoEnabled
			if r.GotoEnabled {
				m["goto_index"] = r.GotoIndex
			}
		}
		rows[i] = m
	}

	programs := make([]any, len(s.Programs))
	for i, p := range s.Programs {
		positions := make([]any, len(p.Positions))
		for j, pos := range p.Positions {
			positions[j] = pos
		}
		programs[i] = map[string]any{
			"name":      p.Name,
			"positions": positions,
		}
	}

	body := map[string]any{
		"channels":     s.Channels,
		"table_length": s.TableLength,
		"idle_anchor":  s.IdleAnchor,
		"waveforms":    waveforms,
		"rows":         rows,
		"programs":     programs,
	}
	if s.ArmedName != "" {
		body["armed"] = map[string]any{
			"name":     s.ArmedName,
			"position": s.ArmedPos,
		}
	}
	return body
}
