package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/openqlab/awgctl/internal/awg"
	"github.com/openqlab/awgctl/internal/wave"
)

// Record writes one capture in a single transaction. The full capture is
// serialized to canonical JSON in the body column; waveform and program
// metadata are additionally broken out into side tables for SQL access.
// Returns the capture's assigned id.
func (s *Store) Record(ctx context.Context, label string, takenAt time.Time, snap awg.Snapshot) (int64, error) {
	body, err := snap.CanonicalJSON()
	if err != nil {
		return 0, fmt.Errorf("record capture: marshal body: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record capture: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO captures
		(taken_at, label, channels, table_length, idle_anchor, armed_program, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		takenAt.UTC().Format(time.RFC3339Nano),
		label,
		snap.Channels,
		snap.TableLength,
		snap.IdleAnchor,
		snap.ArmedName,
		string(body),
	)
	if err != nil {
		return 0, fmt.Errorf("record capture: insert capture: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record capture: last insert id: %w", err)
	}

	for _, w := range snap.Waveforms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO capture_waveforms
			(capture_id, name, length, timestamp, digest)
			VALUES (?, ?, ?, ?, ?)
		`, id, w.Name, w.Length, w.Timestamp, w.Digest)
		if err != nil {
			return 0, fmt.Errorf("record capture: insert waveform %q: %w", w.Name, err)
		}
	}

	for _, p := range snap.Programs {
		positions, err := marshalPositions(p.Positions)
		if err != nil {
			return 0, fmt.Errorf("record capture: program %q: %w", p.Name, err)
		}
		firstPos := 0
		if len(p.Positions) > 0 {
			firstPos = p.Positions[0]
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO capture_programs
			(capture_id, name, first_position, positions)
			VALUES (?, ?, ?, ?)
		`, id, p.Name, firstPos, positions)
		if err != nil {
			return 0, fmt.Errorf("record capture: insert program %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record capture: commit: %w", err)
	}

	return id, nil
}

// marshalPositions serializes claimed positions as a canonical JSON array.
func marshalPositions(positions []int) (string, error) {
	arr := make([]any, len(positions))
	for i, p := range positions {
		arr[i] = p
	}
	out, err := wave.MarshalCanonical(arr)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
