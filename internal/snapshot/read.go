package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested capture does not exist.
var ErrNotFound = errors.New("capture not found")

// CaptureMeta is the queryable header of one stored capture.
type CaptureMeta struct {
	ID           int64
	TakenAt      time.Time
	Label        string
	Channels     int
	TableLength  int
	IdleAnchor   int
	ArmedProgram string
}

// Capture is a stored capture: header plus the canonical JSON body exactly
// as written by Record.
type Capture struct {
	CaptureMeta
	Body []byte
}

// List returns capture headers ordered oldest first.
func (s *Store) List(ctx context.Context) ([]CaptureMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, taken_at, label, channels, table_length, idle_anchor, armed_program
		FROM captures
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	var metas []CaptureMeta
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("list captures: %w", err)
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	return metas, nil
}

// Get returns the capture with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Capture, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, taken_at, label, channels, table_length, idle_anchor, armed_program, body
		FROM captures
		WHERE id = ?
	`, id)
	return scanCapture(row)
}

// Latest returns the most recently recorded capture, or ErrNotFound when
// the store is empty.
func (s *Store) Latest(ctx context.Context) (Capture, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, taken_at, label, channels, table_length, idle_anchor, armed_program, body
		FROM captures
		ORDER BY id DESC
		LIMIT 1
	`)
	return scanCapture(row)
}

// CapturesWithDigest returns the ids of captures whose catalog contained a
// waveform with the given content digest, ordered oldest first.
func (s *Store) CapturesWithDigest(ctx context.Context, digest string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT capture_id FROM capture_waveforms
		WHERE digest = ?
		ORDER BY capture_id ASC
	`, digest)
	if err != nil {
		return nil, fmt.Errorf("captures with digest: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("captures with digest: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("captures with digest: %w", err)
	}
	return ids, nil
}

func scanMeta(rows *sql.Rows) (CaptureMeta, error) {
	var meta CaptureMeta
	var takenAt string
	if err := rows.Scan(&meta.ID, &takenAt, &meta.Label, &meta.Channels,
		&meta.TableLength, &meta.IdleAnchor, &meta.ArmedProgram); err != nil {
		return CaptureMeta{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, takenAt)
	if err != nil {
		return CaptureMeta{}, fmt.Errorf("parse taken_at %q: %w", takenAt, err)
	}
	meta.TakenAt = ts
	return meta, nil
}

func scanCapture(row *sql.Row) (Capture, error) {
	var c Capture
	var takenAt string
	var body string
	err := row.Scan(&c.ID, &takenAt, &c.Label, &c.Channels,
		&c.TableLength, &c.IdleAnchor, &c.ArmedProgram, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Capture{}, ErrNotFound
	}
	if err != nil {
		return Capture{}, fmt.Errorf("scan capture: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, takenAt)
	if err != nil {
		return Capture{}, fmt.Errorf("parse taken_at %q: %w", takenAt, err)
	}
	c.TakenAt = ts
	c.Body = []byte(body)
	return c, nil
}
