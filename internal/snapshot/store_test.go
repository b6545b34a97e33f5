package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqlab/awgctl/internal/awg"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "captures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot() awg.Snapshot {
	return awg.Snapshot{
		Channels:    2,
		TableLength: 3,
		IdleAnchor:  1,
		Waveforms: []awg.SnapshotWaveform{
			{Name: "idle_4000", Length: 4000, Timestamp: "t000001", Digest: "aa11"},
			{Name: "sweep_deadbeef0123", Length: 250, Timestamp: "t000002", Digest: "bb22"},
		},
		Rows: []awg.SnapshotRow{
			{Position: 1, Entries: []string{"idle_4000", "idle_4000"}, LoopInfinite: true},
			{Position: 2, Entries: []string{"sweep_deadbeef0123", "sweep_deadbeef0123"}, LoopCount: 4, GotoIndex: 1, GotoEnabled: true},
			{Position: 3, Free: true},
		},
		Programs: []awg.SnapshotProgram{
			{Name: "sweep", Positions: []int{2}},
		},
		ArmedName: "sweep",
		ArmedPos:  2,
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.verifyPragma("journal_mode", "wal"))
	require.NoError(t, s.verifyPragma("foreign_keys", "1"))
	require.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captures.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, s2.verifyPragma("user_version", "1"))
}

func TestRecord_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	takenAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	id, err := s.Record(ctx, "after upload", takenAt, snap)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "after upload", got.Label)
	assert.Equal(t, 2, got.Channels)
	assert.Equal(t, 3, got.TableLength)
	assert.Equal(t, 1, got.IdleAnchor)
	assert.Equal(t, "sweep", got.ArmedProgram)
	assert.True(t, takenAt.Equal(got.TakenAt))

	want, err := snap.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, want, got.Body, "stored body must be the canonical serialization")
}

func TestLatest_ReturnsNewest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot()

	_, err := s.Record(ctx, "first", time.Now(), snap)
	require.NoError(t, err)
	id2, err := s.Record(ctx, "second", time.Now(), snap)
	require.NoError(t, err)

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, id2, got.ID)
	assert.Equal(t, "second", got.Label)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_OrderedOldestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot()

	for _, label := range []string{"a", "b", "c"} {
		_, err := s.Record(ctx, label, time.Now(), snap)
		require.NoError(t, err)
	}

	metas, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, "a", metas[0].Label)
	assert.Equal(t, "c", metas[2].Label)
	assert.Less(t, metas[0].ID, metas[2].ID)
}

func TestCapturesWithDigest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snap := sampleSnapshot()
	id1, err := s.Record(ctx, "", time.Now(), snap)
	require.NoError(t, err)

	// Second capture without the sweep waveform.
	snap.Waveforms = snap.Waveforms[:1]
	snap.Programs = nil
	snap.ArmedName = ""
	snap.ArmedPos = 0
	_, err = s.Record(ctx, "", time.Now(), snap)
	require.NoError(t, err)

	ids, err := s.CapturesWithDigest(ctx, "bb22")
	require.NoError(t, err)
	assert.Equal(t, []int64{id1}, ids)

	ids, err = s.CapturesWithDigest(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
