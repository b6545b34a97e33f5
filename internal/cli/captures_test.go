package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqlab/awgctl/internal/awg"
	"github.com/openqlab/awgctl/internal/snapshot"
)

// seedCaptureDB writes two captures and returns the database path.
func seedCaptureDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "captures.db")

	store, err := snapshot.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	snap := awg.Snapshot{
		Channels:    1,
		TableLength: 1,
		IdleAnchor:  1,
		Rows:        []awg.SnapshotRow{{Position: 1, Entries: []string{"idle_4000"}, LoopInfinite: true}},
	}
	ctx := context.Background()
	_, err = store.Record(ctx, "first", time.Now(), snap)
	require.NoError(t, err)
	snap.ArmedName = "sweep"
	snap.ArmedPos = 2
	_, err = store.Record(ctx, "second", time.Now(), snap)
	require.NoError(t, err)

	return dbPath
}

func TestCapturesList(t *testing.T) {
	dbPath := seedCaptureDB(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCapturesCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"list", "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []CaptureSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "first", resp.Data[0].Label)
	assert.Equal(t, "second", resp.Data[1].Label)
	assert.Equal(t, "sweep", resp.Data[1].Armed)
}

func TestCapturesShowLatest(t *testing.T) {
	dbPath := seedCaptureDB(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCapturesCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"show", "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "capture 2")
	assert.Contains(t, buf.String(), "label: second")
	assert.Contains(t, buf.String(), `"idle_anchor":1`)
}

func TestCapturesShowMissing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCapturesCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"show", "--db", dbPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
