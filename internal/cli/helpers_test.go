package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sweepCUE = `
package programs

program: sweep: {
	segments: [
		{duration: 8.0, repetitions: 2, levels: {A: {start: 0.0, stop: 0.5}}},
		{duration: 4.0, levels: {A: {start: 0.5, stop: 0.5}}, markers: {M1: [{from: 0.0, to: 2.0}]}},
	]
}
`

const benchProfileYAML = `
active_profile: bench
profiles:
  bench:
    channels: 1
    sample_rate: 1.0
    amplitudes: [1.0]
    routing:
      - channel: A
        markers: [M1, ""]
  twochannel:
    channels: 2
    sample_rate: 1.0
    amplitudes: [2.0]
    routing:
      - channel: A
        markers: [M1, ""]
      - channel: ""
        markers: []
`

// writePrograms writes CUE program sources into a temp directory.
func writePrograms(t *testing.T, sources ...string) string {
	t.Helper()
	dir := t.TempDir()
	for i, src := range sources {
		name := fmt.Sprintf("programs_%d.cue", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
	}
	return dir
}

// writeProfile writes a profile config file and returns its path.
func writeProfile(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}
