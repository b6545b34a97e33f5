package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes YAML to a temp file and returns its path.
func writeScenario(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

const validScenarioYAML = `
name: smoke
description: minimal valid scenario
profile:
  channels: 1
  sample_rate: 1.0
  amplitudes: [1.0]
  routing:
    - channel: A
programs:
  pulse:
    - duration: 300.0
      levels:
        A: {start: 0.5, stop: 0.5}
operations:
  - op: upload
    program: pulse
`

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, validScenarioYAML)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", s.Name)
	assert.Len(t, s.Operations, 1)
	assert.Equal(t, OpUpload, s.Operations[0].Op)
	require.Contains(t, s.Programs, "pulse")
	assert.Equal(t, 0.5, s.Programs["pulse"][0].Levels["A"].Start)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: has a typo
profile:
  channels: 1
  sample_rate: 1.0
  amplitudes: [1.0]
  routing:
    - channel: A
operation:
  - op: run
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UploadOfUndefinedProgram(t *testing.T) {
	path := writeScenario(t, `
name: missing-program
description: upload references an undefined program
profile:
  channels: 1
  sample_rate: 1.0
  amplitudes: [1.0]
  routing:
    - channel: A
operations:
  - op: upload
    program: ghost
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ghost" is not defined`)
}

func TestLoadScenario_UnknownOp(t *testing.T) {
	path := writeScenario(t, `
name: bad-op
description: unknown operation
profile:
  channels: 1
  sample_rate: 1.0
  amplitudes: [1.0]
  routing:
    - channel: A
operations:
  - op: reboot
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "reboot"`)
}

func TestLoadScenario_RoutingMismatch(t *testing.T) {
	path := writeScenario(t, `
name: bad-routing
description: routing entry count disagrees with channels
profile:
  channels: 2
  sample_rate: 1.0
  amplitudes: [1.0]
  routing:
    - channel: A
operations:
  - op: clear
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing")
}
