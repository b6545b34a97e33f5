package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one simulated session: an instrument profile, named pulse
// programs, and the operations to run against the instrument in order.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Profile describes the simulated instrument.
	Profile Profile `yaml:"profile"`

	// Programs maps program names to their segment lists.
	Programs map[string][]Segment `yaml:"programs"`

	// Operations is the script to execute, in order.
	Operations []Operation `yaml:"operations"`
}

// Profile describes the simulated instrument geometry and routing.
type Profile struct {
	Channels   int            `yaml:"channels"`
	SampleRate float64        `yaml:"sample_rate"`
	Amplitudes []float64      `yaml:"amplitudes"`
	Routing    []RoutingEntry `yaml:"routing"`
}

// RoutingEntry assigns one hardware channel its logical channel name and up
// to two logical marker names.
type RoutingEntry struct {
	Channel string   `yaml:"channel"`
	Markers []string `yaml:"markers,omitempty"`
}

// Segment is one row of a scenario program.
type Segment struct {
	Duration    float64             `yaml:"duration"`
	Repetitions int                 `yaml:"repetitions,omitempty"`
	Levels      map[string]Ramp     `yaml:"levels,omitempty"`
	Markers     map[string][]Window `yaml:"markers,omitempty"`
}

// Ramp is a linear voltage segment.
type Ramp struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
}

// Window is a half-open interval during which a marker is high.
type Window struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
}

// Operation is one scripted step.
type Operation struct {
	// Op is the operation name: upload, arm, run, unload, clear.
	Op string `yaml:"op"`

	// Program names the target program (required for upload, arm, unload).
	Program string `yaml:"program,omitempty"`

	// Force replaces an already-registered program on upload.
	Force bool `yaml:"force,omitempty"`

	// Error is the error code this operation is expected to fail with.
	// Empty means the operation must succeed.
	Error string `yaml:"error,omitempty"`
}

// Operation name constants.
const (
	OpUpload = "upload"
	OpArm    = "arm"
	OpRun    = "run"
	OpUnload = "unload"
	OpClear  = "clear"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "operation:" vs "operations:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Profile.Channels < 1 {
		return fmt.Errorf("profile.channels must be at least 1")
	}
	if s.Profile.SampleRate <= 0 {
		return fmt.Errorf("profile.sample_rate must be positive")
	}
	if len(s.Profile.Amplitudes) != 1 && len(s.Profile.Amplitudes) != s.Profile.Channels {
		return fmt.Errorf("profile.amplitudes needs one entry or one per channel, got %d", len(s.Profile.Amplitudes))
	}
	if len(s.Profile.Routing) != s.Profile.Channels {
		return fmt.Errorf("profile.routing needs one entry per channel, got %d for %d channels",
			len(s.Profile.Routing), s.Profile.Channels)
	}
	for i, r := range s.Profile.Routing {
		if len(r.Markers) > 2 {
			return fmt.Errorf("profile.routing[%d]: at most 2 markers per channel, got %d", i, len(r.Markers))
		}
	}

	if len(s.Operations) == 0 {
		return fmt.Errorf("operations list is required and must be non-empty")
	}
	for i, op := range s.Operations {
		switch op.Op {
		case OpUpload, OpArm, OpUnload:
			if op.Program == "" {
				return fmt.Errorf("operations[%d]: program is required for %s", i, op.Op)
			}
			if op.Op == OpUpload {
				if _, ok := s.Programs[op.Program]; !ok {
					return fmt.Errorf("operations[%d]: program %q is not defined", i, op.Program)
				}
			}
		case OpRun, OpClear:
			if op.Program != "" {
				return fmt.Errorf("operations[%d]: %s takes no program", i, op.Op)
			}
		case "":
			return fmt.Errorf("operations[%d]: op is required", i)
		default:
			return fmt.Errorf("operations[%d]: unknown op %q", i, op.Op)
		}
	}

	for name, segments := range s.Programs {
		if len(segments) == 0 {
			return fmt.Errorf("program %q has no segments", name)
		}
	}

	return nil
}
