package harness

import (
	"errors"
	"fmt"

	"github.com/openqlab/awgctl/internal/awg"
	"github.com/openqlab/awgctl/internal/device"
	"github.com/openqlab/awgctl/internal/program"
)

// Event records one executed operation.
type Event struct {
	Op      string
	Program string
	Error   string // error code when the operation failed as scripted
}

// Result is the outcome of running a scenario.
type Result struct {
	Events  []Event
	State   awg.Snapshot
	Journal []string // instrument-level operation journal
}

// Run executes a scenario against a fresh simulated instrument.
//
// An operation with an expected error code must fail with exactly that code;
// any other failure, and any failure of an operation expected to succeed,
// aborts the run.
func Run(scenario *Scenario) (*Result, error) {
	sim := device.NewSimulator(scenario.Profile.Channels, scenario.Profile.SampleRate, scenario.Profile.Amplitudes...)
	ctl, err := awg.New(sim, awg.SyncClear)
	if err != nil {
		return nil, fmt.Errorf("initializing instrument: %w", err)
	}

	tables := make(map[string]*program.Table, len(scenario.Programs))
	for name, segments := range scenario.Programs {
		table, err := buildTable(segments)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", name, err)
		}
		tables[name] = table
	}

	routing := uploadRouting(scenario.Profile)
	result := &Result{}

	for i, op := range scenario.Operations {
		var opErr error
		switch op.Op {
		case OpUpload:
			opErr = ctl.Upload(op.Program, tables[op.Program], routing, op.Force)
		case OpArm:
			opErr = ctl.Arm(op.Program)
		case OpRun:
			opErr = ctl.Run()
		case OpUnload:
			opErr = ctl.Unload(op.Program)
		case OpClear:
			opErr = ctl.Clear()
		}

		event := Event{Op: op.Op, Program: op.Program}
		if op.Error != "" {
			code, ok := errorCode(opErr)
			if !ok {
				return nil, fmt.Errorf("operations[%d] (%s): expected error %s, got %v", i, op.Op, op.Error, opErr)
			}
			if code != op.Error {
				return nil, fmt.Errorf("operations[%d] (%s): expected error %s, got %s", i, op.Op, op.Error, code)
			}
			event.Error = code
		} else if opErr != nil {
			return nil, fmt.Errorf("operations[%d] (%s): %w", i, op.Op, opErr)
		}
		result.Events = append(result.Events, event)
	}

	result.State = ctl.Snapshot()
	result.Journal = sim.Journal()
	return result, nil
}

// errorCode extracts the orchestrator error code from err.
func errorCode(err error) (string, bool) {
	var ae *awg.Error
	if errors.As(err, &ae) {
		return string(ae.Code), true
	}
	return "", false
}

// buildTable converts scenario segments into a table program.
func buildTable(segments []Segment) (*program.Table, error) {
	converted := make([]program.Segment, len(segments))
	for i, s := range segments {
		reps := s.Repetitions
		if reps == 0 {
			reps = 1
		}
		seg := program.Segment{Duration: s.Duration, Repetitions: reps}
		if len(s.Levels) > 0 {
			seg.Levels = make(map[program.ChannelID]program.Ramp, len(s.Levels))
			for ch, r := range s.Levels {
				seg.Levels[program.ChannelID(ch)] = program.Ramp{Start: r.Start, Stop: r.Stop}
			}
		}
		if len(s.Markers) > 0 {
			seg.Markers = make(map[program.ChannelID][]program.Window, len(s.Markers))
			for ch, ws := range s.Markers {
				windows := make([]program.Window, len(ws))
				for j, w := range ws {
					windows[j] = program.Window{From: w.From, To: w.To}
				}
				seg.Markers[program.ChannelID(ch)] = windows
			}
		}
		converted[i] = seg
	}
	return program.NewTable(converted...)
}

// uploadRouting expands the profile routing into per-channel assignments with
// exactly two marker slots per channel.
func uploadRouting(p Profile) awg.Routing {
	routing := awg.Routing{
		Channels: make([]program.ChannelID, p.Channels),
		Markers:  make([]program.ChannelID, 2*p.Channels),
	}
	for i, r := range p.Routing {
		routing.Channels[i] = program.ChannelID(r.Channel)
		for j, m := range r.Markers {
			routing.Markers[2*i+j] = program.ChannelID(m)
		}
	}
	return routing
}
