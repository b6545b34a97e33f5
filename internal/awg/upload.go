package awg

import (
	"fmt"
	"sort"

	"github.com/openqlab/awgctl/internal/device"
	"github.com/openqlab/awgctl/internal/program"
	"github.com/openqlab/awgctl/internal/wave"
)

// Routing assigns upstream channel IDs to hardware channels. Markers is flat
// with two consecutive entries per channel, grouped pairwise like the
// instrument counts them; Transforms is optional per-channel.
type Routing struct {
	Channels   []program.ChannelID
	Markers    []program.ChannelID
	Transforms []func(float64) float64
}

// stagedWaveform is one payload waiting to be sent in the current upload.
type stagedWaveform struct {
	name    string
	payload wave.Payload
}

// Upload normalizes and compiles a program, then synchronizes it onto the
// device under the given name. The sample rate and per-channel amplitudes
// are read from the device at call time.
//
// With force false, uploading a name that is already registered fails with a
// name collision and mutates nothing. With force true, the existing
// registration is replaced; the replacement is part of the transaction, so a
// failed upload restores the old registration.
//
// The device-mutating phase is transactional: waveform writes record
// compensating deletes on an undo log, and any failure runs the log in
// reverse before the error surfaces. On failure no registry entry exists and
// freshly uploaded waveforms are gone from device and mirror.
func (a *AWG) Upload(name string, p program.Program, routing Routing, force bool) error {
	if err := a.checkRegistered(name, force); err != nil {
		return err
	}
	if len(routing.Markers) != 2*len(routing.Channels) {
		return preconditionErr("got %d marker assignments for %d channels, need exactly two per channel",
			len(routing.Markers), len(routing.Channels))
	}

	rate, err := a.SampleRate()
	if err != nil {
		return err
	}
	amplitudes := make([]float64, len(routing.Channels))
	for i := range amplitudes {
		amp, err := a.dev.Amplitude(i + 1)
		if err != nil {
			return deviceErr(fmt.Sprintf("query channel %d amplitude", i+1), err)
		}
		amplitudes[i] = amp
	}

	markers := make([][2]program.ChannelID, len(routing.Channels))
	for i := range markers {
		markers[i] = [2]program.ChannelID{routing.Markers[2*i], routing.Markers[2*i+1]}
	}

	// Normalize a defensive copy; the caller's tree stays untouched.
	normalized := p.Copy()
	if err := normalized.MakeCompatible(minSegmentSamples, segmentQuantum, rate); err != nil {
		return preconditionErr("program normalization failed: %v", err)
	}

	compiled, err := program.Compile(normalized, program.Config{
		Channels:   routing.Channels,
		Markers:    markers,
		SampleRate: rate,
		Amplitudes: amplitudes,
		Transforms: routing.Transforms,
	})
	if err != nil {
		return preconditionErr("compile %q: %v", name, err)
	}

	return a.uploadCompiled(name, compiled)
}

// UploadCompiled registers an already compiled program under name. Same
// transaction semantics as Upload.
func (a *AWG) UploadCompiled(name string, compiled *program.Compiled, force bool) error {
	if err := a.checkRegistered(name, force); err != nil {
		return err
	}
	return a.uploadCompiled(name, compiled)
}

func (a *AWG) checkRegistered(name string, force bool) error {
	if _, ok := a.programs[name]; ok && !force {
		return collisionErr("program", name)
	}
	return nil
}

func (a *AWG) uploadCompiled(name string, compiled *program.Compiled) error {
	if a.idleAnchor == 0 {
		return preconditionErr("idle program is not initialized; synchronize or clear first")
	}
	if len(compiled.Elements()) == 0 {
		return preconditionErr("program %q has no sequencing elements", name)
	}

	// Pure resolution phase: decide names for every entry and collect the
	// payloads missing from the store. No device interaction yet, so an
	// unknown reference aborts with nothing to compensate.
	rows, toUpload, err := a.resolveElements(name, compiled)
	if err != nil {
		return err
	}

	log := newUndoLog()
	fail := func(cause error) error {
		for _, cerr := range log.rollback() {
			cause = fmt.Errorf("%w; %v", cause, cerr)
		}
		return cause
	}

	// A forced replacement unloads the old registration inside the
	// transaction: on failure its rows are rewritten and the registry and
	// armed pointer come back, so the old program survives a botched replace.
	if old, ok := a.programs[name]; ok {
		wasArmed := a.armed != nil && a.armed.Name == name
		if err := a.Unload(name); err != nil {
			return err
		}
		log.push("restore registration of "+name, func() error {
			for i, pos := range old.positions {
				if err := a.writeRow(pos, old.rows[i]); err != nil {
					return err
				}
			}
			a.programs[name] = old
			if wasArmed {
				a.armed = &ArmedProgram{Name: name, Position: old.positions[0]}
			}
			return nil
		})
	}

	for _, staged := range toUpload {
		if err := a.uploadWaveform(staged.payload, staged.name, log); err != nil {
			return fail(err)
		}
	}

	positions, err := a.claim(len(rows))
	if err != nil {
		return fail(err)
	}

	linkRows(rows, positions, a.idleAnchor)

	for i := range rows {
		if err := a.writeRow(positions[i], rows[i]); err != nil {
			return fail(err)
		}
	}

	log.commit()
	a.programs[name] = &registryEntry{compiled: compiled, positions: positions, rows: rows}
	return nil
}

// resolveElements turns compiled sequencing elements into device rows,
// assigning a device name to every entry. Name resolution order: an
// identical payload already in the store, then one already staged in this
// same transaction, then a fresh content-derived name. Idle sentinels get
// deterministic length-derived names and dedup the same way.
func (a *AWG) resolveElements(programName string, compiled *program.Compiled) ([]device.Row, []stagedWaveform, error) {
	var toUpload []stagedWaveform
	staged := map[wave.Digest]string{}

	stage := func(p wave.Payload, name string) {
		staged[p.Digest()] = name
		toUpload = append(toUpload, stagedWaveform{name: name, payload: p})
	}

	resolve := func(p wave.Payload, freshName string) string {
		if e, ok := a.store.ByPayload(p); ok {
			return e.Name
		}
		if n, ok := staged[p.Digest()]; ok {
			return n
		}
		stage(p, freshName)
		return freshName
	}

	elements := compiled.Elements()
	rows := make([]device.Row, len(elements))
	for i, elem := range elements {
		if len(elem.Entries) != a.channels {
			return nil, nil, preconditionErr("element %d has %d entries for a %d-channel device",
				i+1, len(elem.Entries), a.channels)
		}
		entries := make([]string, len(elem.Entries))
		for c, entry := range elem.Entries {
			switch entry.Kind {
			case program.EntryIdle:
				entries[c] = resolve(wave.Idle(entry.IdleLength), wave.IdleName(entry.IdleLength))
			case program.EntryPayload:
				p := *entry.Payload
				entries[c] = resolve(p, wave.GeneratedName(programName, p.Digest()))
			case program.EntryName:
				if _, ok := a.store.ByName(entry.Name); !ok {
					return nil, nil, unknownReferenceErr(programName, entry.Name)
				}
				entries[c] = entry.Name
			default:
				return nil, nil, preconditionErr("element %d channel %d has unknown entry kind %d", i+1, c+1, entry.Kind)
			}
		}
		rows[i] = device.Row{
			Entries:      entries,
			LoopCount:    elem.Repetitions,
			LoopInfinite: elem.LoopInfinite,
			Wait:         elem.Wait,
		}
	}
	return rows, toUpload, nil
}

// linkRows adds explicit branches wherever allocated positions are not
// contiguous. The element after the last falls back to the idle anchor, so
// playback never runs off the end into undefined rows. Contiguous pairs keep
// natural fallthrough.
func linkRows(rows []device.Row, positions []int, idleAnchor int) {
	for i := range rows {
		next := idleAnchor
		if i+1 < len(positions) {
			next = positions[i+1]
		}
		if positions[i]+1 != next {
			rows[i].GotoIndex = next
			rows[i].GotoEnabled = true
		}
	}
}

// Unload removes a program from the registry and frees its claimed
// positions in the mirror. Device rows are not cleared; the next claim of
// those positions overwrites them.
func (a *AWG) Unload(name string) error {
	entry, ok := a.programs[name]
	if !ok {
		return unknownProgramErr(name)
	}
	for _, pos := range entry.positions {
		a.seq[pos-1] = nil
	}
	delete(a.programs, name)
	if a.armed != nil && a.armed.Name == name {
		a.armed = nil
	}
	return nil
}

// Arm selects the program that will play on the next trigger.
func (a *AWG) Arm(name string) error {
	entry, ok := a.programs[name]
	if !ok {
		return unknownProgramErr(name)
	}
	a.armed = &ArmedProgram{Name: name, Position: entry.positions[0]}
	return nil
}

// Armed returns the currently armed program, or nil.
func (a *AWG) Armed() *ArmedProgram {
	return a.armed
}

// Run jumps to the armed program's first position and issues the trigger
// command. Trigger semantics beyond the command are the instrument's
// business.
func (a *AWG) Run() error {
	if a.armed == nil {
		return preconditionErr("no program armed")
	}
	if err := a.dev.Exec(fmt.Sprintf("SEQ:JUMP:IMM %d", a.armed.Position)); err != nil {
		return deviceErr("jump to armed program", err)
	}
	if err := a.dev.Exec(device.CmdRun); err != nil {
		return deviceErr("trigger playback", err)
	}
	return nil
}

// Programs returns the registered program names, sorted.
func (a *AWG) Programs() []string {
	names := make([]string, 0, len(a.programs))
	for name := range a.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProgramInfo summarizes one registered program.
func (a *AWG) ProgramInfo(name string) (ProgramInfo, error) {
	entry, ok := a.programs[name]
	if !ok {
		return ProgramInfo{}, unknownProgramErr(name)
	}
	positions := append([]int(nil), entry.positions...)
	return ProgramInfo{
		Name:          name,
		FirstPosition: positions[0],
		Positions:     positions,
		ElementCount:  len(entry.rows),
	}, nil
}
