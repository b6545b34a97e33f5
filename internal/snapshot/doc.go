// Package snapshot persists captures of orchestrator state to a local SQLite
// file for diagnostics and audits: which waveforms and programs were on the
// instrument, when, at which sequence-table positions.
//
// Capturing is strictly one-way. Restoring a capture onto a device is not
// supported anywhere in this module; the stored canonical JSON body exists to
// be diffed and inspected, not replayed.
package snapshot
