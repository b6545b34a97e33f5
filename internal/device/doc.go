// Package device defines the hardware-control surface of an AWG: a catalog
// of named binary waveforms and a 1-based, position-indexed sequence table.
//
// Instrument is the capability interface the orchestrator drives; a concrete
// implementation exists per instrument family and owns the physical
// transport. Simulator is the in-memory implementation used by tests and the
// CLI's dry-run mode, with per-operation fault injection for exercising
// rollback paths.
package device
