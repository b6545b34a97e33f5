// Package harness runs declarative YAML scenarios against a simulated
// instrument. A scenario defines an instrument profile, a set of pulse
// programs, and an operation script (upload, arm, run, unload, clear);
// running it produces an event log and a final state capture that tests
// compare against golden files.
package harness
