// Package program compiles flattened waveform programs into the sequencing
// form an AWG plays back: one element per program leaf, each entry either a
// reference to a quantized binary payload or an integer idle length.
//
// The hierarchical pulse representation itself lives upstream; this package
// consumes it through the Program interface and requires it to be flattened
// to depth 1 before compilation. Table is a minimal concrete Program used by
// the CLI loader and tests.
package program
