// Package wave defines binary waveform payloads as an AWG stores them:
// fixed-length arrays of 14-bit quantized sample codes plus two per-sample
// marker bit streams.
//
// Payloads are immutable and content-addressed. Identity is a
// domain-separated SHA-256 digest computed over the quantized data, so two
// payloads compare equal exactly when every array is element-wise equal, and
// generated device names derived from the digest are stable across process
// runs.
package wave
