// Package awg synchronizes compiled waveform programs onto an AWG
// instrument.
//
// The AWG type owns a local mirror of device state: the waveform catalog
// (a content-addressed WaveformStore), the sequence table, and a registry of
// live programs. Uploads are incremental and transactional: the diff against
// the mirror decides which waveforms to send, free sequence-table slots are
// claimed (extending the table when short), non-contiguous slots are linked
// with branch instructions, and every forward device write records an inverse
// operation on an undo log that runs in reverse if any later step fails.
//
// The instrument is an exclusively owned, command-at-a-time resource. Nothing
// in this package is safe for concurrent use.
package awg
