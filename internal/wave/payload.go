package wave

import "fmt"

// Payload is one immutable binary waveform: quantized analog samples plus two
// marker bit streams of the same length. Construct values with New or Idle;
// the zero Payload is "no payload" and reports IsZero.
//
// Markers are stored as one byte per sample (0 or 1). A marker stream that is
// entirely zero is normalized away at construction, so a payload built with an
// explicit all-zero marker and one built with no marker at all are identical,
// digest included.
type Payload struct {
	samples []uint16
	marker1 []byte
	marker2 []byte
	digest  Digest
}

// New builds a payload from quantized samples and optional marker streams.
// Marker streams must be nil or have the same length as samples.
func New(samples []uint16, marker1, marker2 []byte) (Payload, error) {
	if len(samples) == 0 {
		return Payload{}, fmt.Errorf("payload must contain at least one sample")
	}
	if marker1 != nil && len(marker1) != len(samples) {
		return Payload{}, fmt.Errorf("marker 1 length %d does not match sample count %d", len(marker1), len(samples))
	}
	if marker2 != nil && len(marker2) != len(samples) {
		return Payload{}, fmt.Errorf("marker 2 length %d does not match sample count %d", len(marker2), len(samples))
	}
	p := Payload{
		samples: samples,
		marker1: normalizeMarker(marker1),
		marker2: normalizeMarker(marker2),
	}
	p.digest = computeDigest(p)
	return p, nil
}

// MustNew is like New but panics on error. Use in tests and for payloads with
// statically known shapes.
func MustNew(samples []uint16, marker1, marker2 []byte) Payload {
	p, err := New(samples, marker1, marker2)
	if err != nil {
		panic(err)
	}
	return p
}

// Idle returns the idle payload of the given length: every sample holds
// IdleCode, both markers low. It is the device's safe resting output.
func Idle(length int) Payload {
	samples := make([]uint16, length)
	for i := range samples {
		samples[i] = IdleCode
	}
	return MustNew(samples, nil, nil)
}

// normalizeMarker maps all-zero marker streams to nil and clamps every
// sample to 0 or 1.
func normalizeMarker(m []byte) []byte {
	any := false
	for _, b := range m {
		if b != 0 {
			any = true
			break
		}
	}
	if !any {
		return nil
	}
	out := make([]byte, len(m))
	for i, b := range m {
		if b != 0 {
			out[i] = 1
		}
	}
	return out
}

// IsZero reports whether p is the zero value rather than a constructed
// payload.
func (p Payload) IsZero() bool {
	return p.samples == nil
}

// Len returns the sample count.
func (p Payload) Len() int {
	return len(p.samples)
}

// Samples returns the quantized sample codes. Callers must not modify the
// returned slice.
func (p Payload) Samples() []uint16 {
	return p.samples
}

// Marker1 returns the first marker stream, or nil if it is entirely low.
// Callers must not modify the returned slice.
func (p Payload) Marker1() []byte {
	return p.marker1
}

// Marker2 returns the second marker stream, or nil if it is entirely low.
// Callers must not modify the returned slice.
func (p Payload) Marker2() []byte {
	return p.marker2
}

// Digest returns the content digest computed at construction.
func (p Payload) Digest() Digest {
	return p.digest
}

// Equal reports element-wise equality of samples and markers. Because digests
// are computed over exactly that data, it reduces to digest comparison.
func (p Payload) Equal(o Payload) bool {
	return !p.IsZero() && !o.IsZero() && p.digest == o.digest
}

// IsIdle reports whether the payload is an idle waveform: every sample at
// IdleCode with both markers low.
func (p Payload) IsIdle() bool {
	if p.IsZero() || p.marker1 != nil || p.marker2 != nil {
		return false
	}
	for _, s := range p.samples {
		if s != IdleCode {
			return false
		}
	}
	return true
}
