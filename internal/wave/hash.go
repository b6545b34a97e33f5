package wave

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// domainPayload versions the digest layout. Bump the suffix if the encoding
// below ever changes so old and new digests can never collide silently.
const domainPayload = "awgctl/waveform/v1"

// Digest is the content address of a payload: SHA-256 over the domain prefix,
// a null separator, and the length-prefixed sample and marker arrays.
type Digest [sha256.Size]byte

// Hex returns the full lowercase hex form.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Short returns the 12-character prefix used in generated device names. Long
// enough to make accidental collisions implausible, short enough for
// instrument name limits.
func (d Digest) Short() string {
	return d.Hex()[:12]
}

func computeDigest(p Payload) Digest {
	h := sha256.New()
	h.Write([]byte(domainPayload))
	h.Write([]byte{0x00}) // separator between domain and data

	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(p.samples)))
	h.Write(n[:])

	buf := make([]byte, 2*len(p.samples))
	for i, s := range p.samples {
		binary.LittleEndian.PutUint16(buf[2*i:], s)
	}
	h.Write(buf)

	// Presence flags keep nil and materialized markers distinguishable from
	// sample data of the same bytes.
	for _, m := range [][]byte{p.marker1, p.marker2} {
		if m == nil {
			h.Write([]byte{0x00})
		} else {
			h.Write([]byte{0x01})
			h.Write(m)
		}
	}

	var d Digest
	h.Sum(d[:0])
	return d
}

// IdleName returns the deterministic device name of the idle waveform of the
// given length. Idle waveforms are shared between programs, so the name must
// be derivable from the length alone.
func IdleName(length int) string {
	return fmt.Sprintf("idle_%d", length)
}

// GeneratedName derives the device name for a program's waveform from its
// content digest. Names are reproducible across sessions: recompiling the
// same program yields the same names, which is what makes diff-based uploads
// find previously uploaded content.
func GeneratedName(program string, d Digest) string {
	return program + "_" + d.Short()
}
