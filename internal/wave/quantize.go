package wave

import "math"

// Resolution is the DAC resolution in bits. Sample codes occupy
// [0, 1<<Resolution - 1].
const Resolution = 14

// IdleCode is the sample code a zero-volt output quantizes to. It is also the
// constant fill value of idle waveforms.
const IdleCode = 1<<(Resolution-1) - 1 // 8191

// maxCode is the largest representable sample code.
const maxCode = 1<<Resolution - 1 // 16383

// QuantizeVoltage converts one voltage to a fixed-point sample code:
//
//	code = round(v/amplitude * IdleCode) + IdleCode
//
// Inputs outside [-amplitude, +amplitude] saturate instead of wrapping. The
// rounding rule is half-away-from-zero (math.Round) and must not change:
// payload digests, and therefore deduplication and generated device names,
// depend on it.
func QuantizeVoltage(v, amplitude float64) uint16 {
	scaled := v / amplitude
	if scaled > 1 {
		scaled = 1
	} else if scaled < -1 {
		scaled = -1
	}
	code := int(math.Round(scaled*IdleCode)) + IdleCode
	if code < 0 {
		code = 0
	} else if code > maxCode {
		code = maxCode
	}
	return uint16(code)
}

// Quantize converts a voltage trace to sample codes, applying transform to
// each voltage first. A nil transform is the identity.
func Quantize(voltages []float64, amplitude float64, transform func(float64) float64) []uint16 {
	codes := make([]uint16, len(voltages))
	for i, v := range voltages {
		if transform != nil {
			v = transform(v)
		}
		codes[i] = QuantizeVoltage(v, amplitude)
	}
	return codes
}
