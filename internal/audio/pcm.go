package audio

import (
	"encoding/binary"
	"math"
)

// maxFloat32Magnitude guards format detection: real Float32 audio stays in
// [-1.0, 1.0], so any sample beyond 1.5 means the bytes are actually Int16
// data that happens to be 4-byte aligned.
const maxFloat32Magnitude = 1.5

// DecodePCM converts a raw PCM byte chunk into normalized float32 samples
// in [-1.0, 1.0]. The encoding is auto-detected: Float32 little-endian if
// the length is a multiple of 4 and all magnitudes are plausible, otherwise
// Int16 little-endian normalized by 32768. Malformed chunks return nil.
func DecodePCM(raw []byte) []float32 {
	n := len(raw)
	if n == 0 {
		return nil
	}

	if n%4 == 0 {
		if samples, ok := decodeFloat32(raw); ok {
			return samples
		}
	}

	if n%2 == 0 {
		return decodeInt16(raw)
	}

	return nil
}

func decodeFloat32(raw []byte) ([]float32, bool) {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		v := math.Float32frombits(bits)
		if v != v || v > maxFloat32Magnitude || v < -maxFloat32Magnitude {
			return nil, false
		}
		samples[i] = v
	}
	return samples, true
}

func decodeInt16(raw []byte) []float32 {
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// RMS calculates the root mean square of normalized audio samples.
// Used for silence detection on the buffer tail.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// TailIsSilence reports whether the trailing tailSamples of the buffer fall
// below the RMS threshold. Returns false when the buffer is shorter than the
// requested tail, since there is not enough audio to judge.
func TailIsSilence(samples []float32, tailSamples int, threshold float64) bool {
	if tailSamples <= 0 || len(samples) < tailSamples {
		return false
	}
	return RMS(samples[len(samples)-tailSamples:]) < threshold
}
