package audioio

import "encoding/binary"

// FloatToPCM16 converts samples in [-1, 1] to PCM16, clamping out of range
// values. Negative samples scale by 0x8000 and positive by 0x7FFF so both
// ends of the range are reachable.
func FloatToPCM16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7FFF)
		}
	}
	return out
}

// PCM16ToFloat converts PCM16 samples to floats in [-1, 1).
func PCM16ToFloat(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768
	}
	return out
}

// BytesToSamples decodes little-endian PCM16. A trailing odd byte is dropped.
func BytesToSamples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// SamplesToBytes encodes samples as little-endian PCM16.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Resample converts between sample rates by linear interpolation, which is
// adequate for speech.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	step := float64(fromRate) / float64(toRate)
	n := len(samples) * toRate / fromRate
	out := make([]int16, n)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(j)
		a, b := float64(samples[j]), float64(samples[j+1])
		out[i] = int16(a + frac*(b-a))
	}
	return out
}

// ResampleChunk returns c at the target rate.
func ResampleChunk(c Chunk, toRate int) Chunk {
	if c.SampleRate == toRate {
		return c
	}
	return Chunk{Samples: Resample(c.Samples, c.SampleRate, toRate), SampleRate: toRate, At: c.At}
}
