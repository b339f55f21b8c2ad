package audio

import "math"

// Resample converts samples from sourceRate to targetRate using linear
// interpolation. The output length is round(len(samples) * targetRate / sourceRate).
// When the rates match the input slice is returned unchanged to avoid a
// needless allocation.
//
// No anti-aliasing filter is applied. This is a deliberate simplicity/latency
// tradeoff for speech-band audio, not a DSP-optimal design: downsampling from
// high native rates can fold high-frequency content into the output. Interpolation
// may also overshoot slightly outside [-1, 1]; the encoder clamps, not this function.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate {
		return samples
	}

	outLen := int(math.Round(float64(len(samples)) * float64(targetRate) / float64(sourceRate)))
	out := make([]float32, outLen)

	ratio := float64(sourceRate) / float64(targetRate)
	last := len(samples) - 1

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		lo := int(pos)
		if lo > last {
			lo = last
		}
		hi := lo + 1
		if hi > last {
			hi = last
		}
		frac := float32(pos - float64(lo))
		out[i] = samples[lo]*(1-frac) + samples[hi]*frac
	}

	return out
}
