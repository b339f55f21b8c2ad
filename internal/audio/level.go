package audio

import "math"

// Level computes the RMS level of a frame of float samples. For inputs in
// [-1, 1] the result is in [0, 1]; silence yields 0. Used purely for UI
// feedback, it has no effect on the encoded stream.
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
