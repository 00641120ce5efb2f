package audio

const (
	// AutoGainThreshold is the peak below which a captured clip is boosted.
	AutoGainThreshold = 0.5
	// AutoGainTarget is the peak a quiet clip is scaled up to.
	AutoGainTarget = 0.8
)

// ApplyAutoGain boosts a quiet clip so its peak reaches target, then clamps
// every sample to [-1, 1]. Silence (peak 0) is left alone. The slice is
// modified in place and returned.
func ApplyAutoGain(samples []float32, threshold, target float32) []float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}

	if peak > 0 && peak < threshold {
		scale := target / peak
		for i := range samples {
			samples[i] *= scale
		}
	}

	for i, s := range samples {
		switch {
		case s > 1:
			samples[i] = 1
		case s < -1:
			samples[i] = -1
		}
	}
	return samples
}
