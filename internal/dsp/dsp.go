// Package dsp conditions captured speech before recognition.
//
// Every function is pure: it takes a mono float32 slice and returns a new
// one (or the input itself when there is nothing to do). Preprocess chains
// the stages in the order the recognizer expects; Fallback is the permissive
// path used when the strict pipeline leaves too little voiced audio.
package dsp

import "math"

// Params holds the conditioning constants.
type Params struct {
	SampleRate int

	HighPassCutoffHz float32

	NoiseWindow      int
	NoiseFloorFactor float32
	NoiseAttenuation float32

	NormalizeMinAmp    float32
	NormalizeTargetAmp float32

	VADMinEnergy float32
	VADZCRMin    float32
	VADZCRMax    float32
}

// DefaultParams returns the constants tuned for 16 kHz dictation.
func DefaultParams() Params {
	return Params{
		SampleRate:         16000,
		HighPassCutoffHz:   80,
		NoiseWindow:        256,
		NoiseFloorFactor:   0.3,
		NoiseAttenuation:   0.1,
		NormalizeMinAmp:    0.001,
		NormalizeTargetAmp: 0.95,
		VADMinEnergy:       0.001,
		VADZCRMin:          0.02,
		VADZCRMax:          0.5,
	}
}

// TrimSilence drops leading and trailing audio whose local RMS, measured
// over a window of sampleRate/50 samples centred on each index, does not
// exceed rmsThreshold. If nothing is trimmed the input slice is returned.
func TrimSilence(audio []float32, sampleRate int, rmsThreshold float32) []float32 {
	if len(audio) == 0 {
		return audio
	}
	w := max(1, sampleRate/50)
	n := len(audio)

	loud := func(idx int) bool {
		a := max(0, idx-w/2)
		b := min(n, idx+w/2)
		var e float64
		for i := a; i < b; i++ {
			e += float64(audio[i]) * float64(audio[i])
		}
		var rms float32
		if b > a {
			rms = float32(math.Sqrt(e / float64(b-a)))
		}
		return rms > rmsThreshold
	}

	l, r := 0, n
	for l < r && !loud(l) {
		l++
	}
	for r > l && !loud(r-1) {
		r--
	}
	if l == 0 && r == n {
		return audio
	}
	out := make([]float32, r-l)
	copy(out, audio[l:r])
	return out
}

// HighPassFilter applies a single-pole IIR high-pass filter. The first
// output sample is the unfiltered first input sample.
func HighPassFilter(audio []float32, sampleRate int, cutoffHz float32) []float32 {
	if len(audio) < 2 {
		return audio
	}
	rc := 1 / (2 * math.Pi * float64(cutoffHz))
	dt := 1 / float64(sampleRate)
	alpha := float32(rc / (rc + dt))

	out := make([]float32, len(audio))
	out[0] = audio[0]
	for i := 1; i < len(audio); i++ {
		out[i] = alpha * (out[i-1] + audio[i] - audio[i-1])
	}
	return out
}

// RemoveNoise soft-gates samples quieter than a noise floor estimated from
// the peak of the first windowSize samples. Inputs shorter than two windows
// pass through unchanged.
func RemoveNoise(audio []float32, windowSize int, floorFactor, attenuation float32) []float32 {
	if len(audio) < windowSize*2 {
		return audio
	}
	floor := peak(audio[:windowSize]) * floorFactor

	out := make([]float32, len(audio))
	for i, s := range audio {
		if abs32(s) < floor {
			s *= attenuation
		}
		out[i] = s
	}
	return out
}

// Normalize scales the clip toward targetAmp when its peak exceeds minAmp.
// It never amplifies: quiet clips whose peak is already below the target
// are returned with the same values.
func Normalize(audio []float32, minAmp, targetAmp float32) []float32 {
	out := make([]float32, len(audio))
	copy(out, audio)

	p := peak(audio)
	if p > minAmp {
		scale := min(targetAmp/p, 1)
		for i := range out {
			out[i] *= scale
		}
	}
	return out
}

// DetectVoiceActivity reports whether the clip has more than minEnergy mean
// energy and a zero-crossing rate strictly between zcrMin and zcrMax.
func DetectVoiceActivity(audio []float32, minEnergy, zcrMin, zcrMax float32) bool {
	if len(audio) == 0 {
		return false
	}
	energy, zcr := Stats(audio)
	return energy > float64(minEnergy) && zcr > float64(zcrMin) && zcr < float64(zcrMax)
}

// Stats returns the mean energy and zero-crossing rate of the clip. Zero is
// treated as non-negative when counting sign changes.
func Stats(audio []float32) (energy, zcr float64) {
	if len(audio) == 0 {
		return 0, 0
	}
	var crossings int
	for i, s := range audio {
		energy += float64(s) * float64(s)
		if i > 0 && (audio[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}
	n := float64(len(audio))
	return energy / n, float64(crossings) / n
}

// Preprocess runs the strict conditioning chain:
// trim silence, high-pass, noise gate, normalize.
func Preprocess(audio []float32, p Params) []float32 {
	out := TrimSilence(audio, p.SampleRate, p.NormalizeMinAmp)
	out = HighPassFilter(out, p.SampleRate, p.HighPassCutoffHz)
	out = RemoveNoise(out, p.NoiseWindow, p.NoiseFloorFactor, p.NoiseAttenuation)
	return Normalize(out, p.NormalizeMinAmp, p.NormalizeTargetAmp)
}

// Fallback runs only the high-pass filter and normalization.
func Fallback(audio []float32, p Params) []float32 {
	out := HighPassFilter(audio, p.SampleRate, p.HighPassCutoffHz)
	return Normalize(out, p.NormalizeMinAmp, p.NormalizeTargetAmp)
}

// VoiceActive applies DetectVoiceActivity with the thresholds in p.
func (p Params) VoiceActive(audio []float32) bool {
	return DetectVoiceActivity(audio, p.VADMinEnergy, p.VADZCRMin, p.VADZCRMax)
}

func peak(audio []float32) float32 {
	var m float32
	for _, s := range audio {
		if a := abs32(s); a > m {
			m = a
		}
	}
	return m
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
