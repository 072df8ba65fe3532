package chroma

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/RyanBlaney/sonido-camelot/algorithms/harmonic"
)

// TuningEstimator measures how far a recording sits from equal temperament
// around a reference A4
type TuningEstimator struct {
	sampleRate    int
	fftSize       int
	hopSize       int
	maxFrames     int
	referenceFreq float64
	peaks         *harmonic.SpectralPeaks
}

// NewTuningEstimator creates an estimator looking at peaks between 65 Hz and
// 2.1 kHz. A non-positive reference falls back to 440 Hz.
func NewTuningEstimator(sampleRate int, referenceFreq float64) *TuningEstimator {
	if referenceFreq <= 0 {
		referenceFreq = DefaultCQTConfig().ReferenceFreq
	}
	return &TuningEstimator{
		sampleRate:    sampleRate,
		fftSize:       8192,
		hopSize:       4096,
		maxFrames:     256,
		referenceFreq: referenceFreq,
		peaks:         harmonic.NewSpectralPeaks(sampleRate, 65, 2100, 0.01),
	}
}

// Estimate returns the tuning offset in fractions of a semitone, in [-0.5, 0.5).
// Positive values mean the recording is sharp. Silence or a signal without
// spectral peaks yields 0.
func (te *TuningEstimator) Estimate(signal []float64) float64 {
	if len(signal) == 0 || te.sampleRate <= 0 {
		return 0
	}

	// 1-cent histogram over one semitone, index 0 = -50 cents
	const bins = 100
	hist := make([]float64, bins)
	total := 0.0

	frame := make([]float64, te.fftSize)
	for _, start := range te.frameStarts(len(signal)) {
		clear(frame)
		copy(frame, signal[start:min(start+te.fftSize, len(signal))])
		window.Apply(frame, window.Hann)

		spectrum := fft.FFTReal(frame)
		mag := make([]float64, te.fftSize/2+1)
		for i := range mag {
			mag[i] = math.Hypot(real(spectrum[i]), imag(spectrum[i]))
		}

		for _, peak := range te.peaks.DetectPeaks(mag, te.fftSize) {
			deviation := te.deviation(peak.Frequency)
			idx := int(math.Floor((deviation+0.5)*bins+0.5)) % bins
			hist[idx] += peak.Magnitude
			total += peak.Magnitude
		}
	}

	if total <= 0 {
		return 0
	}

	best := 0
	for i, v := range hist {
		if v > hist[best] {
			best = i
		}
	}

	// Circular weighted mean around the modal bin
	weighted, weight := 0.0, 0.0
	for d := -2; d <= 2; d++ {
		w := hist[(best+d+bins)%bins]
		weighted += float64(d) * w
		weight += w
	}
	cents := float64(best) - 50
	if weight > 0 {
		cents += weighted / weight
	}

	offset := cents / 100
	if offset >= 0.5 {
		offset -= 1
	} else if offset < -0.5 {
		offset += 1
	}
	return offset
}

// deviation returns the distance of freq from the nearest equal-tempered
// semitone, in semitones within [-0.5, 0.5)
func (te *TuningEstimator) deviation(freq float64) float64 {
	semitones := 12 * math.Log2(freq/te.referenceFreq)
	d := semitones - math.Round(semitones)
	if d >= 0.5 {
		d -= 1
	}
	return d
}

// frameStarts spreads at most maxFrames analysis frames evenly over the signal
func (te *TuningEstimator) frameStarts(n int) []int {
	if n <= te.fftSize {
		return []int{0}
	}

	count := (n-te.fftSize)/te.hopSize + 1
	step := 1
	if count > te.maxFrames {
		step = (count + te.maxFrames - 1) / te.maxFrames
	}

	starts := make([]int, 0, min(count, te.maxFrames))
	for f := 0; f < count; f += step {
		starts = append(starts, f*te.hopSize)
	}
	return starts
}
