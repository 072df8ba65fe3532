package filters

import (
	"fmt"
	"math"
)

// BiquadType selects the cookbook response of a Biquad
type BiquadType int

const (
	Bandpass BiquadType = iota
	Lowpass
	Highpass
)

// Biquad implements a second order IIR section.
//
// Coefficients follow Robert Bristow-Johnson's
// "Cookbook formulae for audio EQ biquad filter coefficients"
// Reference: https://webaudio.github.io/Audio-EQ-Cookbook/audio-eq-cookbook.html
type Biquad struct {
	kind       BiquadType
	sampleRate int
	freq       float64 // Center (bandpass) or corner frequency in Hz
	qFactor    float64

	// Normalized coefficients (a0 == 1)
	b0, b1, b2 float64
	a1, a2     float64

	// Direct form II state
	w1, w2 float64
}

// NewBandpassFilter creates a bandpass biquad. Q is centerFreq/bandwidth.
func NewBandpassFilter(sampleRate int, centerFreq, bandwidth float64) *Biquad {
	return newBiquad(Bandpass, sampleRate, centerFreq, centerFreq/bandwidth)
}

// NewLowpassFilter creates a lowpass biquad with the given corner and Q.
// Q = 1/sqrt(2) gives a Butterworth response.
func NewLowpassFilter(sampleRate int, cutoff, qFactor float64) *Biquad {
	return newBiquad(Lowpass, sampleRate, cutoff, qFactor)
}

// NewHighpassFilter creates a highpass biquad with the given corner and Q.
func NewHighpassFilter(sampleRate int, cutoff, qFactor float64) *Biquad {
	return newBiquad(Highpass, sampleRate, cutoff, qFactor)
}

func newBiquad(kind BiquadType, sampleRate int, freq, qFactor float64) *Biquad {
	bq := &Biquad{
		kind:       kind,
		sampleRate: sampleRate,
		freq:       freq,
		qFactor:    qFactor,
	}
	bq.computeCoefficients()
	return bq
}

// computeCoefficients calculates the biquad coefficients using the cookbook formula.
func (bq *Biquad) computeCoefficients() {
	// w0 = 2*pi*f0/Fs
	w0 := 2.0 * math.Pi * bq.freq / float64(bq.sampleRate)

	// Prevent numerical issues at Nyquist
	if w0 >= math.Pi {
		w0 = math.Pi * 0.99
	}

	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2.0 * bq.qFactor)

	var b0, b1, b2 float64
	switch bq.kind {
	case Lowpass:
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
	case Highpass:
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
	default:
		// constant 0 dB peak gain
		b0 = alpha
		b1 = 0
		b2 = -alpha
	}

	a0 := 1.0 + alpha
	bq.b0 = b0 / a0
	bq.b1 = b1 / a0
	bq.b2 = b2 / a0
	bq.a1 = -2.0 * cosW0 / a0
	bq.a2 = (1.0 - alpha) / a0
}

// Process filters a single sample.
//
// w[n] = x[n] - a1*w[n-1] - a2*w[n-2]
// y[n] = b0*w[n] + b1*w[n-1] + b2*w[n-2]
func (bq *Biquad) Process(input float64) float64 {
	w := input - bq.a1*bq.w1 - bq.a2*bq.w2
	output := bq.b0*w + bq.b1*bq.w1 + bq.b2*bq.w2

	bq.w2 = bq.w1
	bq.w1 = w

	return output
}

// ProcessBuffer filters an entire buffer, returning a new slice.
func (bq *Biquad) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = bq.Process(sample)
	}
	return output
}

// Reset clears the filter state.
// Call this when processing discontinuous audio segments.
func (bq *Biquad) Reset() {
	bq.w1, bq.w2 = 0.0, 0.0
}

// FrequencyResponse returns the linear magnitude response at frequency (Hz).
//
// H(e^jw) = (b0 + b1*e^-jw + b2*e^-j2w) / (1 + a1*e^-jw + a2*e^-j2w)
func (bq *Biquad) FrequencyResponse(frequency float64) float64 {
	w := 2.0 * math.Pi * frequency / float64(bq.sampleRate)

	cosW, sinW := math.Cos(w), math.Sin(w)
	cos2W, sin2W := math.Cos(2*w), math.Sin(2*w)

	numReal := bq.b0 + bq.b1*cosW + bq.b2*cos2W
	numImag := -bq.b1*sinW - bq.b2*sin2W

	denReal := 1 + bq.a1*cosW + bq.a2*cos2W
	denImag := -bq.a1*sinW - bq.a2*sin2W

	return math.Sqrt((numReal*numReal + numImag*numImag) / (denReal*denReal + denImag*denImag))
}

// BandLimiter keeps the 60 Hz - 1 kHz region where bass and melodic
// fundamentals live, attenuating kick transients and cymbal energy.
// Each edge is a cascade of two Butterworth sections (24 dB/octave).
type BandLimiter struct {
	sampleRate int
	lowHz      float64
	highHz     float64
}

// NewBandLimiter validates the band edges against the sample rate.
func NewBandLimiter(sampleRate int, lowHz, highHz float64) (*BandLimiter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if lowHz <= 0 || highHz <= lowHz {
		return nil, fmt.Errorf("invalid band %.1f-%.1f Hz", lowHz, highHz)
	}
	if highHz >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("upper edge %.1f Hz must be below Nyquist (%d Hz)", highHz, sampleRate/2)
	}
	return &BandLimiter{sampleRate: sampleRate, lowHz: lowHz, highHz: highHz}, nil
}

// Process returns a band-limited copy of signal. Filter state is fresh for
// every call so concurrent segments never share history.
func (bl *BandLimiter) Process(signal []float64) []float64 {
	stages := []*Biquad{
		NewHighpassFilter(bl.sampleRate, bl.lowHz, math.Sqrt2/2),
		NewHighpassFilter(bl.sampleRate, bl.lowHz, math.Sqrt2/2),
		NewLowpassFilter(bl.sampleRate, bl.highHz, math.Sqrt2/2),
		NewLowpassFilter(bl.sampleRate, bl.highHz, math.Sqrt2/2),
	}

	out := signal
	for _, stage := range stages {
		out = stage.ProcessBuffer(out)
	}
	return out
}

// Response returns the cascade's linear magnitude response at frequency (Hz).
func (bl *BandLimiter) Response(frequency float64) float64 {
	hp := NewHighpassFilter(bl.sampleRate, bl.lowHz, math.Sqrt2/2)
	lp := NewLowpassFilter(bl.sampleRate, bl.highHz, math.Sqrt2/2)
	h := hp.FrequencyResponse(frequency) * lp.FrequencyResponse(frequency)
	return h * h
}
