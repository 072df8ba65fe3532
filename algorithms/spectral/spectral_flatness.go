package spectral

import (
	"math"
)

// SpectralFlatness computes spectral flatness (Wiener entropy)
type SpectralFlatness struct {
	minThreshold float64 // Minimum value to avoid log(0)
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		minThreshold: 1e-12,
	}
}

// Compute calculates spectral flatness of a non-negative spectrum.
// Returns the ratio of geometric mean to arithmetic mean (0-1 range).
// Tonal content sits near 0, white noise near 1.
func (sf *SpectralFlatness) Compute(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}

	logSum := 0.0
	arithmeticMean := 0.0
	for _, v := range spectrum {
		logSum += math.Log(math.Max(v, sf.minThreshold))
		arithmeticMean += v
	}
	arithmeticMean /= float64(len(spectrum))

	if arithmeticMean <= sf.minThreshold {
		return 0.0
	}

	geometricMean := math.Exp(logSum / float64(len(spectrum)))

	return math.Min(geometricMean/arithmeticMean, 1.0)
}

// ComputeBand computes flatness over bins whose centre frequency lies in
// [lowHz, highHz]. binHz is the width of one bin.
func (sf *SpectralFlatness) ComputeBand(spectrum []float64, binHz, lowHz, highHz float64) float64 {
	if binHz <= 0 || len(spectrum) == 0 {
		return 0.0
	}

	lo := max(0, int(math.Ceil(lowHz/binHz)))
	hi := min(len(spectrum)-1, int(math.Floor(highHz/binHz)))
	if hi < lo {
		return 0.0
	}
	return sf.Compute(spectrum[lo : hi+1])
}
