package harmonic

import (
	"math"

	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
)

// SpectralPeak represents a detected spectral peak
type SpectralPeak struct {
	Frequency float64 // Interpolated peak frequency in Hz
	Magnitude float64 // Interpolated peak magnitude
	BinIndex  int     // Original FFT bin index
}

// SpectralPeaks picks local maxima from a magnitude spectrum
type SpectralPeaks struct {
	sampleRate        int
	minFreq           float64
	maxFreq           float64
	relativeThreshold float64 // fraction of the strongest bin a peak must reach
}

// NewSpectralPeaks creates a peak picker limited to [minFreq, maxFreq]
func NewSpectralPeaks(sampleRate int, minFreq, maxFreq, relativeThreshold float64) *SpectralPeaks {
	return &SpectralPeaks{
		sampleRate:        sampleRate,
		minFreq:           minFreq,
		maxFreq:           maxFreq,
		relativeThreshold: relativeThreshold,
	}
}

// DetectPeaks returns the local maxima of a positive-frequency magnitude
// spectrum computed with an FFT of windowSize points. Peak positions are
// refined with parabolic interpolation on the log magnitude.
func (sp *SpectralPeaks) DetectPeaks(magnitudeSpectrum []float64, windowSize int) []SpectralPeak {
	if len(magnitudeSpectrum) < 3 || windowSize <= 0 {
		return []SpectralPeak{}
	}

	freqResolution := float64(sp.sampleRate) / float64(windowSize)
	lo := max(1, int(math.Ceil(sp.minFreq/freqResolution)))
	hi := min(len(magnitudeSpectrum)-2, int(math.Floor(sp.maxFreq/freqResolution)))
	if hi < lo {
		return []SpectralPeak{}
	}

	strongest := 0.0
	for i := lo; i <= hi; i++ {
		strongest = math.Max(strongest, magnitudeSpectrum[i])
	}
	if strongest <= 0 {
		return []SpectralPeak{}
	}
	threshold := strongest * sp.relativeThreshold

	logMag := make([]float64, 3)
	var peaks []SpectralPeak
	for i := lo; i <= hi; i++ {
		m := magnitudeSpectrum[i]
		if m < threshold || m <= magnitudeSpectrum[i-1] || m < magnitudeSpectrum[i+1] {
			continue
		}

		for k := range 3 {
			logMag[k] = math.Log(math.Max(magnitudeSpectrum[i-1+k], 1e-12))
		}
		offset, height := common.ParabolicPeak(logMag, 1)

		peaks = append(peaks, SpectralPeak{
			Frequency: (float64(i) + offset) * freqResolution,
			Magnitude: math.Exp(height),
			BinIndex:  i,
		})
	}

	return peaks
}
