package spectral

// SpectralRolloff computes spectral rolloff frequency
type SpectralRolloff struct {
	sampleRate int
}

// NewSpectralRolloff creates a new spectral rolloff calculator
func NewSpectralRolloff(sampleRate int) *SpectralRolloff {
	return &SpectralRolloff{
		sampleRate: sampleRate,
	}
}

// Compute calculates spectral rolloff for a single positive-frequency magnitude
// spectrum. threshold is typically 0.85 for the 85th percentile of energy.
func (sr *SpectralRolloff) Compute(spectrum []float64, threshold float64) float64 {
	if len(spectrum) < 2 {
		return 0.0
	}

	totalEnergy := 0.0
	for _, mag := range spectrum {
		totalEnergy += mag * mag
	}

	if totalEnergy == 0 {
		return 0
	}

	targetEnergy := threshold * totalEnergy
	cumulativeEnergy := 0.0

	for i := range len(spectrum) {
		cumulativeEnergy += spectrum[i] * spectrum[i]
		if cumulativeEnergy >= targetEnergy {
			return sr.binFrequency(i, len(spectrum))
		}
	}

	return sr.binFrequency(len(spectrum)-1, len(spectrum))
}

// binFrequency maps bin index to Hz for a spectrum of numBins = fftSize/2+1
func (sr *SpectralRolloff) binFrequency(bin, numBins int) float64 {
	return float64(bin) * float64(sr.sampleRate) / float64((numBins-1)*2)
}
