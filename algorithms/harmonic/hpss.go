package harmonic

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
	"github.com/RyanBlaney/sonido-camelot/algorithms/filters"
	"github.com/RyanBlaney/sonido-camelot/algorithms/spectral"
)

// IsolatorConfig configures median-filter harmonic/percussive separation
type IsolatorConfig struct {
	FFTSize          int     `json:"fft_size"`
	HopSize          int     `json:"hop_size"`
	HarmonicKernel   int     `json:"harmonic_kernel"`   // frames, median across time
	PercussiveKernel int     `json:"percussive_kernel"` // bins, median across frequency
	Margin           float64 `json:"margin"`            // >= 1, higher rejects more percussive energy

	// Optional 60 Hz - 1 kHz band limiting of the harmonic output
	BandLimit  bool    `json:"band_limit"`
	BandLowHz  float64 `json:"band_low_hz"`
	BandHighHz float64 `json:"band_high_hz"`

	// Band used for the tonal flatness measurement
	FlatnessLowHz  float64 `json:"flatness_low_hz"`
	FlatnessHighHz float64 `json:"flatness_high_hz"`
}

// DefaultIsolatorConfig returns the separation settings used for key analysis
func DefaultIsolatorConfig() IsolatorConfig {
	return IsolatorConfig{
		FFTSize:          2048,
		HopSize:          512,
		HarmonicKernel:   17,
		PercussiveKernel: 17,
		Margin:           1.0,
		BandLimit:        false,
		BandLowHz:        60,
		BandHighHz:       1000,
		FlatnessLowHz:    65,
		FlatnessHighHz:   2100,
	}
}

// Separation is the output of HarmonicIsolator.Separate
type Separation struct {
	Harmonic   []float64 // same length as the input
	Percussive []float64 // same length as the input

	// HarmonicRatio is the share of spectral energy assigned to the harmonic mask
	HarmonicRatio float64
	// Flatness of the time-averaged harmonic power spectrum in the flatness band.
	// Near 0 for pitched material, near 1 for noise.
	Flatness float64
}

// HarmonicIsolator suppresses percussive energy so pitch content dominates
// the chroma. It holds no per-call state and is safe for concurrent use.
type HarmonicIsolator struct {
	config   IsolatorConfig
	stft     *spectral.STFT
	flatness *spectral.SpectralFlatness
}

// NewHarmonicIsolator creates an isolator; zero fields fall back to defaults
func NewHarmonicIsolator(config IsolatorConfig) *HarmonicIsolator {
	def := DefaultIsolatorConfig()
	if config.FFTSize <= 0 {
		config.FFTSize = def.FFTSize
	}
	if config.HopSize <= 0 {
		config.HopSize = def.HopSize
	}
	if config.HarmonicKernel <= 0 {
		config.HarmonicKernel = def.HarmonicKernel
	}
	if config.PercussiveKernel <= 0 {
		config.PercussiveKernel = def.PercussiveKernel
	}
	if config.Margin < 1 {
		config.Margin = 1
	}
	if config.FlatnessHighHz <= config.FlatnessLowHz {
		config.FlatnessLowHz, config.FlatnessHighHz = def.FlatnessLowHz, def.FlatnessHighHz
	}

	return &HarmonicIsolator{
		config:   config,
		stft:     spectral.NewSTFT(),
		flatness: spectral.NewSpectralFlatness(),
	}
}

// Config returns the effective configuration
func (hi *HarmonicIsolator) Config() IsolatorConfig {
	return hi.config
}

// Separate splits signal into harmonic and percussive components. The input
// is not modified.
func (hi *HarmonicIsolator) Separate(signal []float64, sampleRate int) (*Separation, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if len(signal) == 0 {
		return &Separation{Harmonic: []float64{}, Percussive: []float64{}}, nil
	}

	stftResult, err := hi.stft.Compute(signal, hi.config.FFTSize, hi.config.HopSize, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	mag := stftResult.Magnitude
	harmonicEnv := medianAcrossTime(mag, hi.config.HarmonicKernel)
	percussiveEnv := medianAcrossFrequency(mag, hi.config.PercussiveKernel)

	frames, bins := stftResult.TimeFrames, stftResult.FreqBins
	harmonicSpec := make([][]complex128, frames)
	percussiveSpec := make([][]complex128, frames)
	meanPower := make([]float64, bins)

	totalEnergy, harmonicEnergy := 0.0, 0.0
	margin := hi.config.Margin

	for t := range frames {
		harmonicSpec[t] = make([]complex128, bins)
		percussiveSpec[t] = make([]complex128, bins)

		for f := range bins {
			h := harmonicEnv[t][f]
			p := percussiveEnv[t][f]
			maskH := softMask(h, margin*p)
			maskP := softMask(p, margin*h)

			x := stftResult.Complex[t][f]
			harmonicSpec[t][f] = x * complex(maskH, 0)
			percussiveSpec[t][f] = x * complex(maskP, 0)

			m := mag[t][f]
			hm := m * maskH
			totalEnergy += m * m
			harmonicEnergy += hm * hm
			meanPower[f] += hm * hm
		}
	}

	harmonic, err := hi.stft.Inverse(stftResult, harmonicSpec)
	if err != nil {
		return nil, fmt.Errorf("inverse stft (harmonic): %w", err)
	}
	percussive, err := hi.stft.Inverse(stftResult, percussiveSpec)
	if err != nil {
		return nil, fmt.Errorf("inverse stft (percussive): %w", err)
	}

	lowHz, highHz := hi.config.FlatnessLowHz, hi.config.FlatnessHighHz
	if hi.config.BandLimit {
		limiter, err := filters.NewBandLimiter(sampleRate, hi.config.BandLowHz, hi.config.BandHighHz)
		if err != nil {
			return nil, fmt.Errorf("band limiter: %w", err)
		}
		harmonic = limiter.Process(harmonic)
		lowHz = math.Max(lowHz, hi.config.BandLowHz)
		highHz = math.Min(highHz, hi.config.BandHighHz)
	}

	for f := range meanPower {
		meanPower[f] /= float64(frames)
	}

	sep := &Separation{
		Harmonic:   harmonic,
		Percussive: percussive,
		Flatness:   hi.flatness.ComputeBand(meanPower, stftResult.FreqResolution, lowHz, highHz),
	}
	if totalEnergy > 0 {
		sep.HarmonicRatio = harmonicEnergy / totalEnergy
	}

	return sep, nil
}

// softMask computes x^2 / (x^2 + ref^2); both zero yields 0
func softMask(x, ref float64) float64 {
	x2 := x * x
	denom := x2 + ref*ref
	if denom < 1e-30 {
		return 0
	}
	return x2 / denom
}

// medianAcrossTime filters each frequency bin along the time axis.
// The window is truncated at the edges.
func medianAcrossTime(mag [][]float64, kernel int) [][]float64 {
	frames := len(mag)
	if frames == 0 {
		return nil
	}
	bins := len(mag[0])
	half := kernel / 2

	out := make([][]float64, frames)
	for t := range out {
		out[t] = make([]float64, bins)
	}

	buf := make([]float64, 0, kernel)
	for f := range bins {
		for t := range frames {
			lo := max(0, t-half)
			hi := min(frames-1, t+half)
			buf = buf[:0]
			for k := lo; k <= hi; k++ {
				buf = append(buf, mag[k][f])
			}
			out[t][f] = common.MedianInPlace(buf)
		}
	}
	return out
}

// medianAcrossFrequency filters each frame along the frequency axis
func medianAcrossFrequency(mag [][]float64, kernel int) [][]float64 {
	half := kernel / 2
	out := make([][]float64, len(mag))

	buf := make([]float64, 0, kernel)
	for t, frame := range mag {
		bins := len(frame)
		out[t] = make([]float64, bins)
		for f := range bins {
			lo := max(0, f-half)
			hi := min(bins-1, f+half)
			buf = append(buf[:0], frame[lo:hi+1]...)
			out[t][f] = common.MedianInPlace(buf)
		}
	}
	return out
}
