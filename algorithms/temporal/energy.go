package temporal

import (
	"math"

	"github.com/mjibson/go-dsp/window"

	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
	"github.com/RyanBlaney/sonido-camelot/algorithms/spectral"
)

// Energy rating weights and ranges
const (
	loudnessWeight   = 0.6
	brightnessWeight = 0.25
	tempoWeight      = 0.15

	silenceDB        = -120.0
	loudnessFloorDB  = -40.0
	loudnessRangeDB  = 35.0
	brightnessFloor  = 500.0
	brightnessRange  = 5500.0
	tempoFloorBPM    = 60.0
	tempoRangeBPM    = 120.0
	rolloffThreshold = 0.85
)

// EnergyFeatures holds the components of an energy rating
type EnergyFeatures struct {
	RMS        float64 `json:"rms"`
	LoudnessDB float64 `json:"loudness_db"`
	RolloffHz  float64 `json:"rolloff_hz"` // mean 85% spectral rolloff

	// Normalised components in [0, 1]
	Loudness   float64 `json:"loudness"`
	Brightness float64 `json:"brightness"`
	Tempo      float64 `json:"tempo"`

	// Rating on the 1-10 scale
	Rating int `json:"rating"`
}

// EnergyEstimator rates perceived energy from loudness, brightness and tempo.
// Safe for concurrent use.
type EnergyEstimator struct {
	frameSize int
	hopSize   int
	window    []float64
	fft       *spectral.FFT
}

// NewEnergyEstimator creates an energy estimator with 2048-sample frames
func NewEnergyEstimator() *EnergyEstimator {
	return &EnergyEstimator{
		frameSize: 2048,
		hopSize:   512,
		window:    window.Hann(2048),
		fft:       spectral.NewFFT(),
	}
}

// Estimate rates signal on the 1-10 scale. bpm is the track tempo, 0 if unknown.
// Silence rates 1.
func (ee *EnergyEstimator) Estimate(signal []float64, sampleRate int, bpm int) EnergyFeatures {
	var features EnergyFeatures

	features.RMS = common.RMS(signal)
	features.LoudnessDB = silenceDB
	if features.RMS > 0 {
		features.LoudnessDB = math.Max(20*math.Log10(features.RMS), silenceDB)
	}
	features.RolloffHz = ee.meanRolloff(signal, sampleRate)

	features.Loudness = common.Clamp((features.LoudnessDB-loudnessFloorDB)/loudnessRangeDB, 0, 1)
	features.Brightness = common.Clamp((features.RolloffHz-brightnessFloor)/brightnessRange, 0, 1)
	features.Tempo = common.Clamp((float64(bpm)-tempoFloorBPM)/tempoRangeBPM, 0, 1)

	score := loudnessWeight*features.Loudness +
		brightnessWeight*features.Brightness +
		tempoWeight*features.Tempo
	features.Rating = int(common.Clamp(math.Round(1+9*score), 1, 10))

	return features
}

// meanRolloff averages the rolloff of every non-silent frame
func (ee *EnergyEstimator) meanRolloff(signal []float64, sampleRate int) float64 {
	if sampleRate <= 0 || len(signal) < ee.frameSize {
		return 0
	}

	rolloff := spectral.NewSpectralRolloff(sampleRate)
	frame := make([]float64, ee.frameSize)
	mag := make([]float64, ee.frameSize/2+1)

	total, frames := 0.0, 0
	for start := 0; start+ee.frameSize <= len(signal); start += ee.hopSize {
		for i := range frame {
			frame[i] = signal[start+i] * ee.window[i]
		}
		spectral.MagnitudeSpectrum(mag, ee.fft.Compute(frame))

		if r := rolloff.Compute(mag, rolloffThreshold); r > 0 {
			total += r
			frames++
		}
	}

	if frames == 0 {
		return 0
	}
	return total / float64(frames)
}
