package temporal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
	"github.com/RyanBlaney/sonido-camelot/algorithms/harmonic"
)

// TempoConfig configures TempoEstimator
type TempoConfig struct {
	MinBPM float64 `json:"min_bpm"`
	MaxBPM float64 `json:"max_bpm"`

	// UsePrior weights the autocorrelation with a log-normal prior centred on
	// PriorBPM with a spread of PriorOctaves, which reduces half/double errors
	UsePrior     bool    `json:"use_prior"`
	PriorBPM     float64 `json:"prior_bpm"`
	PriorOctaves float64 `json:"prior_octaves"`

	// Percussive runs the onset envelope on the percussive part of the signal only
	Percussive bool `json:"percussive"`

	FrameSize int `json:"frame_size"`
	HopSize   int `json:"hop_size"`
}

// DefaultTempoConfig returns the tempo settings used for track analysis
func DefaultTempoConfig() TempoConfig {
	return TempoConfig{
		MinBPM:       60,
		MaxBPM:       200,
		UsePrior:     true,
		PriorBPM:     120,
		PriorOctaves: 1.0,
		Percussive:   false,
		FrameSize:    2048,
		HopSize:      512,
	}
}

// percussiveBlockSeconds bounds the memory used by the percussive variant
const percussiveBlockSeconds = 30

// TempoEstimator estimates a single tempo for a whole track from the
// autocorrelation of its onset envelope. Safe for concurrent use.
type TempoEstimator struct {
	config   TempoConfig
	onset    *OnsetEnvelope
	isolator *harmonic.HarmonicIsolator
}

// NewTempoEstimator creates a tempo estimator; invalid fields fall back to defaults
func NewTempoEstimator(config TempoConfig) *TempoEstimator {
	def := DefaultTempoConfig()
	if config.MinBPM <= 0 || config.MaxBPM <= config.MinBPM {
		config.MinBPM, config.MaxBPM = def.MinBPM, def.MaxBPM
	}
	if config.PriorBPM <= 0 {
		config.PriorBPM = def.PriorBPM
	}
	if config.PriorOctaves <= 0 {
		config.PriorOctaves = def.PriorOctaves
	}
	if config.FrameSize <= 0 {
		config.FrameSize = def.FrameSize
	}
	if config.HopSize <= 0 {
		config.HopSize = def.HopSize
	}

	te := &TempoEstimator{
		config: config,
		onset:  NewOnsetEnvelope(config.FrameSize, config.HopSize),
	}
	if config.Percussive {
		te.isolator = harmonic.NewHarmonicIsolator(harmonic.DefaultIsolatorConfig())
	}
	return te
}

// Config returns the effective configuration
func (te *TempoEstimator) Config() TempoConfig {
	return te.config
}

// EstimateTempo returns the tempo of signal rounded to whole BPM. Silence or a
// signal too short to hold one beat period at MinBPM yields 0.
func (te *TempoEstimator) EstimateTempo(signal []float64, sampleRate int) (int, error) {
	bpm, err := te.EstimateTempoPrecise(signal, sampleRate)
	if err != nil {
		return 0, err
	}
	return int(math.Round(bpm)), nil
}

// EstimateTempoPrecise is EstimateTempo without rounding
func (te *TempoEstimator) EstimateTempoPrecise(signal []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if len(signal) == 0 {
		return 0, nil
	}

	source := signal
	if te.isolator != nil {
		percussive, err := te.percussive(signal, sampleRate)
		if err != nil {
			return 0, err
		}
		source = percussive
	}

	envelope := te.onset.Compute(source)
	if len(envelope) == 0 {
		return 0, nil
	}

	frameRate := float64(sampleRate) / float64(te.config.HopSize)
	return te.tempoFromEnvelope(envelope, frameRate), nil
}

// percussive isolates the percussive part block by block
func (te *TempoEstimator) percussive(signal []float64, sampleRate int) ([]float64, error) {
	block := percussiveBlockSeconds * sampleRate
	out := make([]float64, 0, len(signal))

	for start := 0; start < len(signal); start += block {
		end := min(start+block, len(signal))
		sep, err := te.isolator.Separate(signal[start:end], sampleRate)
		if err != nil {
			return nil, fmt.Errorf("percussive separation: %w", err)
		}
		out = append(out, sep.Percussive...)
	}
	return out, nil
}

// tempoFromEnvelope picks the strongest prior-weighted autocorrelation lag
func (te *TempoEstimator) tempoFromEnvelope(envelope []float64, frameRate float64) float64 {
	minLag := max(1, int(math.Floor(60*frameRate/te.config.MaxBPM)))
	maxLag := min(len(envelope)-2, int(math.Ceil(60*frameRate/te.config.MinBPM)))
	if maxLag <= minLag {
		return 0
	}

	// one extra lag on each side for peak interpolation
	lo, hi := minLag-1, maxLag+1
	scores := make([]float64, hi-lo+1)
	for lag := lo; lag <= hi; lag++ {
		scores[lag-lo] = te.weight(60*frameRate/float64(lag)) * autocorrelation(envelope, lag)
	}

	best := -1
	for lag := minLag; lag <= maxLag; lag++ {
		if best < 0 || scores[lag-lo] > scores[best-lo] {
			best = lag
		}
	}
	if scores[best-lo] <= 0 {
		return 0
	}

	offset, _ := common.ParabolicPeak(scores, best-lo)
	bpm := 60 * frameRate / (float64(best) + offset)
	return common.Clamp(bpm, te.config.MinBPM, te.config.MaxBPM)
}

// weight evaluates the log-normal tempo prior
func (te *TempoEstimator) weight(bpm float64) float64 {
	if !te.config.UsePrior || bpm <= 0 {
		return 1
	}
	octaves := math.Log2(bpm/te.config.PriorBPM) / te.config.PriorOctaves
	return math.Exp(-0.5 * octaves * octaves)
}

// autocorrelation returns the unbiased autocorrelation of x at lag
func autocorrelation(x []float64, lag int) float64 {
	n := len(x) - lag
	if lag < 0 || n <= 0 {
		return 0
	}
	sum := 0.0
	for i := range n {
		sum += x[i] * x[i+lag]
	}
	return sum / float64(n)
}
