package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-camelot/algorithms/chroma"
	"github.com/RyanBlaney/sonido-camelot/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-camelot/algorithms/tonal"
	"github.com/RyanBlaney/sonido-camelot/algorithms/temporal"
	"github.com/RyanBlaney/sonido-camelot/camelot"
)

// ErrInvalidConfig is returned when a configuration fails validation
var ErrInvalidConfig = errors.New("invalid analysis config")

// AnalysisConfig holds every tunable of the key analysis pipeline
type AnalysisConfig struct {
	// Windowing
	WindowSeconds       float64 `json:"window_seconds"`       // analysis window length
	HopSeconds          float64 `json:"hop_seconds"`          // distance between window starts
	ConfidenceThreshold float64 `json:"confidence_threshold"` // estimates must score above this

	// Per-window gates
	SilenceFloor    float64 `json:"silence_floor"`    // minimum RMS of the harmonic part
	FlatnessCeiling float64 `json:"flatness_ceiling"` // maximum spectral flatness of the harmonic part

	// Concurrency, 0 = automatic
	Workers      int `json:"workers"`       // windows analysed in parallel per track
	BatchWorkers int `json:"batch_workers"` // tracks analysed in parallel by AnalyzeBatch

	Isolator   harmonic.IsolatorConfig `json:"isolator"`
	Chroma     chroma.CQTConfig        `json:"chroma"`
	Classifier tonal.ClassifierConfig  `json:"classifier"`
	Tempo      temporal.TempoConfig    `json:"tempo"`

	// CamelotOverrides maps key names ("F# minor") to wheel codes ("11A")
	CamelotOverrides map[string]string `json:"camelot_overrides,omitempty"`
}

// DefaultAnalysisConfig returns the standard configuration: 15 s windows every
// 10 s, retained above a correlation of 0.45
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		WindowSeconds:       15.0,
		HopSeconds:          10.0,
		ConfidenceThreshold: 0.45,
		SilenceFloor:        1e-3,
		FlatnessCeiling:     0.6,
		Workers:             0,
		BatchWorkers:        0,
		Isolator:            harmonic.DefaultIsolatorConfig(),
		Chroma:              chroma.DefaultCQTConfig(),
		Classifier:          tonal.DefaultClassifierConfig(),
		Tempo:               temporal.DefaultTempoConfig(),
	}
}

// Validate checks ranges and cross-field constraints
func (c *AnalysisConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("%w: window_seconds must be positive, got %v", ErrInvalidConfig, c.WindowSeconds)
	}
	if c.HopSeconds <= 0 || c.HopSeconds >= c.WindowSeconds {
		return fmt.Errorf("%w: hop_seconds must be in (0, window_seconds), got %v", ErrInvalidConfig, c.HopSeconds)
	}
	if c.ConfidenceThreshold < -1 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("%w: confidence_threshold must be in [-1, 1), got %v", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	if c.SilenceFloor < 0 {
		return fmt.Errorf("%w: silence_floor must not be negative", ErrInvalidConfig)
	}
	if c.FlatnessCeiling <= 0 || c.FlatnessCeiling > 1 {
		return fmt.Errorf("%w: flatness_ceiling must be in (0, 1], got %v", ErrInvalidConfig, c.FlatnessCeiling)
	}
	if c.Workers < 0 || c.BatchWorkers < 0 {
		return fmt.Errorf("%w: worker counts must not be negative", ErrInvalidConfig)
	}
	if c.Isolator.Margin != 0 && c.Isolator.Margin < 1 {
		return fmt.Errorf("%w: isolator margin must be >= 1, got %v", ErrInvalidConfig, c.Isolator.Margin)
	}
	if c.Chroma.BinsPerSemitone < 0 || c.Chroma.Octaves < 0 {
		return fmt.Errorf("%w: chroma bins_per_semitone and octaves must not be negative", ErrInvalidConfig)
	}
	if c.Classifier.ThirdMargin < 0 {
		return fmt.Errorf("%w: classifier third_margin must not be negative", ErrInvalidConfig)
	}
	if c.Classifier.ThirdFloor < 0 || c.Classifier.ThirdFloor > 1 {
		return fmt.Errorf("%w: classifier third_floor must be in [0, 1], got %v", ErrInvalidConfig, c.Classifier.ThirdFloor)
	}
	if c.Tempo.MinBPM < 0 || (c.Tempo.MaxBPM != 0 && c.Tempo.MaxBPM <= c.Tempo.MinBPM) {
		return fmt.Errorf("%w: tempo range [%v, %v] is empty", ErrInvalidConfig, c.Tempo.MinBPM, c.Tempo.MaxBPM)
	}
	if _, err := camelot.NewMap(c.CamelotOverrides); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LoadFile reads a JSON configuration. Fields missing from the file keep their
// defaults; unknown fields are rejected.
func LoadFile(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON configuration on top of the defaults and validates it
func Parse(data []byte) (*AnalysisConfig, error) {
	cfg := DefaultAnalysisConfig()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Fingerprint returns a short stable hash of the configuration. Results
// computed under different fingerprints are not interchangeable.
func (c *AnalysisConfig) Fingerprint() string {
	// encoding/json sorts map keys, so the encoding is canonical
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// Clone returns a deep copy
func (c *AnalysisConfig) Clone() *AnalysisConfig {
	clone := *c
	if c.CamelotOverrides != nil {
		clone.CamelotOverrides = make(map[string]string, len(c.CamelotOverrides))
		for k, v := range c.CamelotOverrides {
			clone.CamelotOverrides[k] = v
		}
	}
	return &clone
}
