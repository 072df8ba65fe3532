// Package analysis estimates the key, tempo, energy and key stability of a
// decoded track.
package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-camelot/algorithms/chroma"
	"github.com/RyanBlaney/sonido-camelot/algorithms/temporal"
	"github.com/RyanBlaney/sonido-camelot/analysis/config"
	"github.com/RyanBlaney/sonido-camelot/camelot"
	"github.com/RyanBlaney/sonido-camelot/logging"
)

// Analyzer runs the full per-track pipeline. It holds no per-track state and
// is safe for concurrent use; every call is a pure function of the buffer and
// the configuration.
type Analyzer struct {
	config    *config.AnalysisConfig
	scheduler *WindowScheduler
	tempo     *temporal.TempoEstimator
	energy    *temporal.EnergyEstimator
	wheel     *camelot.Map
	logger    logging.Logger
}

// NewAnalyzer validates cfg and builds an analyzer. A nil cfg uses the
// defaults.
func NewAnalyzer(cfg *config.AnalysisConfig) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultAnalysisConfig()
	} else {
		cfg = cfg.Clone()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wheel, err := camelot.NewMap(cfg.CamelotOverrides)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "key_analyzer",
	})

	return &Analyzer{
		config:    cfg,
		scheduler: NewWindowScheduler(cfg, logger),
		tempo:     temporal.NewTempoEstimator(cfg.Tempo),
		energy:    temporal.NewEnergyEstimator(),
		wheel:     wheel,
		logger:    logger,
	}, nil
}

// Config returns a copy of the analyzer configuration
func (a *Analyzer) Config() *config.AnalysisConfig {
	return a.config.Clone()
}

// Analyze estimates key, tempo and energy for buf.
//
// A track where no window clears the confidence threshold is not an error:
// the result reports Unknown keys with stability 0 alongside tempo and energy.
// Errors are returned for invalid buffers and context cancellation only.
func (a *Analyzer) Analyze(ctx context.Context, buf AudioBuffer) (*AnalysisResult, error) {
	if err := validateBuffer(buf); err != nil {
		return nil, err
	}

	logger := a.logger.WithContext(ctx)
	begin := time.Now()

	tuning := chroma.NewTuningEstimator(buf.SampleRate, a.config.Chroma.ReferenceFreq).Estimate(buf.Samples)
	extractor, err := chroma.NewChromaExtractor(buf.SampleRate, a.config.Chroma, tuning)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBuffer, err)
	}

	timeline, err := a.scheduler.Run(ctx, buf, extractor)
	if err != nil {
		return nil, err
	}
	aggregate := Aggregate(timeline, a.wheel)

	bpm, err := a.tempo.EstimateTempo(buf.Samples, buf.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("tempo estimation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	energy := a.energy.Estimate(buf.Samples, buf.SampleRate, bpm)

	result := a.assemble(buf, tuning, timeline, aggregate, bpm, energy)

	if len(timeline) == 0 {
		logger.Warn("no window cleared the confidence threshold", logging.Fields{
			"error":    ErrNoConfidentSegment.Error(),
			"duration": result.DurationSeconds,
		})
	}

	logger.Info("track analysed", logging.Fields{
		"key":         result.SynthesizedKey,
		"camelot":     result.CamelotCode,
		"bpm":         result.BPM,
		"energy":      result.Energy,
		"stability":   result.StabilityScore,
		"segments":    len(timeline),
		"tuning":      tuning,
		"elapsed_ms":  time.Since(begin).Milliseconds(),
		"modulations": len(result.Modulations),
	})

	return result, nil
}

func validateBuffer(buf AudioBuffer) error {
	if buf.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidBuffer, buf.SampleRate)
	}
	for i, v := range buf.Samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite sample at %d", ErrInvalidBuffer, i)
		}
	}
	return nil
}
