package analysis

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-camelot/algorithms/chroma"
	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
	"github.com/RyanBlaney/sonido-camelot/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-camelot/algorithms/tonal"
	"github.com/RyanBlaney/sonido-camelot/analysis/config"
	"github.com/RyanBlaney/sonido-camelot/logging"
)

// WindowScheduler cuts a track into overlapping windows and classifies each
// one. Windows are independent and run on a bounded worker pool.
type WindowScheduler struct {
	config     *config.AnalysisConfig
	isolator   *harmonic.HarmonicIsolator
	classifier *tonal.SegmentClassifier
	logger     logging.Logger
}

// NewWindowScheduler creates a scheduler for cfg
func NewWindowScheduler(cfg *config.AnalysisConfig, logger logging.Logger) *WindowScheduler {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &WindowScheduler{
		config:     cfg,
		isolator:   harmonic.NewHarmonicIsolator(cfg.Isolator),
		classifier: tonal.NewSegmentClassifier(cfg.Classifier),
		logger:     logger.WithFields(logging.Fields{"component": "window_scheduler"}),
	}
}

// Windows returns the start sample of every full window in a signal of n
// samples. A trailing window shorter than the window length is dropped.
func (ws *WindowScheduler) Windows(n, sampleRate int) []int {
	length, hop := ws.sizes(sampleRate)
	if length <= 0 || hop <= 0 {
		return nil
	}

	var starts []int
	for start := 0; start+length <= n; start += hop {
		starts = append(starts, start)
	}
	return starts
}

func (ws *WindowScheduler) sizes(sampleRate int) (length, hop int) {
	length = int(math.Round(ws.config.WindowSeconds * float64(sampleRate)))
	hop = int(math.Round(ws.config.HopSeconds * float64(sampleRate)))
	return length, hop
}

// workers returns the configured pool size, defaulting to the CPU count
// capped at 4
func (ws *WindowScheduler) workers(jobs int) int {
	n := ws.config.Workers
	if n <= 0 {
		n = min(runtime.NumCPU(), 4)
	}
	return max(1, min(n, jobs))
}

// Run classifies every window of buf and returns the retained estimates in
// start time order. extractor must be built for buf's sample rate.
func (ws *WindowScheduler) Run(ctx context.Context, buf AudioBuffer, extractor *chroma.ChromaExtractor) (Timeline, error) {
	starts := ws.Windows(len(buf.Samples), buf.SampleRate)
	if len(starts) == 0 {
		return Timeline{}, nil
	}
	length, _ := ws.sizes(buf.SampleRate)

	// one slot per window keeps chronological order under parallel execution
	slots := make([]*SegmentEstimate, len(starts))
	jobs := make(chan int, len(starts))

	var wg sync.WaitGroup
	for range ws.workers(len(starts)) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}

				start := starts[idx]
				startTime := float64(start) / float64(buf.SampleRate)
				segment := buf.Samples[start : start+length]

				result, err := ws.analyzeWindow(segment, buf.SampleRate, extractor)
				if err != nil {
					ws.logger.Debug("window skipped", logging.Fields{
						"start_time": startTime,
						"reason":     err.Error(),
					})
					continue
				}
				if result.Score <= ws.config.ConfidenceThreshold {
					ws.logger.Debug("window below confidence threshold", logging.Fields{
						"start_time": startTime,
						"key":        result.Key.String(),
						"score":      result.Score,
					})
					continue
				}

				slots[idx] = &SegmentEstimate{
					StartTime: startTime,
					Key:       result.Key,
					Score:     result.Score,
				}
			}
		}()
	}

	for idx := range starts {
		jobs <- idx
	}
	close(jobs)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeline := make(Timeline, 0, len(slots))
	for _, est := range slots {
		if est != nil {
			timeline = append(timeline, *est)
		}
	}

	ws.logger.Debug("windows analysed", logging.Fields{
		"windows":  len(starts),
		"retained": len(timeline),
	})

	return timeline, nil
}

// analyzeWindow runs isolation, the energy and tonalness gates, chroma
// extraction and classification on one window
func (ws *WindowScheduler) analyzeWindow(segment []float64, sampleRate int, extractor *chroma.ChromaExtractor) (tonal.KeyEstimationResult, error) {
	sep, err := ws.isolator.Separate(segment, sampleRate)
	if err != nil {
		return tonal.KeyEstimationResult{}, fmt.Errorf("harmonic isolation: %w", err)
	}

	if rms := common.RMS(sep.Harmonic); rms < ws.config.SilenceFloor {
		return tonal.KeyEstimationResult{}, fmt.Errorf("%w: harmonic rms %.2g below floor", ErrInsufficientSignal, rms)
	}
	if sep.Flatness > ws.config.FlatnessCeiling {
		return tonal.KeyEstimationResult{}, fmt.Errorf("%w: harmonic flatness %.2f above ceiling", ErrInsufficientSignal, sep.Flatness)
	}

	cv := extractor.Extract(sep.Harmonic)
	if cv.IsZero() {
		return tonal.KeyEstimationResult{}, fmt.Errorf("%w: empty chroma", ErrInsufficientSignal)
	}

	return ws.classifier.Classify(cv), nil
}
