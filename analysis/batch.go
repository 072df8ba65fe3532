package analysis

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-camelot/logging"
)

// Track is one buffer submitted to AnalyzeBatch
type Track struct {
	ID     string // assigned when empty
	Buffer AudioBuffer
}

// BatchResult is the outcome of one track. Failures never affect other
// tracks in the batch.
type BatchResult struct {
	ID     string
	Result *AnalysisResult
	Err    error
}

// AnalyzeBatch analyses tracks concurrently on a bounded pool. Results are
// returned in input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, tracks []Track) []BatchResult {
	results := make([]BatchResult, len(tracks))
	if len(tracks) == 0 {
		return results
	}

	workers := a.config.BatchWorkers
	if workers <= 0 {
		workers = 2
	}
	workers = min(workers, len(tracks))

	jobs := make(chan int, len(tracks))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range jobs {
				track := tracks[idx]
				id := track.ID
				if id == "" {
					id = uuid.NewString()
				}

				trackCtx := logging.ContextWithFields(ctx, logging.Fields{"track_id": id})
				result, err := a.Analyze(trackCtx, track.Buffer)
				if err != nil {
					a.logger.Error(err, "track analysis failed", logging.Fields{"track_id": id})
				}
				results[idx] = BatchResult{ID: id, Result: result, Err: err}
			}
		}()
	}

	for idx := range tracks {
		jobs <- idx
	}
	close(jobs)

	wg.Wait()
	return results
}
