package cache

import (
	"context"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-camelot/analysis"
	"github.com/RyanBlaney/sonido-camelot/analysis/config"
	"github.com/RyanBlaney/sonido-camelot/logging"
)

// Engine is the part of analysis.Analyzer the cache wraps
type Engine interface {
	Analyze(ctx context.Context, buf analysis.AudioBuffer) (*analysis.AnalysisResult, error)
	Config() *config.AnalysisConfig
}

// Stats counts cache lookups
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// CachedAnalyzer memoizes Analyze by content hash. Store failures are logged
// and fall through to a fresh analysis.
type CachedAnalyzer struct {
	engine      Engine
	store       Store
	fingerprint string
	logger      logging.Logger

	hits, misses, errors atomic.Int64
}

// NewCachedAnalyzer wraps engine with store
func NewCachedAnalyzer(engine Engine, store Store) *CachedAnalyzer {
	return &CachedAnalyzer{
		engine:      engine,
		store:       store,
		fingerprint: engine.Config().Fingerprint(),
		logger: logging.WithFields(logging.Fields{
			"component": "result_cache",
		}),
	}
}

// Analyze returns the cached result for buf or analyses it and stores the
// outcome. Failed analyses are not cached.
func (c *CachedAnalyzer) Analyze(ctx context.Context, buf analysis.AudioBuffer) (*analysis.AnalysisResult, error) {
	key := Key(buf, c.fingerprint)
	logger := c.logger.WithContext(ctx)

	result, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.errors.Add(1)
		logger.Error(err, "cache lookup failed", logging.Fields{"key": key[:16]})
	case ok:
		c.hits.Add(1)
		logger.Debug("cache hit", logging.Fields{"key": key[:16]})
		return result, nil
	}
	c.misses.Add(1)

	result, err = c.engine.Analyze(ctx, buf)
	if err != nil {
		return nil, err
	}

	if err := c.store.Put(ctx, key, result); err != nil {
		c.errors.Add(1)
		logger.Error(err, "cache store failed", logging.Fields{"key": key[:16]})
	}
	return result, nil
}

// Stats returns the lookup counters
func (c *CachedAnalyzer) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}
