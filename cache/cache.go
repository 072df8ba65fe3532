// Package cache memoizes whole-track analysis results by content hash. It
// sits outside the analysis engine; results never depend on it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/RyanBlaney/sonido-camelot/analysis"
)

// Store holds analysis results by content key. Implementations are bounded
// and evict on their own.
type Store interface {
	Get(ctx context.Context, key string) (*analysis.AnalysisResult, bool, error)
	Put(ctx context.Context, key string, result *analysis.AnalysisResult) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Key hashes the samples, the sample rate and a configuration fingerprint.
// Identical audio analysed under a different configuration gets a different
// key.
func Key(buf analysis.AudioBuffer, configFingerprint string) string {
	h := sha256.New()

	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(buf.SampleRate))
	h.Write(scratch[:])

	block := make([]byte, 0, 8*4096)
	for i, v := range buf.Samples {
		block = binary.LittleEndian.AppendUint64(block, math.Float64bits(v))
		if len(block) == cap(block) || i == len(buf.Samples)-1 {
			h.Write(block)
			block = block[:0]
		}
	}

	h.Write([]byte(configFingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// cloneResult copies the slices of r so cached values stay immutable
func cloneResult(r *analysis.AnalysisResult) *analysis.AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.Timeline != nil {
		c.Timeline = append([]analysis.TimelineEntry(nil), r.Timeline...)
	}
	if r.Modulations != nil {
		c.Modulations = append([]analysis.Modulation(nil), r.Modulations...)
	}
	return &c
}
