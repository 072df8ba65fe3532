package cache

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/RyanBlaney/sonido-camelot/analysis"
	"github.com/RyanBlaney/sonido-camelot/analysis/config"
)

type countingEngine struct {
	calls int
	err   error
}

func (e *countingEngine) Analyze(_ context.Context, buf analysis.AudioBuffer) (*analysis.AnalysisResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return sampleResult(buf.Duration()), nil
}

func (e *countingEngine) Config() *config.AnalysisConfig {
	return config.DefaultAnalysisConfig()
}

func sampleResult(duration float64) *analysis.AnalysisResult {
	return &analysis.AnalysisResult{
		DominantKey:     "A minor",
		SynthesizedKey:  "A minor",
		CamelotCode:     "8A",
		BPM:             124,
		Energy:          7,
		StabilityScore:  88,
		DurationSeconds: duration,
		Timeline: []analysis.TimelineEntry{
			{TimeOffset: 0, KeyLabel: "A minor", Confidence: 0.81, CamelotCode: "8A"},
		},
	}
}

func TestKey(t *testing.T) {
	buf := analysis.AudioBuffer{Samples: []float64{0.1, -0.2, 0.3}, SampleRate: 22050}

	base := Key(buf, "abc")
	if base != Key(buf, "abc") {
		t.Fatal("key not stable")
	}
	if len(base) != 64 {
		t.Errorf("key length %d", len(base))
	}

	variants := map[string]string{
		"sample rate": Key(analysis.AudioBuffer{Samples: buf.Samples, SampleRate: 44100}, "abc"),
		"samples":     Key(analysis.AudioBuffer{Samples: []float64{0.1, -0.2, 0.31}, SampleRate: 22050}, "abc"),
		"config":      Key(buf, "abd"),
	}
	for name, k := range variants {
		if k == base {
			t.Errorf("changing the %s kept the key", name)
		}
	}
}

func TestMemoryStoreLRU(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	store.Put(ctx, "a", sampleResult(1))
	store.Put(ctx, "b", sampleResult(2))
	if _, ok, _ := store.Get(ctx, "a"); !ok {
		t.Fatal("a missing")
	}
	// b is now least recently used
	store.Put(ctx, "c", sampleResult(3))

	if _, ok, _ := store.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok, _ := store.Get(ctx, k); !ok {
			t.Errorf("%s evicted", k)
		}
	}
	if n, _ := store.Len(ctx); n != 2 {
		t.Errorf("len = %d", n)
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	original := sampleResult(1)
	store.Put(ctx, "k", original)
	original.Timeline[0].KeyLabel = "changed"

	got, _, _ := store.Get(ctx, "k")
	if got.Timeline[0].KeyLabel != "A minor" {
		t.Error("store shares the caller's timeline")
	}
	got.Timeline[0].KeyLabel = "changed again"
	again, _, _ := store.Get(ctx, "k")
	if again.Timeline[0].KeyLabel != "A minor" {
		t.Error("store returned its own timeline")
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache", "results.sqlite3"), 2)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}

	want := sampleResult(42)
	if err := store.Put(ctx, "a", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Get(a) = %v, %v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip:\n got %+v\nwant %+v", got, want)
	}

	// overwrite keeps a single row
	want.BPM = 128
	if err := store.Put(ctx, "a", want); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := store.Get(ctx, "a"); got.BPM != 128 {
		t.Errorf("overwrite not applied: %d", got.BPM)
	}

	store.Put(ctx, "b", sampleResult(1))
	store.Put(ctx, "c", sampleResult(2))

	if n, err := store.Len(ctx); err != nil || n != 2 {
		t.Errorf("Len = %d, %v; want 2", n, err)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Error("least recently used row not evicted")
	}
}

func TestCachedAnalyzer(t *testing.T) {
	ctx := context.Background()
	engine := &countingEngine{}
	cached := NewCachedAnalyzer(engine, NewMemoryStore(4))

	buf := analysis.AudioBuffer{Samples: make([]float64, 100), SampleRate: 100}
	first, err := cached.Analyze(ctx, buf)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cached.Analyze(ctx, buf)
	if err != nil {
		t.Fatal(err)
	}

	if engine.calls != 1 {
		t.Errorf("engine called %d times, want 1", engine.calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached result differs")
	}
	if s := cached.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("stats = %+v", s)
	}

	other := analysis.AudioBuffer{Samples: make([]float64, 200), SampleRate: 100}
	if _, err := cached.Analyze(ctx, other); err != nil || engine.calls != 2 {
		t.Errorf("different buffer served from cache (calls %d, err %v)", engine.calls, err)
	}
}

func TestCachedAnalyzerDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	engine := &countingEngine{err: analysis.ErrInvalidBuffer}
	cached := NewCachedAnalyzer(engine, NewMemoryStore(4))

	buf := analysis.AudioBuffer{SampleRate: 0}
	for range 2 {
		if _, err := cached.Analyze(ctx, buf); !errors.Is(err, analysis.ErrInvalidBuffer) {
			t.Fatalf("error = %v", err)
		}
	}
	if engine.calls != 2 {
		t.Errorf("failed analysis cached: %d calls", engine.calls)
	}
}
