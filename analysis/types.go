package analysis

import (
	"errors"

	"github.com/RyanBlaney/sonido-camelot/algorithms/tonal"
)

var (
	// ErrInvalidBuffer is returned for buffers without a usable sample rate or
	// with non-finite samples
	ErrInvalidBuffer = errors.New("invalid audio buffer")

	// ErrInsufficientSignal marks a window skipped for lack of tonal energy.
	// It never aborts an analysis.
	ErrInsufficientSignal = errors.New("insufficient signal")

	// ErrNoConfidentSegment marks a track where no window cleared the
	// confidence threshold. The result is still returned with Unknown keys.
	ErrNoConfidentSegment = errors.New("no confident segment")
)

// Unknown is the key label reported when no key could be determined
const Unknown = "Unknown"

// AudioBuffer is decoded mono PCM owned by the caller. The analyzer only
// reads it.
type AudioBuffer struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the buffer in seconds
func (b AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// SegmentEstimate is the key retained for one analysis window
type SegmentEstimate struct {
	StartTime float64   `json:"start_time"`
	Key       tonal.Key `json:"key"`
	Score     float64   `json:"score"`
}

// Timeline holds the retained estimates ordered by start time
type Timeline []SegmentEstimate

// KeyTally counts the estimates voting for one key
type KeyTally struct {
	Key        tonal.Key `json:"key"`
	Count      int       `json:"count"`
	TotalScore float64   `json:"total_score"`
	MaxScore   float64   `json:"max_score"`
}

// Modulation is a sustained key change inside a track
type Modulation struct {
	Time float64   `json:"time"`
	From tonal.Key `json:"from"`
	To   tonal.Key `json:"to"`
}

// AggregateResult summarises a timeline. Nil keys mean Unknown.
type AggregateResult struct {
	Dominant    *tonal.Key
	Synthesized *tonal.Key
	Stability   int

	// ModulationDetected is set when the dominant and synthesized keys differ,
	// and also when the timeline holds a sustained change to an incompatible
	// key (len(Modulations) > 0) even if both summaries agree.
	ModulationDetected bool
	Modulations        []Modulation
	Tallies            []KeyTally
}

// TimelineEntry is the public form of a SegmentEstimate
type TimelineEntry struct {
	TimeOffset  float64 `json:"time_offset"`
	KeyLabel    string  `json:"key_label"`
	Confidence  float64 `json:"confidence"`
	CamelotCode string  `json:"camelot_code"`
}

// AnalysisResult is the record returned for one track. The analyzer keeps no
// reference to it.
type AnalysisResult struct {
	DominantKey        string          `json:"dominant_key"`
	SynthesizedKey     string          `json:"synthesized_key"`
	CamelotCode        string          `json:"camelot_code"`
	BPM                int             `json:"bpm"`
	Energy             int             `json:"energy"`
	StabilityScore     int             `json:"stability_score"`
	ModulationDetected bool            `json:"modulation_detected"`
	Modulations        []Modulation    `json:"modulations,omitempty"`
	TuningOffset       float64         `json:"tuning_offset"`
	DurationSeconds    float64         `json:"duration_seconds"`
	Timeline           []TimelineEntry `json:"timeline"`
}
