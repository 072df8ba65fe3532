package analysis

import (
	"github.com/RyanBlaney/sonido-camelot/algorithms/temporal"
	"github.com/RyanBlaney/sonido-camelot/algorithms/tonal"
)

// assemble packages the track level estimates into the public result. The
// Camelot code is that of the synthesized key.
func (a *Analyzer) assemble(buf AudioBuffer, tuning float64, timeline Timeline, agg AggregateResult, bpm int, energy temporal.EnergyFeatures) *AnalysisResult {
	result := &AnalysisResult{
		DominantKey:        keyLabel(agg.Dominant),
		SynthesizedKey:     keyLabel(agg.Synthesized),
		CamelotCode:        a.wheel.CodeString(agg.Synthesized),
		BPM:                bpm,
		Energy:             energy.Rating,
		StabilityScore:     agg.Stability,
		ModulationDetected: agg.ModulationDetected,
		Modulations:        agg.Modulations,
		TuningOffset:       tuning,
		DurationSeconds:    buf.Duration(),
		Timeline:           make([]TimelineEntry, 0, len(timeline)),
	}

	for _, est := range timeline {
		key := est.Key
		result.Timeline = append(result.Timeline, TimelineEntry{
			TimeOffset:  est.StartTime,
			KeyLabel:    key.String(),
			Confidence:  est.Score,
			CamelotCode: a.wheel.CodeString(&key),
		})
	}

	return result
}

func keyLabel(key *tonal.Key) string {
	if key == nil {
		return Unknown
	}
	return key.String()
}
