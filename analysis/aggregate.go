package analysis

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
	"github.com/RyanBlaney/sonido-camelot/algorithms/tonal"
	"github.com/RyanBlaney/sonido-camelot/camelot"
)

// Stability weights, summing to 100
const (
	purityWeight     = 55.0
	confidenceWeight = 25.0
	relationWeight   = 10.0
	agreementWeight  = 10.0

	// share of the mean in the confidence term, the rest is the maximum
	meanConfidenceShare = 0.7

	// consecutive estimates needed before a key counts as established
	sustainedRun = 2
)

// Aggregate combines a timeline into the track level keys, the stability
// score and the modulation flag. Wheel relations are resolved through wheel.
func Aggregate(timeline Timeline, wheel *camelot.Map) AggregateResult {
	if len(timeline) == 0 {
		return AggregateResult{}
	}
	if wheel == nil {
		wheel = camelot.Default()
	}

	tallies := tally(timeline)

	dominant, synthesized := 0, 0
	for i, t := range tallies {
		if t.Count > tallies[dominant].Count {
			dominant = i
		}
		if t.TotalScore > tallies[synthesized].TotalScore {
			synthesized = i
		}
	}

	domKey := tallies[dominant].Key
	synthKey := tallies[synthesized].Key
	modulations := detectModulations(timeline, wheel)

	return AggregateResult{
		Dominant:           &domKey,
		Synthesized:        &synthKey,
		Stability:          stability(tallies, dominant, synthesized, len(timeline), wheel),
		ModulationDetected: dominant != synthesized || len(modulations) > 0,
		Modulations:        modulations,
		Tallies:            tallies,
	}
}

// tally groups estimates by key in first-seen order
func tally(timeline Timeline) []KeyTally {
	index := make(map[tonal.Key]int)
	var tallies []KeyTally

	for _, est := range timeline {
		i, ok := index[est.Key]
		if !ok {
			i = len(tallies)
			index[est.Key] = i
			tallies = append(tallies, KeyTally{Key: est.Key, MaxScore: est.Score})
		}
		t := &tallies[i]
		t.Count++
		t.TotalScore += est.Score
		t.MaxScore = math.Max(t.MaxScore, est.Score)
	}
	return tallies
}

// stability scores how consistently one key was read across the track, 0-100
func stability(tallies []KeyTally, dominant, synthesized, total int, wheel *camelot.Map) int {
	dom := tallies[dominant]

	purity := float64(dom.Count) / float64(total)

	mean := dom.TotalScore / float64(dom.Count)
	confidence := common.Clamp(meanConfidenceShare*mean+(1-meanConfidenceShare)*dom.MaxScore, 0, 1)

	relation := 0.0
	if len(tallies) == 1 {
		relation = 1
	} else {
		ranked := make([]KeyTally, len(tallies))
		copy(ranked, tallies)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Count > ranked[j].Count
		})
		if relate(wheel, ranked[0].Key, ranked[1].Key).Related() {
			relation = 1
		}
	}

	agreement := 0.0
	if dominant == synthesized {
		agreement = 1
	}

	score := purityWeight*purity +
		confidenceWeight*confidence +
		relationWeight*relation +
		agreementWeight*agreement

	return int(common.Clamp(math.Round(score), 0, 100))
}

// run is a stretch of consecutive estimates in one key
type run struct {
	key   tonal.Key
	start float64
	count int
}

// detectModulations reports changes between sustained runs whose keys are
// not mixing compatible. Short excursions between runs are ignored.
func detectModulations(timeline Timeline, wheel *camelot.Map) []Modulation {
	var runs []run
	for _, est := range timeline {
		if n := len(runs); n > 0 && runs[n-1].key == est.Key {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{key: est.Key, start: est.StartTime, count: 1})
	}

	var modulations []Modulation
	var prev *run
	for i := range runs {
		r := &runs[i]
		if r.count < sustainedRun {
			continue
		}
		if prev != nil && prev.key != r.key && !relate(wheel, prev.key, r.key).Compatible() {
			modulations = append(modulations, Modulation{
				Time: r.start,
				From: prev.key,
				To:   r.key,
			})
		}
		prev = r
	}
	return modulations
}

func relate(wheel *camelot.Map, a, b tonal.Key) camelot.Relation {
	codeA, errA := wheel.Lookup(a)
	codeB, errB := wheel.Lookup(b)
	if errA != nil || errB != nil {
		return camelot.RelationNone
	}
	return camelot.Relate(codeA, codeB)
}
