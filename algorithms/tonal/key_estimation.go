package tonal

import (
	"github.com/RyanBlaney/sonido-camelot/algorithms/chroma"
	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
)

// ClassifierConfig configures SegmentClassifier
type ClassifierConfig struct {
	ProfileSet ProfileSet `json:"profile_set"`

	// ThirdOverride flips major/minor when the chroma's thirds contradict the
	// profile match by more than ThirdMargin (0.15 = 15%). The contradicting
	// third must also reach ThirdFloor of the strongest pitch class.
	ThirdOverride bool    `json:"third_override"`
	ThirdMargin   float64 `json:"third_margin"`
	ThirdFloor    float64 `json:"third_floor"`
}

// DefaultClassifierConfig returns the classifier settings used for key analysis
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		ProfileSet:    ProfileSetMajorMinor,
		ThirdOverride: true,
		ThirdMargin:   0.15,
		ThirdFloor:    0.05,
	}
}

// KeyCandidate is one scored (tonic, mode) hypothesis
type KeyCandidate struct {
	Key   Key     `json:"key"`
	Score float64 `json:"score"` // Pearson correlation, -1..1
}

// KeyEstimationResult is the outcome of classifying one chroma vector
type KeyEstimationResult struct {
	Key   Key     `json:"key"`
	Score float64 `json:"score"`

	// Overridden is set when the third-interval check flipped the mode
	Overridden bool `json:"overridden"`

	// Candidates holds every scored hypothesis in scan order
	Candidates []KeyCandidate `json:"candidates"`
}

// SegmentClassifier estimates a key by correlating a chroma vector against
// every rotation of the reference profiles (Krumhansl-Schmuckler).
// It is stateless and safe for concurrent use.
type SegmentClassifier struct {
	config   ClassifierConfig
	profiles []KeyProfile
}

// NewSegmentClassifier creates a classifier; a non-positive margin or floor
// falls back to the default
func NewSegmentClassifier(config ClassifierConfig) *SegmentClassifier {
	if config.ThirdMargin <= 0 {
		config.ThirdMargin = DefaultClassifierConfig().ThirdMargin
	}
	if config.ThirdFloor <= 0 {
		config.ThirdFloor = DefaultClassifierConfig().ThirdFloor
	}
	return &SegmentClassifier{
		config:   config,
		profiles: config.ProfileSet.Profiles(),
	}
}

// Classify returns the best matching key for cv.
//
// Modes are scanned in profile-set order and rotations from C upwards; only a
// strictly greater score replaces the current best, so exact ties resolve to
// the first candidate scanned. A vector without variance correlates 0 with
// every profile and yields C major.
func (sc *SegmentClassifier) Classify(cv chroma.ChromaVector) KeyEstimationResult {
	values := cv.Slice()
	candidates := make([]KeyCandidate, 0, len(sc.profiles)*12)

	best := -1
	for _, profile := range sc.profiles {
		for tonic := C; tonic <= B; tonic++ {
			rotated := profile.Rotate(tonic)
			score := common.Correlation(values, rotated[:])
			candidates = append(candidates, KeyCandidate{
				Key:   Key{Tonic: tonic, Mode: profile.Mode},
				Score: score,
			})
			if best < 0 || score > candidates[best].Score {
				best = len(candidates) - 1
			}
		}
	}

	result := KeyEstimationResult{
		Key:        candidates[best].Key,
		Score:      candidates[best].Score,
		Candidates: candidates,
	}

	if sc.config.ThirdOverride {
		if flipped, ok := sc.thirdOverride(cv, result.Key); ok {
			result.Key = flipped
			result.Score = scoreOf(candidates, flipped)
			result.Overridden = true
		}
	}

	return result
}

// thirdOverride checks the energy at the minor and major third above the
// tonic. When the third the selected mode does not use is louder than the one
// it does by more than the margin, the mode is flipped. A third below the
// floor is leakage and never flips the mode.
func (sc *SegmentClassifier) thirdOverride(cv chroma.ChromaVector, key Key) (Key, bool) {
	minorThird := cv[key.Tonic.Transpose(3)]
	majorThird := cv[key.Tonic.Transpose(4)]

	selected, other := majorThird, minorThird
	if key.Mode.Family() == ModeMinor {
		selected, other = minorThird, majorThird
	}

	if other <= selected*(1+sc.config.ThirdMargin) {
		return key, false
	}
	if other < sc.config.ThirdFloor*cv[cv.Argmax()] {
		return key, false
	}

	if key.Mode == ModeMajor {
		return Key{Tonic: key.Tonic, Mode: ModeMinor}, true
	}
	return Key{Tonic: key.Tonic, Mode: ModeMajor}, true
}

// scoreOf returns the candidate score of key, 0 if it was not scanned
func scoreOf(candidates []KeyCandidate, key Key) float64 {
	for _, c := range candidates {
		if c.Key == key {
			return c.Score
		}
	}
	return 0
}

// Config returns the effective configuration
func (sc *SegmentClassifier) Config() ClassifierConfig {
	return sc.config
}
