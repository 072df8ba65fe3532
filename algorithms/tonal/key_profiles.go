package tonal

import (
	"fmt"
	"strings"
)

// KeyProfile is a reference pitch-class weighting for one mode, index 0 = tonic
type KeyProfile struct {
	Mode    Mode
	Weights [12]float64
}

// Krumhansl-Schmuckler probe-tone ratings
var (
	krumhanslMajor = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	krumhanslMinor = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// Profile returns the reference profile for mode. Dorian is the minor profile
// with the raised sixth taking the weight of the flat sixth.
func Profile(mode Mode) KeyProfile {
	switch mode {
	case ModeMinor:
		return KeyProfile{Mode: ModeMinor, Weights: krumhanslMinor}
	case ModeDorian:
		weights := krumhanslMinor
		weights[8], weights[9] = weights[9], weights[8]
		return KeyProfile{Mode: ModeDorian, Weights: weights}
	default:
		return KeyProfile{Mode: ModeMajor, Weights: krumhanslMajor}
	}
}

// Rotate returns the profile transposed to tonic, so the tonic weight lands at
// index tonic
func (kp KeyProfile) Rotate(tonic PitchClass) [12]float64 {
	var out [12]float64
	for i := range out {
		out[i] = kp.Weights[PitchClass(i).Transpose(-int(tonic))]
	}
	return out
}

// ProfileSet selects which modes the classifier considers
type ProfileSet int

const (
	ProfileSetMajorMinor ProfileSet = iota
	ProfileSetMajorMinorDorian
)

// Modes returns the modes in scan order
func (ps ProfileSet) Modes() []Mode {
	if ps == ProfileSetMajorMinorDorian {
		return []Mode{ModeMajor, ModeMinor, ModeDorian}
	}
	return []Mode{ModeMajor, ModeMinor}
}

// Profiles returns the reference profiles in scan order
func (ps ProfileSet) Profiles() []KeyProfile {
	modes := ps.Modes()
	out := make([]KeyProfile, len(modes))
	for i, m := range modes {
		out[i] = Profile(m)
	}
	return out
}

func (ps ProfileSet) String() string {
	switch ps {
	case ProfileSetMajorMinor:
		return "major_minor"
	case ProfileSetMajorMinorDorian:
		return "major_minor_dorian"
	default:
		return fmt.Sprintf("ProfileSet(%d)", int(ps))
	}
}

// ParseProfileSet parses "major_minor" or "major_minor_dorian"
func ParseProfileSet(name string) (ProfileSet, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "major_minor", "":
		return ProfileSetMajorMinor, nil
	case "major_minor_dorian":
		return ProfileSetMajorMinorDorian, nil
	default:
		return 0, fmt.Errorf("unknown profile set %q", name)
	}
}

// MarshalText encodes the profile set name
func (ps ProfileSet) MarshalText() ([]byte, error) {
	return []byte(ps.String()), nil
}

// UnmarshalText decodes a profile set name
func (ps *ProfileSet) UnmarshalText(text []byte) error {
	parsed, err := ParseProfileSet(string(text))
	if err != nil {
		return err
	}
	*ps = parsed
	return nil
}
