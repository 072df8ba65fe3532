package tonal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownPitchClass is returned when a note name cannot be parsed
	ErrUnknownPitchClass = errors.New("unknown pitch class")
	// ErrUnknownMode is returned when a mode name cannot be parsed
	ErrUnknownMode = errors.New("unknown mode")
)

// PitchClass is a note name independent of octave, 0 = C .. 11 = B
type PitchClass int

const (
	C PitchClass = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// naturals maps note letters to pitch classes
var naturals = map[byte]PitchClass{'C': C, 'D': D, 'E': E, 'F': F, 'G': G, 'A': A, 'B': B}

// String returns the sharp spelling of the pitch class
func (pc PitchClass) String() string {
	if !pc.Valid() {
		return fmt.Sprintf("PitchClass(%d)", int(pc))
	}
	return pitchClassNames[pc]
}

// Valid reports whether pc is in 0..11
func (pc PitchClass) Valid() bool {
	return pc >= 0 && pc < 12
}

// Transpose moves the pitch class by semitones, wrapping around the octave
func (pc PitchClass) Transpose(semitones int) PitchClass {
	return PitchClass(((int(pc)+semitones)%12 + 12) % 12)
}

// ParsePitchClass parses a note name such as "C", "F#", "Bb", "Cb" or "E#".
// Any number of sharps or flats is accepted, as are the unicode accidentals.
func ParsePitchClass(name string) (PitchClass, error) {
	pc, rest, err := parsePitchPrefix(strings.TrimSpace(name))
	if err != nil {
		return 0, err
	}
	if rest != "" {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPitchClass, name)
	}
	return pc, nil
}

// parsePitchPrefix consumes a note letter and its accidentals, returning the rest
func parsePitchPrefix(s string) (PitchClass, string, error) {
	if s == "" {
		return 0, "", fmt.Errorf("%w: empty name", ErrUnknownPitchClass)
	}

	pc, ok := naturals[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownPitchClass, s)
	}

	shift := 0
	rest := s[1:]
	for rest != "" {
		switch {
		case rest[0] == '#':
			shift++
			rest = rest[1:]
		case rest[0] == 'b':
			shift--
			rest = rest[1:]
		case strings.HasPrefix(rest, "♯"):
			shift++
			rest = rest[len("♯"):]
		case strings.HasPrefix(rest, "♭"):
			shift--
			rest = rest[len("♭"):]
		default:
			return pc.Transpose(shift), rest, nil
		}
	}
	return pc.Transpose(shift), "", nil
}

// Mode is the closed set of scale modes the classifier can report
type Mode int

const (
	ModeMajor Mode = iota
	ModeMinor
	ModeDorian
)

// String returns the lower case mode name
func (m Mode) String() string {
	switch m {
	case ModeMajor:
		return "major"
	case ModeMinor:
		return "minor"
	case ModeDorian:
		return "dorian"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Family returns ModeMajor or ModeMinor; dorian belongs to the minor family
func (m Mode) Family() Mode {
	if m == ModeMajor {
		return ModeMajor
	}
	return ModeMinor
}

// ParseMode parses common mode spellings ("major", "maj", "minor", "min", "m", "dorian")
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "major", "maj", "ionian":
		return ModeMajor, nil
	case "minor", "min", "m", "aeolian":
		return ModeMinor, nil
	case "dorian", "dor":
		return ModeDorian, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// Key is a tonic plus a mode
type Key struct {
	Tonic PitchClass `json:"tonic"`
	Mode  Mode       `json:"mode"`
}

// String formats the key as "<Tonic> <mode>", e.g. "A major"
func (k Key) String() string {
	return k.Tonic.String() + " " + k.Mode.String()
}

// Relative returns the relative major or minor sharing the same notes.
// Dorian maps to the major key a whole tone below its tonic.
func (k Key) Relative() Key {
	switch k.Mode {
	case ModeMajor:
		return Key{Tonic: k.Tonic.Transpose(-3), Mode: ModeMinor}
	case ModeDorian:
		return Key{Tonic: k.Tonic.Transpose(-2), Mode: ModeMajor}
	default:
		return Key{Tonic: k.Tonic.Transpose(3), Mode: ModeMajor}
	}
}

// Parallel returns the key with the same tonic in the other mode family
func (k Key) Parallel() Key {
	if k.Mode == ModeMajor {
		return Key{Tonic: k.Tonic, Mode: ModeMinor}
	}
	return Key{Tonic: k.Tonic, Mode: ModeMajor}
}

// ParseKey parses "A major", "Ab minor", "G# min", "F#m", "Am" or a bare tonic
// such as "C", which is read as major.
func ParseKey(s string) (Key, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		tonic, rest, err := parsePitchPrefix(fields[0])
		if err != nil {
			return Key{}, err
		}
		if rest == "" {
			return Key{Tonic: tonic, Mode: ModeMajor}, nil
		}
		mode, err := ParseMode(rest)
		if err != nil {
			return Key{}, err
		}
		return Key{Tonic: tonic, Mode: mode}, nil
	case 2:
		tonic, err := ParsePitchClass(fields[0])
		if err != nil {
			return Key{}, err
		}
		mode, err := ParseMode(fields[1])
		if err != nil {
			return Key{}, err
		}
		return Key{Tonic: tonic, Mode: mode}, nil
	default:
		return Key{}, fmt.Errorf("%w: cannot parse key %q", ErrUnknownPitchClass, s)
	}
}

// MarshalText encodes the key as its display name
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a key from any spelling ParseKey accepts
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
