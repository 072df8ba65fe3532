// Package camelot maps musical keys to positions on the Camelot wheel, the
// number + letter notation DJs use for harmonic mixing.
package camelot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-camelot/algorithms/tonal"
)

var (
	// ErrUnmappableKey is returned when a key has no wheel position
	ErrUnmappableKey = errors.New("unmappable key")
	// ErrInvalidCode is returned for malformed wheel codes
	ErrInvalidCode = errors.New("invalid camelot code")
)

// Unknown is the code reported when no key could be determined
const Unknown = "??"

// Letter A marks the minor family, B the major family
const (
	LetterMinor byte = 'A'
	LetterMajor byte = 'B'
)

// Code is a wheel position such as 8A. The zero value is not a valid code.
type Code struct {
	Number int  // 1-12
	Letter byte // 'A' or 'B'
}

// Valid reports whether c is a real wheel position
func (c Code) Valid() bool {
	return c.Number >= 1 && c.Number <= 12 && (c.Letter == LetterMinor || c.Letter == LetterMajor)
}

// String formats the code as "8A"; invalid codes print as "??"
func (c Code) String() string {
	if !c.Valid() {
		return Unknown
	}
	return strconv.Itoa(c.Number) + string(c.Letter)
}

// MarshalText encodes the code as its string form
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a code from "8A" / "12b"
func (c *Code) UnmarshalText(text []byte) error {
	parsed, err := ParseCode(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCode parses "1A".."12B"; the letter is case insensitive
func ParseCode(s string) (Code, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}

	number, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}

	code := Code{Number: number, Letter: s[len(s)-1]}
	if !code.Valid() {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
	return code, nil
}

// Wheel numbers indexed by pitch class, C = 0
var (
	majorNumbers = [12]int{8, 3, 10, 5, 12, 7, 2, 9, 4, 11, 6, 1}
	minorNumbers = [12]int{5, 12, 7, 2, 9, 4, 11, 6, 1, 8, 3, 10}
)

// Map resolves keys to wheel codes. A Map is immutable and safe for
// concurrent use.
type Map struct {
	overrides map[tonal.Key]Code
}

var defaultMap = &Map{}

// Default returns the standard wheel without overrides
func Default() *Map {
	return defaultMap
}

// NewMap returns the standard wheel with overrides applied on top. Override
// keys use any spelling tonal.ParseKey accepts ("F# minor", "Gbm") and values
// are wheel codes ("11A"). Every entry is validated.
func NewMap(overrides map[string]string) (*Map, error) {
	if len(overrides) == 0 {
		return defaultMap, nil
	}

	m := &Map{overrides: make(map[tonal.Key]Code, len(overrides))}
	for name, value := range overrides {
		key, err := tonal.ParseKey(name)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", name, err)
		}
		code, err := ParseCode(value)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", name, err)
		}
		if _, dup := m.overrides[key]; dup {
			return nil, fmt.Errorf("override %q: key %s given more than once", name, key)
		}
		m.overrides[key] = code
	}
	return m, nil
}

// Lookup returns the wheel code of key. Dorian keys take the code of the minor
// key on the same tonic.
func (m *Map) Lookup(key tonal.Key) (Code, error) {
	if code, ok := m.overrides[key]; ok {
		return code, nil
	}
	if !key.Tonic.Valid() {
		return Code{}, fmt.Errorf("%w: %v", ErrUnmappableKey, key)
	}

	switch key.Mode {
	case tonal.ModeMajor:
		return Code{Number: majorNumbers[key.Tonic], Letter: LetterMajor}, nil
	case tonal.ModeMinor, tonal.ModeDorian:
		return Code{Number: minorNumbers[key.Tonic], Letter: LetterMinor}, nil
	default:
		return Code{}, fmt.Errorf("%w: %v", ErrUnmappableKey, key)
	}
}

// CodeString resolves key to its display code; nil or unmappable keys give "??"
func (m *Map) CodeString(key *tonal.Key) string {
	if key == nil {
		return Unknown
	}
	code, err := m.Lookup(*key)
	if err != nil {
		return Unknown
	}
	return code.String()
}

// Key returns the major or minor key at a wheel position, scanning major keys
// before minor keys from C upwards so overrides resolve deterministically
func (m *Map) Key(code Code) (tonal.Key, error) {
	if !code.Valid() {
		return tonal.Key{}, fmt.Errorf("%w: %v", ErrInvalidCode, code)
	}
	for _, mode := range []tonal.Mode{tonal.ModeMajor, tonal.ModeMinor} {
		for pc := tonal.C; pc <= tonal.B; pc++ {
			key := tonal.Key{Tonic: pc, Mode: mode}
			if c, err := m.Lookup(key); err == nil && c == code {
				return key, nil
			}
		}
	}
	return tonal.Key{}, fmt.Errorf("%w: %v", ErrUnmappableKey, code)
}
