package camelot

import (
	"errors"
	"testing"

	"github.com/RyanBlaney/sonido-camelot/algorithms/tonal"
)

func mustKey(t *testing.T, name string) tonal.Key {
	t.Helper()
	k, err := tonal.ParseKey(name)
	if err != nil {
		t.Fatalf("ParseKey(%q): %v", name, err)
	}
	return k
}

func TestLookupKnownCodes(t *testing.T) {
	tests := map[string]string{
		"C major": "8B", "G major": "9B", "D major": "10B", "A major": "11B",
		"E major": "12B", "B major": "1B", "F# major": "2B", "Db major": "3B",
		"Ab major": "4B", "Eb major": "5B", "Bb major": "6B", "F major": "7B",

		"A minor": "8A", "E minor": "9A", "B minor": "10A", "F# minor": "11A",
		"C# minor": "12A", "G# minor": "1A", "D# minor": "2A", "Bb minor": "3A",
		"F minor": "4A", "C minor": "5A", "G minor": "6A", "D minor": "7A",
	}

	m := Default()
	for name, want := range tests {
		code, err := m.Lookup(mustKey(t, name))
		if err != nil {
			t.Errorf("Lookup(%s): %v", name, err)
			continue
		}
		if code.String() != want {
			t.Errorf("Lookup(%s) = %s, want %s", name, code, want)
		}
	}
}

func TestLookupTotalAndCollisionFree(t *testing.T) {
	m := Default()
	seen := make(map[Code]tonal.Key)

	for _, mode := range []tonal.Mode{tonal.ModeMajor, tonal.ModeMinor} {
		for pc := tonal.C; pc <= tonal.B; pc++ {
			key := tonal.Key{Tonic: pc, Mode: mode}
			code, err := m.Lookup(key)
			if err != nil {
				t.Fatalf("Lookup(%v): %v", key, err)
			}
			if !code.Valid() {
				t.Fatalf("Lookup(%v) = invalid code %v", key, code)
			}
			if prev, dup := seen[code]; dup {
				t.Errorf("%v and %v share code %v", prev, key, code)
			}
			seen[code] = key

			wantLetter := LetterMajor
			if mode == tonal.ModeMinor {
				wantLetter = LetterMinor
			}
			if code.Letter != wantLetter {
				t.Errorf("%v has letter %c", key, code.Letter)
			}

			// the relative key sits at the same number
			rel, err := m.Lookup(key.Relative())
			if err != nil || rel.Number != code.Number {
				t.Errorf("relative of %v at %v, want number %d", key, rel, code.Number)
			}

			// round trip through the reverse lookup
			back, err := m.Key(code)
			if err != nil || back != key {
				t.Errorf("Key(%v) = %v, %v; want %v", code, back, err, key)
			}
		}
	}
	if len(seen) != 24 {
		t.Errorf("%d distinct codes, want 24", len(seen))
	}
}

func TestLookupEnharmonicSpellings(t *testing.T) {
	pairs := [][2]string{
		{"G# minor", "Ab minor"},
		{"F# major", "Gb major"},
		{"C# major", "Db major"},
		{"D# minor", "Eb minor"},
		{"A# major", "Bb major"},
		{"B major", "Cb major"},
		{"E minor", "Fb minor"},
	}
	m := Default()
	for _, p := range pairs {
		a, errA := m.Lookup(mustKey(t, p[0]))
		b, errB := m.Lookup(mustKey(t, p[1]))
		if errA != nil || errB != nil || a != b {
			t.Errorf("%s -> %v, %s -> %v", p[0], a, p[1], b)
		}
	}
}

func TestDorianUsesMinorFamily(t *testing.T) {
	m := Default()
	dorian, err := m.Lookup(tonal.Key{Tonic: tonal.D, Mode: tonal.ModeDorian})
	if err != nil {
		t.Fatal(err)
	}
	if dorian.String() != "7A" {
		t.Errorf("D dorian = %v, want 7A", dorian)
	}
}

func TestUnknownAndUnmappable(t *testing.T) {
	m := Default()
	if got := m.CodeString(nil); got != Unknown {
		t.Errorf("nil key code = %q", got)
	}
	if _, err := m.Lookup(tonal.Key{Tonic: 12, Mode: tonal.ModeMajor}); !errors.Is(err, ErrUnmappableKey) {
		t.Errorf("invalid tonic error = %v", err)
	}
	if _, err := m.Lookup(tonal.Key{Tonic: tonal.C, Mode: tonal.Mode(9)}); !errors.Is(err, ErrUnmappableKey) {
		t.Errorf("invalid mode error = %v", err)
	}
	if got := m.CodeString(&tonal.Key{Tonic: 40}); got != Unknown {
		t.Errorf("unmappable key code = %q", got)
	}
	if got := (Code{}).String(); got != Unknown {
		t.Errorf("zero code = %q", got)
	}
}

func TestParseCode(t *testing.T) {
	for _, s := range []string{"1A", "12B", "8a", " 5b "} {
		if _, err := ParseCode(s); err != nil {
			t.Errorf("ParseCode(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "A", "0A", "13B", "8C", "xB", "??"} {
		if _, err := ParseCode(s); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("ParseCode(%q) error = %v", s, err)
		}
	}
}

func TestNewMapOverrides(t *testing.T) {
	m, err := NewMap(map[string]string{"F# minor": "10A"})
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	if got := m.CodeString(&tonal.Key{Tonic: tonal.FSharp, Mode: tonal.ModeMinor}); got != "10A" {
		t.Errorf("override not applied: %s", got)
	}
	// other keys keep the standard table
	if got := m.CodeString(&tonal.Key{Tonic: tonal.B, Mode: tonal.ModeMinor}); got != "10A" {
		t.Errorf("B minor = %s", got)
	}
	if got := Default().CodeString(&tonal.Key{Tonic: tonal.FSharp, Mode: tonal.ModeMinor}); got != "11A" {
		t.Errorf("default map modified: %s", got)
	}

	bad := []map[string]string{
		{"H minor": "10A"},
		{"F# minor": "13A"},
		{"F# minor": "10A", "Gb minor": "11A"},
	}
	for _, o := range bad {
		if _, err := NewMap(o); err == nil {
			t.Errorf("NewMap(%v) accepted invalid overrides", o)
		}
	}
}

func TestRelate(t *testing.T) {
	code := func(s string) Code {
		c, err := ParseCode(s)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}

	tests := []struct {
		a, b string
		want Relation
	}{
		{"8A", "8A", RelationSame},
		{"8A", "8B", RelationRelative},
		{"8A", "9A", RelationAdjacent},
		{"12B", "1B", RelationAdjacent},
		{"8A", "9B", RelationDiagonal},
		{"1A", "12B", RelationDiagonal},
		{"8B", "2B", RelationNone},
		{"8A", "10A", RelationNone},
	}
	for _, tt := range tests {
		got := Relate(code(tt.a), code(tt.b))
		if got != tt.want {
			t.Errorf("Relate(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if Relate(code(tt.b), code(tt.a)) != got {
			t.Errorf("Relate(%s, %s) not symmetric", tt.a, tt.b)
		}
	}

	if RelationDiagonal.Compatible() || !RelationDiagonal.Related() {
		t.Error("diagonal should be related but not compatible")
	}
	if Relate(Code{}, code("8A")) != RelationNone {
		t.Error("invalid code should relate to nothing")
	}
}
