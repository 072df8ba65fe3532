package camelot

// Relation describes how two wheel positions relate for mixing
type Relation int

const (
	RelationNone     Relation = iota
	RelationSame              // identical code
	RelationRelative          // same number, other letter (relative major/minor)
	RelationAdjacent          // same letter, one step around the wheel
	RelationDiagonal          // one step around the wheel and the other letter
)

func (r Relation) String() string {
	switch r {
	case RelationSame:
		return "same"
	case RelationRelative:
		return "relative"
	case RelationAdjacent:
		return "adjacent"
	case RelationDiagonal:
		return "diagonal"
	default:
		return "none"
	}
}

// Related reports any relation other than RelationNone
func (r Relation) Related() bool {
	return r != RelationNone
}

// Compatible reports the classic harmonic mixing moves: same key, relative
// key or one step around the wheel
func (r Relation) Compatible() bool {
	return r == RelationSame || r == RelationRelative || r == RelationAdjacent
}

// Relate classifies the relation between two codes. Invalid codes relate to
// nothing.
func Relate(a, b Code) Relation {
	if !a.Valid() || !b.Valid() {
		return RelationNone
	}

	step := wheelDistance(a.Number, b.Number)
	sameLetter := a.Letter == b.Letter

	switch {
	case step == 0 && sameLetter:
		return RelationSame
	case step == 0:
		return RelationRelative
	case step == 1 && sameLetter:
		return RelationAdjacent
	case step == 1:
		return RelationDiagonal
	default:
		return RelationNone
	}
}

// wheelDistance is the number of steps between two positions around the wheel
func wheelDistance(a, b int) int {
	d := (a - b + 12) % 12
	return min(d, 12-d)
}
