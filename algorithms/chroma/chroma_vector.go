package chroma

import (
	"gonum.org/v1/gonum/floats"
)

// NumPitchClasses is the number of bins in a ChromaVector
const NumPitchClasses = 12

// ChromaVector holds non-negative energy per pitch class, index 0 = C .. 11 = B
type ChromaVector [NumPitchClasses]float64

// Slice returns a copy of the vector as a slice
func (cv ChromaVector) Slice() []float64 {
	out := make([]float64, NumPitchClasses)
	copy(out, cv[:])
	return out
}

// Sum returns the total energy
func (cv ChromaVector) Sum() float64 {
	return floats.Sum(cv[:])
}

// IsZero reports whether the vector carries no energy
func (cv ChromaVector) IsZero() bool {
	return cv.Sum() <= 0
}

// Normalized scales the vector to unit sum. A zero vector is returned unchanged.
func (cv ChromaVector) Normalized() ChromaVector {
	total := cv.Sum()
	if total <= 0 {
		return cv
	}
	var out ChromaVector
	for i, v := range cv {
		out[i] = v / total
	}
	return out
}

// Rotate returns the vector rotated so that out[i] = cv[(i+shift) mod 12]
func (cv ChromaVector) Rotate(shift int) ChromaVector {
	var out ChromaVector
	shift = ((shift % NumPitchClasses) + NumPitchClasses) % NumPitchClasses
	for i := range out {
		out[i] = cv[(i+shift)%NumPitchClasses]
	}
	return out
}

// Argmax returns the strongest pitch class; ties go to the lowest index
func (cv ChromaVector) Argmax() int {
	return floats.MaxIdx(cv[:])
}

// Add accumulates other into cv
func (cv *ChromaVector) Add(other ChromaVector) {
	floats.Add(cv[:], other[:])
}

// Scale multiplies every bin by s
func (cv *ChromaVector) Scale(s float64) {
	floats.Scale(s, cv[:])
}
