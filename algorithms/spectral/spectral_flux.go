package spectral

import (
	"math"
)

// SpectralFlux computes half-wave rectified spectral change between frames
type SpectralFlux struct {
	// LogCompression applies log(1 + c*|X|) before differencing when > 0
	LogCompression float64
}

// NewSpectralFlux creates a spectral flux calculator with log compression
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{LogCompression: 1000}
}

// Compress applies the configured log compression to a magnitude frame in place
func (sf *SpectralFlux) Compress(frame []float64) {
	if sf.LogCompression <= 0 {
		return
	}
	for i, v := range frame {
		frame[i] = math.Log1p(sf.LogCompression * v)
	}
}

// Frame returns the sum of positive bin increases from prev to cur.
// Frames are expected to be compressed already.
func (sf *SpectralFlux) Frame(prev, cur []float64) float64 {
	n := min(len(prev), len(cur))
	sum := 0.0
	for f := range n {
		if diff := cur[f] - prev[f]; diff > 0 {
			sum += diff
		}
	}
	return sum
}
