package spectral

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the FFT of a real signal using mjibson/go-dsp
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes, including non-power-of-2
	return fft.FFTReal(x)
}

// ComputeComplex computes the FFT of a complex signal
func (f *FFT) ComputeComplex(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFT(x)
}

// ComputeInverse computes inverse FFT
func (f *FFT) ComputeInverse(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.IFFT(x)
}

// ComputeInverseHalf rebuilds a real signal of length n from its positive
// frequency bins (n/2+1 values) by mirroring the conjugate half.
func (f *FFT) ComputeInverseHalf(half []complex128, n int) []float64 {
	if len(half) == 0 || n <= 0 {
		return []float64{}
	}

	full := make([]complex128, n)
	copy(full, half)
	for k := 1; k < (n+1)/2; k++ {
		if k < len(half) {
			re, im := real(half[k]), imag(half[k])
			full[n-k] = complex(re, -im)
		}
	}

	result := fft.IFFT(full)
	out := make([]float64, n)
	for i, val := range result {
		out[i] = real(val)
	}
	return out
}

// MagnitudeSpectrum writes |X[k]| of the first len(dst) bins into dst and
// returns it. Bins beyond the spectrum are zeroed.
func MagnitudeSpectrum(dst []float64, spectrum []complex128) []float64 {
	for i := range dst {
		if i >= len(spectrum) {
			dst[i] = 0
			continue
		}
		re, im := real(spectrum[i]), imag(spectrum[i])
		dst[i] = math.Sqrt(re*re + im*im)
	}
	return dst
}
