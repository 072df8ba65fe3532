package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// Normalize normalizes data to zero mean and unit variance.
// Constant input is only mean-centered.
func Normalize(data []float64) []float64 {
	if len(data) == 0 {
		return data
	}

	mean := Mean(data)
	std := StandardDeviation(data)

	normalized := make([]float64, len(data))
	for i, val := range data {
		normalized[i] = val - mean
	}
	if std < 1e-10 {
		return normalized
	}

	floats.Scale(1/std, normalized)
	return normalized
}

// Correlation returns the Pearson correlation of x and y.
// Zero-variance input correlates 0 with everything instead of NaN.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}
	if StandardDeviation(x) < 1e-12 || StandardDeviation(y) < 1e-12 {
		return 0.0
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0.0
	}
	return r
}

// Median returns the median of data without modifying it
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MedianInPlace returns the median of buf, reordering it.
// Insertion sort is used since callers pass short filter windows.
func MedianInPlace(buf []float64) float64 {
	n := len(buf)
	if n == 0 {
		return 0.0
	}

	for i := 1; i < n; i++ {
		v := buf[i]
		j := i - 1
		for j >= 0 && buf[j] > v {
			buf[j+1] = buf[j]
			j--
		}
		buf[j+1] = v
	}

	if n%2 == 0 {
		return (buf[n/2-1] + buf[n/2]) / 2
	}
	return buf[n/2]
}

// ParabolicPeak refines the location of a local maximum at index i using its
// neighbours. Returns the fractional offset in [-0.5, 0.5] and the interpolated height.
func ParabolicPeak(data []float64, i int) (offset, height float64) {
	if i <= 0 || i >= len(data)-1 {
		return 0, data[i]
	}

	a, b, c := data[i-1], data[i], data[i+1]
	denom := a - 2*b + c
	if math.Abs(denom) < 1e-18 {
		return 0, b
	}

	offset = 0.5 * (a - c) / denom
	offset = Clamp(offset, -0.5, 0.5)
	height = b - 0.25*(a-c)*offset
	return offset, height
}

// Clamp restricts value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// NextPowerOfTwo returns the smallest power of two >= n
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
