package harmonic

import (
	"math"
	"math/rand"
	"testing"

	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
)

const testRate = 11025

func sine(freq float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / testRate)
	}
	return out
}

// clicks returns a train of single-sample impulses every period samples
func clicks(period, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i += period {
		out[i] = 1
	}
	return out
}

func TestSeparateSplitsToneFromClicks(t *testing.T) {
	n := 3 * testRate
	tone := sine(440, n)
	impulses := clicks(testRate, n)

	mix := make([]float64, n)
	for i := range mix {
		mix[i] = 0.5*tone[i] + 4*impulses[i]
	}

	iso := NewHarmonicIsolator(DefaultIsolatorConfig())
	sep, err := iso.Separate(mix, testRate)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if len(sep.Harmonic) != n || len(sep.Percussive) != n {
		t.Fatalf("output lengths %d/%d, want %d", len(sep.Harmonic), len(sep.Percussive), n)
	}

	// The harmonic part should track the tone far better than the mix does
	residual := func(x []float64) float64 {
		diff := make([]float64, n)
		for i := range diff {
			diff[i] = x[i] - 0.5*tone[i]
		}
		return common.RMS(diff[testRate/2 : n-testRate/2])
	}
	if residual(sep.Harmonic) >= residual(mix)*0.5 {
		t.Errorf("harmonic residual %v not well below mix residual %v", residual(sep.Harmonic), residual(mix))
	}

	if sep.Flatness > 0.2 {
		t.Errorf("tonal mix flatness %v", sep.Flatness)
	}
}

func TestSeparateNoiseIsFlat(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	noise := make([]float64, 4*testRate)
	for i := range noise {
		noise[i] = rng.NormFloat64() * 0.3
	}

	sep, err := NewHarmonicIsolator(DefaultIsolatorConfig()).Separate(noise, testRate)
	if err != nil {
		t.Fatal(err)
	}
	if sep.Flatness < 0.6 {
		t.Errorf("white noise flatness %v, expected near 1", sep.Flatness)
	}
}

func TestSeparateDoesNotMutateInput(t *testing.T) {
	in := sine(220, testRate)
	orig := append([]float64(nil), in...)

	cfg := DefaultIsolatorConfig()
	cfg.BandLimit = true
	if _, err := NewHarmonicIsolator(cfg).Separate(in, testRate); err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != orig[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

func TestSeparateEdgeCases(t *testing.T) {
	iso := NewHarmonicIsolator(IsolatorConfig{})
	if got := iso.Config(); got.FFTSize != 2048 || got.Margin != 1 {
		t.Errorf("zero config not defaulted: %+v", got)
	}

	sep, err := iso.Separate(nil, testRate)
	if err != nil || len(sep.Harmonic) != 0 {
		t.Errorf("empty input: %v %v", sep, err)
	}
	if _, err := iso.Separate([]float64{1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}

	silent, err := iso.Separate(make([]float64, testRate), testRate)
	if err != nil {
		t.Fatal(err)
	}
	if common.RMS(silent.Harmonic) != 0 || silent.HarmonicRatio != 0 {
		t.Errorf("silence should stay silent")
	}
}

func TestMedianFilters(t *testing.T) {
	mag := [][]float64{
		{1, 9, 1},
		{1, 1, 1},
		{5, 1, 1},
	}
	acrossTime := medianAcrossTime(mag, 3)
	if acrossTime[1][1] != 1 {
		t.Errorf("time median at (1,1) = %v", acrossTime[1][1])
	}
	if acrossTime[0][1] != 5 {
		t.Errorf("truncated edge median = %v, want 5", acrossTime[0][1])
	}

	acrossFreq := medianAcrossFrequency(mag, 3)
	if acrossFreq[0][1] != 1 {
		t.Errorf("freq median at (0,1) = %v", acrossFreq[0][1])
	}
}

func TestDetectPeaks(t *testing.T) {
	fftSize := 8192
	signal := sine(440, fftSize)
	for i := range signal {
		signal[i] *= 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
	}

	spectrum := make([]float64, fftSize/2+1)
	// direct DFT on the bins around 440 Hz keeps the test independent of the FFT package
	for k := 300; k < 360; k++ {
		re, im := 0.0, 0.0
		for n, x := range signal {
			angle := 2 * math.Pi * float64(k*n) / float64(fftSize)
			re += x * math.Cos(angle)
			im -= x * math.Sin(angle)
		}
		spectrum[k] = math.Hypot(re, im)
	}

	peaks := NewSpectralPeaks(testRate, 65, 2100, 0.1).DetectPeaks(spectrum, fftSize)
	if len(peaks) != 1 {
		t.Fatalf("expected one peak, got %d", len(peaks))
	}
	if math.Abs(peaks[0].Frequency-440) > 0.5 {
		t.Errorf("peak frequency %v, want 440", peaks[0].Frequency)
	}
}
