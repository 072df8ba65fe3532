package chroma

import (
	"math"
	"testing"
)

const testRate = 11025

// tones sums unit sines at the given frequencies
func tones(n int, freqs ...float64) []float64 {
	out := make([]float64, n)
	for _, f := range freqs {
		for i := range out {
			out[i] += math.Sin(2 * math.Pi * f * float64(i) / testRate)
		}
	}
	return out
}

func TestChromaVectorHelpers(t *testing.T) {
	cv := ChromaVector{1, 0, 0, 0, 2, 0, 0, 1, 0, 0, 0, 0}

	if cv.Sum() != 4 {
		t.Errorf("Sum = %v", cv.Sum())
	}
	if cv.Argmax() != 4 {
		t.Errorf("Argmax = %d", cv.Argmax())
	}
	if n := cv.Normalized(); math.Abs(n.Sum()-1) > 1e-12 || n[4] != 0.5 {
		t.Errorf("Normalized = %v", n)
	}

	rotated := cv.Rotate(4)
	if rotated[0] != 2 || rotated[3] != 1 || rotated[8] != 1 {
		t.Errorf("Rotate(4) = %v", rotated)
	}
	if cv.Rotate(-8) != rotated {
		t.Error("Rotate(-8) should equal Rotate(4)")
	}

	if !(ChromaVector{}).IsZero() || cv.IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestTuningEstimator(t *testing.T) {
	n := 3 * testRate
	te := NewTuningEstimator(testRate, 440)

	tests := []struct {
		name  string
		cents float64
	}{
		{"concert pitch", 0},
		{"sharp", 30},
		{"flat", -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio := math.Pow(2, tt.cents/1200)
			signal := tones(n, 220*ratio, 277.18*ratio, 329.63*ratio)

			got := te.Estimate(signal)
			want := tt.cents / 100
			if math.Abs(got-want) > 0.03 {
				t.Errorf("Estimate = %.3f, want %.3f", got, want)
			}
		})
	}

	if got := te.Estimate(make([]float64, n)); got != 0 {
		t.Errorf("silence tuning = %v", got)
	}
	if got := te.Estimate(nil); got != 0 {
		t.Errorf("empty tuning = %v", got)
	}
}

func TestChromaExtractorPureTone(t *testing.T) {
	ce, err := NewChromaExtractor(testRate, DefaultCQTConfig(), 0)
	if err != nil {
		t.Fatalf("NewChromaExtractor: %v", err)
	}

	if got := len(ce.Frequencies()); got != 5*12*3 {
		t.Errorf("bins = %d, want 180", got)
	}
	if ce.FFTSize()&(ce.FFTSize()-1) != 0 {
		t.Errorf("fft size %d is not a power of two", ce.FFTSize())
	}

	chroma := ce.Extract(tones(3*testRate, 440))
	if got := chroma.Argmax(); got != 9 {
		t.Fatalf("argmax = %d, want 9 (A); chroma %v", got, chroma)
	}
	// neighbouring semitones stay well below the tone
	if chroma[8] > 0.2*chroma[9] || chroma[10] > 0.2*chroma[9] {
		t.Errorf("energy leaks into neighbours: %v", chroma)
	}
}

func TestChromaExtractorTriad(t *testing.T) {
	ce, err := NewChromaExtractor(testRate, DefaultCQTConfig(), 0)
	if err != nil {
		t.Fatal(err)
	}

	// C4 E4 G4
	chroma := ce.Extract(tones(3*testRate, 261.63, 329.63, 392.00))
	triad := map[int]bool{0: true, 4: true, 7: true}

	lowestTriad := math.Inf(1)
	highestOther := 0.0
	for pc, v := range chroma {
		if triad[pc] {
			lowestTriad = math.Min(lowestTriad, v)
		} else {
			highestOther = math.Max(highestOther, v)
		}
	}
	if lowestTriad <= highestOther {
		t.Errorf("triad bins not dominant: %v", chroma)
	}
}

func TestTuningEstimatorReference(t *testing.T) {
	signal := tones(3*testRate, 432)

	if got := NewTuningEstimator(testRate, 432).Estimate(signal); math.Abs(got) > 0.03 {
		t.Errorf("offset against 432 Hz = %.3f, want 0", got)
	}
	// 432 Hz is about 32 cents below A440
	if got := NewTuningEstimator(testRate, 440).Estimate(signal); math.Abs(got+0.318) > 0.03 {
		t.Errorf("offset against 440 Hz = %.3f, want -0.318", got)
	}
	if got := NewTuningEstimator(testRate, 0).Estimate(signal); math.Abs(got+0.318) > 0.03 {
		t.Errorf("default reference offset = %.3f, want -0.318", got)
	}
}

func TestChromaExtractorTuningCorrection(t *testing.T) {
	// A4 played 40 cents sharp sits close to A#
	sharp := 440 * math.Pow(2, 40.0/1200)
	signal := tones(3*testRate, sharp)

	offset := NewTuningEstimator(testRate, 440).Estimate(signal)
	if math.Abs(offset-0.4) > 0.03 {
		t.Fatalf("tuning offset = %.3f, want 0.4", offset)
	}

	ce, err := NewChromaExtractor(testRate, DefaultCQTConfig(), offset)
	if err != nil {
		t.Fatal(err)
	}
	if ce.Tuning() != offset {
		t.Errorf("Tuning() = %v", ce.Tuning())
	}

	chroma := ce.Extract(signal)
	if chroma.Argmax() != 9 {
		t.Errorf("corrected argmax = %d, want 9; chroma %v", chroma.Argmax(), chroma)
	}
	if chroma[10] > 0.2*chroma[9] {
		t.Errorf("corrected chroma still leaks into A#: %v", chroma)
	}
}

func TestChromaExtractorEdgeCases(t *testing.T) {
	ce, err := NewChromaExtractor(testRate, DefaultCQTConfig(), 0)
	if err != nil {
		t.Fatal(err)
	}

	if got := ce.Extract(nil); !got.IsZero() {
		t.Errorf("empty input chroma = %v", got)
	}
	if got := ce.Extract(make([]float64, 2*testRate)); !got.IsZero() {
		t.Errorf("silent input chroma = %v", got)
	}

	// shorter than one frame is zero padded
	short := tones(testRate/2, 440)
	if got := ce.Extract(short); got.Argmax() != 9 {
		t.Errorf("short input argmax = %d", got.Argmax())
	}

	if _, err := NewChromaExtractor(0, DefaultCQTConfig(), 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := NewChromaExtractor(100, DefaultCQTConfig(), 0); err == nil {
		t.Error("expected error when no bin fits below Nyquist")
	}
	if _, err := NewChromaExtractor(testRate, DefaultCQTConfig(), 0.7); err == nil {
		t.Error("expected error for tuning outside half a semitone")
	}
}

func TestChromaExtractorDropsBinsAboveNyquist(t *testing.T) {
	ce, err := NewChromaExtractor(2000, DefaultCQTConfig(), 0)
	if err != nil {
		t.Fatal(err)
	}
	freqs := ce.Frequencies()
	if len(freqs) >= 180 {
		t.Fatalf("expected bins above 1 kHz to be dropped, got %d", len(freqs))
	}
	for _, f := range freqs {
		if f >= 1000 {
			t.Errorf("bin at %.1f Hz exceeds Nyquist", f)
		}
	}
}
