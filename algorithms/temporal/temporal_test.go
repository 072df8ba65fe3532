package temporal

import (
	"math"
	"math/rand"
	"testing"
)

const testRate = 11025

// clickTrack places short decaying noise bursts on every beat
func clickTrack(bpm float64, seconds int) []float64 {
	n := seconds * testRate
	out := make([]float64, n)
	period := int(math.Round(60 / bpm * testRate))
	rng := rand.New(rand.NewSource(7))
	for start := 0; start < n; start += period {
		for i := 0; i < 200 && start+i < n; i++ {
			out[start+i] = (rng.Float64()*2 - 1) * math.Exp(-float64(i)/40)
		}
	}
	return out
}

func sine(freq, amp float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func TestOnsetEnvelope(t *testing.T) {
	oe := NewOnsetEnvelope(2048, 512)

	if env := oe.Compute(make([]float64, 1000)); env != nil {
		t.Errorf("short input envelope = %v", env)
	}

	env := oe.Compute(clickTrack(120, 5))
	if len(env) != (5*testRate-2048)/512+1 {
		t.Fatalf("envelope length %d", len(env))
	}

	sum := 0.0
	for _, v := range env {
		sum += v
	}
	if math.Abs(sum/float64(len(env))) > 1e-9 {
		t.Errorf("envelope mean %v, want 0", sum/float64(len(env)))
	}
}

func TestTempoEstimatorClickTracks(t *testing.T) {
	te := NewTempoEstimator(DefaultTempoConfig())

	for _, bpm := range []float64{90, 120, 140} {
		got, err := te.EstimateTempo(clickTrack(bpm, 20), testRate)
		if err != nil {
			t.Fatalf("EstimateTempo: %v", err)
		}
		if math.Abs(float64(got)-bpm) > 4 {
			t.Errorf("bpm %v estimated as %d", bpm, got)
		}
	}
}

func TestTempoEstimatorPercussive(t *testing.T) {
	cfg := DefaultTempoConfig()
	cfg.Percussive = true
	te := NewTempoEstimator(cfg)

	clicks := clickTrack(120, 20)
	pad := sine(220, 0.3, len(clicks))
	mix := make([]float64, len(clicks))
	for i := range mix {
		mix[i] = clicks[i] + pad[i]
	}

	got, err := te.EstimateTempo(mix, testRate)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(got)-120) > 4 {
		t.Errorf("percussive bpm = %d, want 120", got)
	}
}

func TestTempoEstimatorSilenceAndShortInput(t *testing.T) {
	te := NewTempoEstimator(DefaultTempoConfig())

	for name, signal := range map[string][]float64{
		"silence": make([]float64, 10*testRate),
		"short":   clickTrack(120, 1)[:testRate/4],
		"empty":   nil,
	} {
		got, err := te.EstimateTempo(signal, testRate)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != 0 {
			t.Errorf("%s: bpm = %d, want 0", name, got)
		}
	}

	if _, err := te.EstimateTempo([]float64{1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestTempoPriorWeight(t *testing.T) {
	te := NewTempoEstimator(DefaultTempoConfig())
	if w := te.weight(120); w != 1 {
		t.Errorf("weight at prior centre = %v", w)
	}
	if w60, w240 := te.weight(60), te.weight(240); math.Abs(w60-w240) > 1e-12 || w60 >= 1 {
		t.Errorf("prior not symmetric in octaves: %v %v", w60, w240)
	}

	cfg := DefaultTempoConfig()
	cfg.UsePrior = false
	if w := NewTempoEstimator(cfg).weight(60); w != 1 {
		t.Errorf("disabled prior weight = %v", w)
	}
}

func TestEnergyEstimator(t *testing.T) {
	ee := NewEnergyEstimator()

	silent := ee.Estimate(make([]float64, 2*testRate), testRate, 0)
	if silent.Rating != 1 {
		t.Errorf("silence rating = %d", silent.Rating)
	}

	// full-scale 440 Hz sine: loudness saturates, brightness is 0
	tone := ee.Estimate(sine(440, 1, 2*testRate), testRate, 0)
	if tone.Loudness != 1 || tone.Brightness != 0 || tone.Tempo != 0 {
		t.Errorf("tone components = %+v", tone)
	}
	if tone.Rating != 6 {
		t.Errorf("tone rating = %d, want 6", tone.Rating)
	}

	// loud noise at a fast tempo should rate at the top
	rng := rand.New(rand.NewSource(3))
	noise := make([]float64, 2*testRate)
	for i := range noise {
		noise[i] = rng.Float64()*2 - 1
	}
	loud := ee.Estimate(noise, testRate, 180)
	if loud.Rating < 9 {
		t.Errorf("loud bright fast rating = %d (%+v)", loud.Rating, loud)
	}

	quiet := ee.Estimate(sine(220, 0.01, 2*testRate), testRate, 70)
	if quiet.Rating >= tone.Rating {
		t.Errorf("quiet rating %d not below tone rating %d", quiet.Rating, tone.Rating)
	}
	for _, f := range []EnergyFeatures{silent, tone, loud, quiet} {
		if f.Rating < 1 || f.Rating > 10 {
			t.Errorf("rating %d out of range", f.Rating)
		}
	}
}
