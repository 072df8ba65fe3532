package chroma

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"

	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
	"github.com/RyanBlaney/sonido-camelot/algorithms/spectral"
)

// CQTConfig configures the constant-Q chroma front end
type CQTConfig struct {
	MinFreq           float64 `json:"min_freq"`           // lowest semitone centre, Hz (C2 by default)
	Octaves           int     `json:"octaves"`            // number of octaves analysed
	BinsPerSemitone   int     `json:"bins_per_semitone"`  // 1 or 3
	ReferenceFreq     float64 `json:"reference_freq"`     // A4 in Hz before tuning correction
	SparsityThreshold float64 `json:"sparsity_threshold"` // kernel coefficients below this fraction of the peak are dropped
}

// DefaultCQTConfig returns the chroma settings used for key analysis
func DefaultCQTConfig() CQTConfig {
	return CQTConfig{
		MinFreq:           65.41,
		Octaves:           5,
		BinsPerSemitone:   3,
		ReferenceFreq:     440.0,
		SparsityThreshold: 0.0054,
	}
}

// sparseKernel holds the significant conjugated spectral kernel coefficients
// of one constant-Q bin, already divided by the FFT size
type sparseKernel struct {
	index []int
	coeff []complex128
}

// ChromaExtractor folds a constant-Q transform into a 12-bin chroma vector.
//
// The transform follows Brown & Puckette's spectral kernel method: every bin is
// a Hann-windowed complex exponential whose length keeps the quality factor
// constant, transformed once to the frequency domain and applied to frame FFTs.
// An extractor is immutable after construction and safe for concurrent use.
type ChromaExtractor struct {
	sampleRate  int
	config      CQTConfig
	tuning      float64
	qFactor     float64
	fftSize     int
	hopSize     int
	frequencies []float64
	pitchClass  []int
	kernels     []sparseKernel
	fft         *spectral.FFT
}

// NewChromaExtractor builds the kernel bank for sampleRate. tuning is the
// offset returned by TuningEstimator, in fractions of a semitone.
func NewChromaExtractor(sampleRate int, config CQTConfig, tuning float64) (*ChromaExtractor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	def := DefaultCQTConfig()
	if config.MinFreq <= 0 {
		config.MinFreq = def.MinFreq
	}
	if config.Octaves <= 0 {
		config.Octaves = def.Octaves
	}
	if config.BinsPerSemitone <= 0 {
		config.BinsPerSemitone = def.BinsPerSemitone
	}
	if config.ReferenceFreq <= 0 {
		config.ReferenceFreq = def.ReferenceFreq
	}
	if config.SparsityThreshold <= 0 {
		config.SparsityThreshold = def.SparsityThreshold
	}
	if math.Abs(tuning) > 0.5 {
		return nil, fmt.Errorf("tuning offset %.3f outside [-0.5, 0.5]", tuning)
	}

	bps := config.BinsPerSemitone
	binsPerOctave := 12 * bps
	qFactor := 1.0 / (math.Pow(2, 1.0/float64(binsPerOctave)) - 1)

	// Pitch class of the lowest semitone relative to C
	lowestMIDI := int(math.Round(69 + 12*math.Log2(config.MinFreq/config.ReferenceFreq)))
	basePitchClass := ((lowestMIDI % 12) + 12) % 12

	tunedMin := config.MinFreq * math.Pow(2, tuning/12)
	nyquist := float64(sampleRate) / 2

	ce := &ChromaExtractor{
		sampleRate: sampleRate,
		config:     config,
		tuning:     tuning,
		qFactor:    qFactor,
		fft:        spectral.NewFFT(),
	}

	semitones := 12 * config.Octaves
	for s := range semitones {
		for j := range bps {
			offset := float64(j) - float64(bps-1)/2
			freq := tunedMin * math.Pow(2, (float64(s)+offset/float64(bps))/12)
			// keep the whole band of the bin below Nyquist
			if freq*(1+1/(2*qFactor)) >= nyquist {
				continue
			}
			ce.frequencies = append(ce.frequencies, freq)
			ce.pitchClass = append(ce.pitchClass, (basePitchClass+s)%12)
		}
	}
	if len(ce.frequencies) == 0 {
		return nil, fmt.Errorf("no constant-Q bins fit below Nyquist at %d Hz", sampleRate)
	}

	longest := int(math.Ceil(qFactor * float64(sampleRate) / ce.frequencies[0]))
	ce.fftSize = common.NextPowerOfTwo(longest)
	ce.hopSize = ce.fftSize / 4
	ce.buildKernels()

	return ce, nil
}

// buildKernels computes the sparse spectral kernel of every bin
func (ce *ChromaExtractor) buildKernels() {
	ce.kernels = make([]sparseKernel, len(ce.frequencies))
	temporal := make([]complex128, ce.fftSize)

	for k, freq := range ce.frequencies {
		length := min(int(math.Ceil(ce.qFactor*float64(ce.sampleRate)/freq)), ce.fftSize)
		win := window.Hann(length)
		start := (ce.fftSize - length) / 2

		clear(temporal)
		for n := range length {
			phase := 2 * math.Pi * freq * float64(n) / float64(ce.sampleRate)
			temporal[start+n] = complex(win[n]/float64(length), 0) * cmplx.Exp(complex(0, phase))
		}

		spectrum := ce.fft.ComputeComplex(temporal)

		peak := 0.0
		for _, v := range spectrum {
			peak = math.Max(peak, cmplx.Abs(v))
		}
		threshold := peak * ce.config.SparsityThreshold

		var kernel sparseKernel
		scale := complex(1/float64(ce.fftSize), 0)
		for j, v := range spectrum {
			if cmplx.Abs(v) > threshold {
				kernel.index = append(kernel.index, j)
				kernel.coeff = append(kernel.coeff, cmplx.Conj(v)*scale)
			}
		}
		ce.kernels[k] = kernel
	}
}

// FFTSize returns the analysis frame length in samples
func (ce *ChromaExtractor) FFTSize() int {
	return ce.fftSize
}

// Tuning returns the tuning offset the kernels were built for
func (ce *ChromaExtractor) Tuning() float64 {
	return ce.tuning
}

// Frequencies returns the centre frequency of every constant-Q bin
func (ce *ChromaExtractor) Frequencies() []float64 {
	return append([]float64(nil), ce.frequencies...)
}

// Transform returns the constant-Q magnitude of every frame, frames x bins.
// A signal shorter than one frame is analysed as a single zero padded frame
// with the signal in the middle.
func (ce *ChromaExtractor) Transform(signal []float64) [][]float64 {
	if len(signal) == 0 {
		return nil
	}

	var starts []int
	if len(signal) <= ce.fftSize {
		starts = []int{0}
	} else {
		for start := 0; start+ce.fftSize <= len(signal); start += ce.hopSize {
			starts = append(starts, start)
		}
	}

	// kernels are centred in the frame, so a short signal is centred too
	offset := max(0, (ce.fftSize-len(signal))/2)

	frame := make([]float64, ce.fftSize)
	out := make([][]float64, len(starts))
	for f, start := range starts {
		clear(frame)
		copy(frame[offset:], signal[start:min(start+ce.fftSize, len(signal))])
		spectrum := ce.fft.Compute(frame)

		row := make([]float64, len(ce.kernels))
		for k, kernel := range ce.kernels {
			var acc complex128
			for i, j := range kernel.index {
				acc += spectrum[j] * kernel.coeff[i]
			}
			row[k] = cmplx.Abs(acc)
		}
		out[f] = row
	}
	return out
}

// Extract computes the time-averaged chroma of signal. Each frame is folded to
// 12 pitch classes and scaled to a peak of 1 before averaging, so loud and quiet
// passages weigh the same. Silent or empty input yields a zero vector.
func (ce *ChromaExtractor) Extract(signal []float64) ChromaVector {
	var total ChromaVector
	frames := 0

	for _, row := range ce.Transform(signal) {
		var folded ChromaVector
		for k, v := range row {
			folded[ce.pitchClass[k]] += v
		}

		peak := folded[folded.Argmax()]
		if peak <= 1e-12 {
			continue
		}
		folded.Scale(1 / peak)
		total.Add(folded)
		frames++
	}

	if frames == 0 {
		return ChromaVector{}
	}
	total.Scale(1 / float64(frames))
	return total
}
