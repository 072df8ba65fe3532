package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/mjibson/go-dsp/window"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft *FFT
}

// STFTResult holds the result of STFT analysis.
// Frames are centered: frame t covers samples [t*hop - window/2, t*hop + window/2).
type STFTResult struct {
	Magnitude      [][]float64    `json:"magnitude"`       // Time x Frequency magnitude matrix
	Complex        [][]complex128 `json:"-"`               // Raw complex spectrogram (not serialized)
	Window         []float64      `json:"-"`               // Analysis window, reused for synthesis
	TimeFrames     int            `json:"time_frames"`     // Number of time frames
	FreqBins       int            `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int            `json:"sample_rate"`     // Sample rate
	WindowSize     int            `json:"window_size"`     // FFT window size
	HopSize        int            `json:"hop_size"`        // Hop size between frames
	SignalLength   int            `json:"signal_length"`   // Samples in the analysed signal
	FreqResolution float64        `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64        `json:"time_resolution"` // Time resolution (seconds/frame)
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Compute computes a centered, Hann-windowed STFT. The signal is zero padded by
// half a window on both sides so every sample is covered by full overlap.
func (s *STFT) Compute(signal []float64, windowSize int, hopSize int, sampleRate int) (*STFTResult, error) {
	return s.ComputeWithWindow(signal, windowSize, hopSize, sampleRate, window.Hann(windowSize))
}

// ComputeWithWindow computes a centered STFT with parallel frame processing and
// caller supplied window coefficients.
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, win []float64) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if len(win) != windowSize {
		return nil, fmt.Errorf("window length %d does not match window size %d", len(win), windowSize)
	}

	pad := windowSize / 2
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)

	numFrames := 1 + len(signal)/hopSize
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	complexSpectrum := make([][]complex128, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
		complexSpectrum[i] = make([]complex128, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)

	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				end := min(start+windowSize, len(padded))

				clear(frameBuffer)
				copy(frameBuffer, padded[start:end])
				for i := range frameBuffer {
					frameBuffer[i] *= win[i]
				}

				fftResult := s.fft.Compute(frameBuffer)

				for i := range freqBins {
					complexSpectrum[frameIdx][i] = fftResult[i]
					magnitude[frameIdx][i] = cmplx.Abs(fftResult[i])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()

	return &STFTResult{
		Magnitude:      magnitude,
		Complex:        complexSpectrum,
		Window:         win,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		SignalLength:   len(signal),
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// Inverse reconstructs a time-domain signal from a (possibly masked) complex
// spectrogram using weighted overlap-add. spectrum must have the frame layout of
// result; the output has result.SignalLength samples.
func (s *STFT) Inverse(result *STFTResult, spectrum [][]complex128) ([]float64, error) {
	if result == nil {
		return nil, fmt.Errorf("nil STFT result")
	}
	if len(spectrum) != result.TimeFrames {
		return nil, fmt.Errorf("spectrum has %d frames, expected %d", len(spectrum), result.TimeFrames)
	}

	windowSize := result.WindowSize
	hopSize := result.HopSize
	pad := windowSize / 2
	total := result.SignalLength + 2*pad

	output := make([]float64, total)
	norm := make([]float64, total)

	for t, frame := range spectrum {
		samples := s.fft.ComputeInverseHalf(frame, windowSize)
		start := t * hopSize
		for i := range windowSize {
			idx := start + i
			if idx >= total {
				break
			}
			w := result.Window[i]
			output[idx] += samples[i] * w
			norm[idx] += w * w
		}
	}

	for i := range output {
		if norm[i] > 1e-10 {
			output[i] /= norm[i]
		}
	}

	return output[pad : pad+result.SignalLength], nil
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
