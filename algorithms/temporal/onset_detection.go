package temporal

import (
	"github.com/mjibson/go-dsp/window"

	"github.com/RyanBlaney/sonido-camelot/algorithms/common"
	"github.com/RyanBlaney/sonido-camelot/algorithms/spectral"
)

// OnsetEnvelope computes an onset-strength curve from log-compressed spectral
// flux. Frames are processed one at a time so long tracks never hold a full
// spectrogram in memory.
type OnsetEnvelope struct {
	frameSize int
	hopSize   int
	window    []float64
	flux      *spectral.SpectralFlux
	fft       *spectral.FFT
}

// NewOnsetEnvelope creates an onset envelope extractor with Hann frames
func NewOnsetEnvelope(frameSize, hopSize int) *OnsetEnvelope {
	return &OnsetEnvelope{
		frameSize: frameSize,
		hopSize:   hopSize,
		window:    window.Hann(frameSize),
		flux:      spectral.NewSpectralFlux(),
		fft:       spectral.NewFFT(),
	}
}

// Compute returns one onset strength value per frame with the mean removed.
// A signal shorter than two frames yields nil.
func (oe *OnsetEnvelope) Compute(signal []float64) []float64 {
	if oe.frameSize <= 0 || oe.hopSize <= 0 || len(signal) < oe.frameSize+oe.hopSize {
		return nil
	}

	numFrames := (len(signal)-oe.frameSize)/oe.hopSize + 1
	envelope := make([]float64, numFrames)

	bins := oe.frameSize/2 + 1
	prev := make([]float64, bins)
	cur := make([]float64, bins)
	frame := make([]float64, oe.frameSize)

	for t := range numFrames {
		start := t * oe.hopSize
		for i := range frame {
			frame[i] = signal[start+i] * oe.window[i]
		}

		spectral.MagnitudeSpectrum(cur, oe.fft.Compute(frame))
		oe.flux.Compress(cur)

		if t > 0 {
			envelope[t] = oe.flux.Frame(prev, cur)
		}
		prev, cur = cur, prev
	}

	mean := common.Mean(envelope)
	for i := range envelope {
		envelope[i] -= mean
	}
	return envelope
}
