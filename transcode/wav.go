package transcode

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV reads integer PCM WAV data, mixes it down to mono and scales it
// to [-1, 1]. The file's own sample rate is kept.
func (d *Decoder) DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrDecodeFailure)
	}
	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: unsupported WAV format %d", ErrDecodeFailure, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: reading samples: %w", ErrDecodeFailure, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing WAV format", ErrDecodeFailure)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	pcm, err := mixdown(buf, bitDepth)
	if err != nil {
		return nil, err
	}

	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds() * float64(buf.Format.SampleRate))
		if limit < len(pcm) {
			pcm = pcm[:limit]
		}
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Duration:   samplesDuration(len(pcm), buf.Format.SampleRate),
		Codec:      fmt.Sprintf("pcm_s%dle", bitDepth),
	}, nil
}

// mixdown averages interleaved channels and normalises by the bit depth.
// 8-bit WAV samples are unsigned and centred on 128.
func mixdown(buf *audio.IntBuffer, bitDepth int) ([]float64, error) {
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDecodeFailure, bitDepth)
	}
	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDecodeFailure)
	}

	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}
	scale := float64(int64(1) << (bitDepth - 1))

	pcm := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch]) - offset
		}
		pcm[i] = sum / float64(channels) / scale
	}
	return pcm, nil
}
