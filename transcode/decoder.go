// Package transcode loads audio files into mono float PCM for analysis. WAV
// files are read natively; every other container goes through ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-camelot/logging"
)

// ErrDecodeFailure wraps every failure to turn input into PCM. It is fatal for
// the affected track only.
var ErrDecodeFailure = errors.New("audio decode failed")

// AudioData is decoded mono PCM normalised to [-1, 1]
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channels in the source before mixdown
	Duration   time.Duration `json:"duration"`
	Codec      string        `json:"codec,omitempty"`
	Source     string        `json:"source,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"` // ffmpeg output rate; WAV keeps its own rate
	MaxDuration      time.Duration `json:"max_duration"`       // 0 = whole file
	ResampleQuality  string        `json:"resample_quality"`   // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`

	// Loudness normalisation changes the energy rating, so it is off by default
	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultDecoderConfig returns the decoder settings used for key analysis
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    22050,
		MaxDuration:         0,
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             2 * time.Minute,
		EnableNormalization: false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -16.0,
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// Decoder turns files and byte slices into AudioData
type Decoder struct {
	config *DecoderConfig
}

// AudioMetadata holds the source properties reported by ffprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
}

// NewDecoder creates a decoder; nil uses the defaults
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// Config returns the decoder configuration
func (d *Decoder) Config() DecoderConfig {
	return *d.config
}

// DecodeFile decodes an audio file. WAV files are read directly and fall back
// to ffmpeg when their encoding is not supported natively.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	if strings.EqualFold(filepath.Ext(filename), ".wav") {
		data, err := d.decodeWAVFile(filename)
		if err == nil {
			logger.Debug("WAV decoded natively", logging.Fields{
				"sample_rate": data.SampleRate,
				"channels":    data.Channels,
				"duration":    data.Duration.Seconds(),
			})
			return data, nil
		}
		logger.Debug("Native WAV decode failed, using ffmpeg", logging.Fields{
			"reason": err.Error(),
		})
	}

	metadata, err := d.probe(ctx, filename, nil)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodeFailure, filename, err)
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	data, err := d.runFFmpeg(ctx, filename, nil, metadata, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodeFailure, filename, err)
	}
	data.Source = filename
	return data, nil
}

// DecodeBytes decodes an in-memory file. RIFF/WAVE data is read directly.
func (d *Decoder) DecodeBytes(ctx context.Context, raw []byte) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeBytes",
		"data_size": len(raw),
	})

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty audio data", ErrDecodeFailure)
	}

	if isWAV(raw) {
		data, err := d.DecodeWAV(bytes.NewReader(raw))
		if err == nil {
			return data, nil
		}
		logger.Debug("Native WAV decode failed, using ffmpeg", logging.Fields{
			"reason": err.Error(),
		})
	}

	metadata, err := d.probe(ctx, "pipe:0", raw)
	if err != nil {
		logger.Error(err, "Failed to probe audio data")
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}

	data, err := d.runFFmpeg(ctx, "pipe:0", raw, metadata, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	return data, nil
}

func isWAV(raw []byte) bool {
	return len(raw) >= 12 && string(raw[0:4]) == "RIFF" && string(raw[8:12]) == "WAVE"
}

// command builds an ffmpeg/ffprobe invocation bounded by the configured timeout
func (d *Decoder) command(ctx context.Context, path string, args []string, stdin []byte) (*exec.Cmd, context.CancelFunc) {
	cancel := context.CancelFunc(func() {})
	if d.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	return cmd, cancel
}

// probe reads the first audio stream's properties. input is a path or
// "pipe:0" with stdin set.
func (d *Decoder) probe(ctx context.Context, input string, stdin []byte) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		input,
	}

	cmd, cancel := d.command(ctx, d.config.FFprobePath, args, stdin)
	defer cancel()

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput extracts the audio stream properties from ffprobe JSON
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	// unparsable optional fields stay zero
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
	}, nil
}

// runFFmpeg decodes input to mono f64le at the target sample rate
func (d *Decoder) runFFmpeg(ctx context.Context, input string, stdin []byte, metadata *AudioMetadata, logger logging.Logger) (*AudioData, error) {
	args := append([]string{"-i", input}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1")

	cmd, cancel := d.command(ctx, d.config.FFmpegPath, args, stdin)
	defer cancel()

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, errors.New("no audio samples decoded")
	}

	data := &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   metadata.Channels,
		Duration:   samplesDuration(len(samples), d.config.TargetSampleRate),
		Codec:      metadata.Codec,
	}

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_samples":     len(samples),
		"output_sample_rate": data.SampleRate,
		"output_duration":    data.Duration.Seconds(),
	})

	return data, nil
}

// buildFFmpegArgs builds the output arguments: mono raw float64 at the target rate
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	args := []string{
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}

	var filters []string
	if metadata != nil && metadata.SampleRate != d.config.TargetSampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			filters = append(filters, "aresample=resampler=soxr:precision=16")
		case "medium":
			filters = append(filters, "aresample=resampler=soxr:precision=20")
		case "high":
			filters = append(filters, "aresample=resampler=soxr:precision=28")
		}
	}
	if d.config.EnableNormalization {
		if f := d.buildNormalizationFilter(); f != "" {
			filters = append(filters, f)
		}
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	return append(args, "-v", "error")
}

func (d *Decoder) buildNormalizationFilter() string {
	switch d.config.NormalizationMethod {
	case "loudnorm":
		// EBU R128
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS,
			d.config.TargetPeak,
			d.config.LoudnessRange)
	case "dynaudnorm":
		return "dynaudnorm=p=0.95:m=10:s=12"
	default:
		return ""
	}
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a partial
// trailing sample
func bytesToFloat64(data []byte) []float64 {
	count := len(data) / 8
	if count == 0 {
		return nil
	}

	samples := make([]float64, count)
	for i := range count {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return samples
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// ValidateConfig checks the configuration and that ffmpeg is installed
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}
	if err := d.checkFFmpegAvailability(); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

func (d *Decoder) checkFFmpegAvailability() error {
	if _, err := exec.LookPath(d.config.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	if _, err := exec.LookPath(d.config.FFprobePath); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}
	return nil
}

// decodeWAVFile opens filename and reads it natively
func (d *Decoder) decodeWAVFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := d.DecodeWAV(f)
	if err != nil {
		return nil, err
	}
	data.Source = filename
	return data, nil
}
