package transcode

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV encodes interleaved integer samples with go-audio
func writeWAV(t *testing.T, path string, sampleRate, bitDepth, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

func TestDecodeWAVStereoMixdown(t *testing.T) {
	const rate = 8000
	path := filepath.Join(t.TempDir(), "tone.wav")

	frames := rate / 2
	data := make([]int, 0, frames*2)
	for i := range frames {
		v := int(16384 * math.Sin(2*math.Pi*440*float64(i)/rate))
		data = append(data, v, v/2)
	}
	writeWAV(t, path, rate, 16, 2, data)

	audioData, err := NewDecoder(nil).DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}

	if audioData.SampleRate != rate || audioData.Channels != 2 {
		t.Errorf("format = %d Hz, %d channels", audioData.SampleRate, audioData.Channels)
	}
	if len(audioData.PCM) != frames {
		t.Fatalf("decoded %d frames, want %d", len(audioData.PCM), frames)
	}
	if audioData.Duration != 500*time.Millisecond {
		t.Errorf("duration = %v", audioData.Duration)
	}
	if audioData.Source != path {
		t.Errorf("source = %q", audioData.Source)
	}

	for i := 0; i < frames; i += 97 {
		left, right := data[2*i], data[2*i+1]
		want := (float64(left) + float64(right)) / 2 / 32768
		if math.Abs(audioData.PCM[i]-want) > 1e-12 {
			t.Fatalf("sample %d = %v, want %v", i, audioData.PCM[i], want)
		}
	}
}

func TestDecodeBytesWAVAndMaxDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.wav")
	writeWAV(t, path, 1000, 16, 1, make([]int, 3000))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultDecoderConfig()
	cfg.MaxDuration = time.Second
	audioData, err := NewDecoder(cfg).DecodeBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if len(audioData.PCM) != 1000 {
		t.Errorf("decoded %d samples, want 1000", len(audioData.PCM))
	}
}

func TestDecodeFailures(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultDecoderConfig()
	// a missing binary keeps the test independent of an ffmpeg install
	cfg.FFmpegPath = filepath.Join(dir, "no-ffmpeg")
	cfg.FFprobePath = filepath.Join(dir, "no-ffprobe")
	d := NewDecoder(cfg)

	for _, path := range []string{garbage, filepath.Join(dir, "missing.mp3")} {
		if _, err := d.DecodeFile(context.Background(), path); !errors.Is(err, ErrDecodeFailure) {
			t.Errorf("DecodeFile(%s) error = %v, want ErrDecodeFailure", filepath.Base(path), err)
		}
	}
	if _, err := d.DecodeBytes(context.Background(), nil); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("empty bytes error = %v", err)
	}
	if err := d.ValidateConfig(); err == nil {
		t.Error("ValidateConfig accepted missing ffmpeg")
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.EnableNormalization = true
	cfg.MaxDuration = 90 * time.Second
	d := NewDecoder(cfg)

	args := d.buildFFmpegArgs(&AudioMetadata{SampleRate: 44100, Channels: 2})

	want := []string{"-f", "f64le", "-ac", "1", "-ar", "22050"}
	if !slices.Equal(args[:len(want)], want) {
		t.Errorf("args = %v", args)
	}

	idx := slices.Index(args, "-af")
	if idx < 0 {
		t.Fatalf("no filter chain in %v", args)
	}
	if got := args[idx+1]; got != "aresample=resampler=soxr:precision=20,loudnorm=I=-16.0:TP=-1.0:LRA=8.0" {
		t.Errorf("filter chain = %s", got)
	}
	if !slices.Contains(args, "90.00") {
		t.Errorf("duration limit missing from %v", args)
	}

	plain := NewDecoder(nil).buildFFmpegArgs(&AudioMetadata{SampleRate: 22050})
	if slices.Contains(plain, "-af") {
		t.Errorf("unexpected filters in %v", plain)
	}
}

func TestParseFFprobeOutput(t *testing.T) {
	meta, err := parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"44100","channels":2,"duration":"12.5","bit_rate":"320000"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if meta.SampleRate != 44100 || meta.Channels != 2 || meta.Codec != "mp3" || meta.Duration != 12.5 || meta.Bitrate != 320000 {
		t.Errorf("metadata = %+v", meta)
	}

	for _, bad := range []string{`{}`, `{"streams":[{"codec_type":"video","channels":2}]}`, `not json`} {
		if _, err := parseFFprobeOutput([]byte(bad)); err == nil {
			t.Errorf("parsed %s", bad)
		}
	}
}

func TestBytesToFloat64(t *testing.T) {
	raw := binary.LittleEndian.AppendUint64(nil, math.Float64bits(0.25))
	raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(-1))
	raw = append(raw, 1, 2, 3)

	got := bytesToFloat64(raw)
	if !slices.Equal(got, []float64{0.25, -1}) {
		t.Errorf("samples = %v", got)
	}
	if bytesToFloat64([]byte{1, 2}) != nil {
		t.Error("partial sample decoded")
	}
}
