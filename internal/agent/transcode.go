package agent

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Output format handed to speech-to-text.
const (
	TargetSampleRate = 16000
	targetBitDepth   = 16
	wavFormatPCM     = 1
)

type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// Transcoder normalises uploaded audio to 16 kHz mono 16-bit PCM WAV.
type Transcoder struct {
	sampleRate int
}

func NewTranscoder() *Transcoder {
	return &Transcoder{sampleRate: TargetSampleRate}
}

// DetectFormat sniffs magic bytes first and falls back to the file extension.
func DetectFormat(filename string, data []byte) (Format, error) {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV, nil
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

// Normalize decodes a WAV or MP3 upload and re-encodes it for transcription.
func (t *Transcoder) Normalize(filename string, data []byte) ([]byte, error) {
	format, err := DetectFormat(filename, data)
	if err != nil {
		return nil, err
	}

	var samples []float64
	var rate int
	switch format {
	case FormatWAV:
		samples, rate, err = decodeWAV(data)
	case FormatMP3:
		samples, rate, err = decodeMP3(data)
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no audio samples", ErrUnrecognizedSpeech)
	}

	return encodeWAV(resample(samples, rate, t.sampleRate), t.sampleRate)
}

// decodeWAV returns mono samples in [-1, 1] and the source sample rate.
func decodeWAV(data []byte) ([]float64, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid WAV file", ErrUnsupportedFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) / scale
		}
		mono[i] = sum / float64(channels)
	}
	return mono, int(dec.SampleRate), nil
}

// decodeMP3 returns mono samples; go-mp3 always yields 16-bit stereo.
func decodeMP3(data []byte) ([]float64, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	frames := len(raw) / 4
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(raw[i*4]) | uint16(raw[i*4+1])<<8)
		r := int16(uint16(raw[i*4+2]) | uint16(raw[i*4+3])<<8)
		mono[i] = (float64(l) + float64(r)) / 2 / 32768
	}
	return mono, dec.SampleRate(), nil
}

// resample converts between rates by linear interpolation.
func resample(in []float64, from, to int) []float64 {
	if from <= 0 || from == to || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

func encodeWAV(samples []float64, rate int) ([]byte, error) {
	// wav.Encoder needs a seekable writer to patch the header on Close.
	f, err := os.CreateTemp("", "neuro-triage-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	ints := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		ints[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(f, rate, targetBitDepth, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           ints,
		SourceBitDepth: targetBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}
