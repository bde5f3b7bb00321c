// Package audio reads and writes PCM WAV files for analysis.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files the WAV decoder rejects.
var ErrInvalidWAV = errors.New("not a valid wav file")

// Waveform is a decoded recording mixed down to mono floats in [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
	Channels   int
	BitDepth   int
}

// Duration returns the length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Peak returns the largest absolute sample value.
func (w *Waveform) Peak() float64 {
	var peak float64
	for _, s := range w.Samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root-mean-square level.
func (w *Waveform) RMS() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range w.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(w.Samples)))
}

// Info is the header of a WAV file.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64 // seconds
}

// ReadInfo reads only the header and data chunk size of a WAV file.
func ReadInfo(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	d, err := dec.Duration()
	if err != nil {
		return nil, fmt.Errorf("reading wav duration: %w", err)
	}
	return &Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   d.Seconds(),
	}, nil
}

// ReadWAV decodes an integer PCM WAV file.
func ReadWAV(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading pcm: %w", err)
	}

	channels := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if channels < 1 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth == 0 {
		bitDepth = 16
	}

	return &Waveform{
		Samples:    mixdown(buf.Data, channels, bitDepth),
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}, nil
}

// mixdown averages interleaved integer channels into normalized mono floats.
func mixdown(data []int, channels, bitDepth int) []float32 {
	scale := float64(int64(1) << uint(bitDepth-1))
	frames := len(data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		out[i] = float32(sum / float64(channels) / scale)
	}
	return out
}

// WriteWAV encodes mono samples as 16-bit PCM.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		}
		if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767.0)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return f.Close()
}
