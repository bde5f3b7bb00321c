package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Crazyka51/AudioCleaner/internal/audio"
	"github.com/Crazyka51/AudioCleaner/internal/media"
	"github.com/Crazyka51/AudioCleaner/internal/models"
)

// ToneWAV encodes a mono 16-bit WAV holding a quiet 300 Hz tone with some
// high-frequency hiss on top.
func ToneWAV(sampleRate int, seconds float64) []byte {
	n := int(float64(sampleRate) * seconds)
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = float32(0.4*math.Sin(2*math.Pi*300*t) + 0.05*math.Sin(2*math.Pi*2500*t))
	}

	f, err := os.CreateTemp("", "tone-*.wav")
	if err != nil {
		panic(err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := audio.WriteWAV(path, samples, sampleRate); err != nil {
		panic(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return data
}

// FakeTranscoder copies WAV input in place of ffmpeg. Remux writes a small
// placeholder file. Probe reports an audio stream, plus a video stream for
// .mov files, unless NoAudio or NoVideo is set.
type FakeTranscoder struct {
	mu       sync.Mutex
	Err      error
	NoAudio  bool
	NoVideo  bool
	Remuxed  int
	Converts int
}

func (f *FakeTranscoder) Probe(ctx context.Context, path string) (*media.ProbeResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	isMov := strings.EqualFold(filepath.Ext(path), ".mov")
	res := &media.ProbeResult{FormatName: "wav", HasAudio: !f.NoAudio, HasVideo: isMov && !f.NoVideo}
	if isMov {
		res.FormatName = "mov,mp4,m4a,3gp,3g2,mj2"
	}
	if res.HasAudio {
		res.AudioCodec = "pcm_s16le"
	}
	return res, nil
}

func (f *FakeTranscoder) ToWAV(ctx context.Context, in, out string) error {
	f.mu.Lock()
	f.Converts++
	err := f.Err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (f *FakeTranscoder) Remux(ctx context.Context, video, audioPath, out string) error {
	for _, in := range []string{video, audioPath} {
		if _, err := os.Stat(in); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.Remuxed++
	f.mu.Unlock()
	return os.WriteFile(out, []byte("ftypisom fake"), 0644)
}

// Check always succeeds.
func (f *FakeTranscoder) Check(ctx context.Context) error { return nil }

// FakeEnhancer scales the input by Gain.
type FakeEnhancer struct {
	Gain float32
	Err  error
}

func (e *FakeEnhancer) Name() string { return "fake" }

func (e *FakeEnhancer) Check(ctx context.Context) error {
	if e.Err != nil {
		return e.Err
	}
	return nil
}

func (e *FakeEnhancer) Enhance(ctx context.Context, in, out string) error {
	if e.Err != nil {
		return e.Err
	}
	wf, err := audio.ReadWAV(in)
	if err != nil {
		return err
	}
	gain := e.Gain
	if gain == 0 {
		gain = 0.5
	}
	for i := range wf.Samples {
		wf.Samples[i] *= gain
	}
	return audio.WriteWAV(out, wf.Samples, wf.SampleRate)
}

// MemoryHistory keeps history entries in a slice.
type MemoryHistory struct {
	mu      sync.Mutex
	Entries []models.HistoryEntry
	Err     error
}

func (h *MemoryHistory) Record(ctx context.Context, e models.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.Entries = append([]models.HistoryEntry{e}, h.Entries...)
	return nil
}

func (h *MemoryHistory) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}
	out := append([]models.HistoryEntry(nil), h.Entries...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *MemoryHistory) Stats(ctx context.Context) (models.HistoryStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return models.HistoryStats{}, h.Err
	}
	var st models.HistoryStats
	var cleanTotal int64
	for _, e := range h.Entries {
		st.Total++
		switch e.Status {
		case models.SessionStatusComplete:
			st.Completed++
			st.AudioSeconds += e.DurationSeconds
			cleanTotal += e.CleanTimeMs
		case models.SessionStatusError:
			st.Failed++
		}
		if e.Kind == models.MediaKindVideo {
			st.Videos++
		}
	}
	if st.Completed > 0 {
		st.AvgCleanTimeMs = float64(cleanTotal) / float64(st.Completed)
	}
	return st, nil
}

// ErrUnavailable is a canned dependency failure.
var ErrUnavailable = errors.New("unavailable")

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}
