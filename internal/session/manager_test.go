package session

import (
	"context"
	"errors"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Crazyka51/AudioCleaner/internal/audio"
	"github.com/Crazyka51/AudioCleaner/internal/media"
	"github.com/Crazyka51/AudioCleaner/internal/models"
	"github.com/Crazyka51/AudioCleaner/internal/spectrogram"
)

// fakeMedia copies WAV inputs instead of running ffmpeg.
type fakeMedia struct {
	mu         sync.Mutex
	probe      *media.ProbeResult
	probeErr   error
	convertErr error
	remuxErr   error
	gate       chan struct{}
	remuxCalls [][3]string
}

func (f *fakeMedia) Probe(ctx context.Context, path string) (*media.ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	if f.probe != nil {
		res := *f.probe
		return &res, nil
	}
	return &media.ProbeResult{FormatName: "wav", AudioCodec: "pcm_s16le", HasAudio: true, HasVideo: true}, nil
}

func (f *fakeMedia) ToWAV(ctx context.Context, in, out string) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	err := f.convertErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return copyFile(in, out)
}

func (f *fakeMedia) Remux(ctx context.Context, video, audioPath, out string) error {
	for _, in := range []string{video, audioPath} {
		if _, err := os.Stat(in); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.remuxCalls = append(f.remuxCalls, [3]string{video, audioPath, out})
	err := f.remuxErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(out, []byte("fake mp4 payload"), 0644)
}

// fakeEnhancer halves the signal level.
type fakeEnhancer struct {
	mu      sync.Mutex
	err     error
	panics  bool
	block   bool
	started chan struct{}
}

func (e *fakeEnhancer) Name() string                    { return "fake" }
func (e *fakeEnhancer) Check(ctx context.Context) error { return nil }

func (e *fakeEnhancer) Enhance(ctx context.Context, in, out string) error {
	e.mu.Lock()
	err, panics, block := e.err, e.panics, e.block
	e.mu.Unlock()

	if e.started != nil {
		e.started <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if panics {
		panic("model exploded")
	}
	if err != nil {
		return err
	}

	wf, err := audio.ReadWAV(in)
	if err != nil {
		return err
	}
	for i := range wf.Samples {
		wf.Samples[i] *= 0.5
	}
	return audio.WriteWAV(out, wf.Samples, wf.SampleRate)
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
}

func (h *fakeHistory) Record(ctx context.Context, e models.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return nil
}

func (h *fakeHistory) all() []models.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.HistoryEntry(nil), h.entries...)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeTone(t *testing.T, dir, name string, seconds float64) string {
	t.Helper()
	sr := 8000
	n := int(float64(sr) * seconds)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.4*math.Sin(2*math.Pi*300*float64(i)/float64(sr))) +
			float32(0.05*math.Sin(2*math.Pi*2500*float64(i)/float64(sr)))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, audio.WriteWAV(path, samples, sr))
	return path
}

func newTestManager(t *testing.T, fm *fakeMedia, enh *fakeEnhancer, hist *fakeHistory, mutate ...func(*Options)) *Manager {
	t.Helper()
	opts := Options{
		TempDir:     filepath.Join(t.TempDir(), "work"),
		MaxSessions: 4,
		JobTimeout:  10 * time.Second,
		Spectrogram: spectrogram.Options{FFTSize: 256, HopLength: 128, MelBands: 32},
		Render:      spectrogram.RenderOptions{PanelWidth: 64, PanelHeight: 32},
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	var rec Recorder
	if hist != nil {
		rec = hist
	}
	m, err := NewManager(fm, enh, rec, opts, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func waitFor(t *testing.T, m *Manager, id string) *models.CleanSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return s
}

func TestManager_AudioPipeline(t *testing.T) {
	hist := &fakeHistory{}
	m := newTestManager(t, &fakeMedia{}, &fakeEnhancer{}, hist)
	input := writeTone(t, t.TempDir(), "talk.wav", 1)

	sess, err := m.Start(context.Background(), "file-1", input, "talk.wav", models.MediaKindAudio)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusConverting, sess.Status)

	ready := waitFor(t, m, sess.ID)
	require.Equal(t, models.SessionStatusReady, ready.Status, ready.Error)
	assert.Equal(t, 8000, ready.SampleRate)
	assert.InDelta(t, 1.0, ready.DurationSeconds, 0.01)

	orig, err := m.OriginalPath(sess.ID)
	require.NoError(t, err)
	assert.FileExists(t, orig)

	_, err = m.CleanedPath(sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	done := waitFor(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status, done.Error)
	assert.Equal(t, "fake", done.Enhancer)
	assert.Equal(t, models.CleanedAudioName, done.DownloadName)
	assert.Equal(t, "audio/wav", done.DownloadMime)
	assert.Greater(t, done.ResultSize, int64(0))
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "wav", done.Container)
	require.NotNil(t, done.Levels)
	assert.InDelta(t, 0.45, done.Levels.OriginalPeak, 0.02)
	assert.InDelta(t, done.Levels.OriginalPeak/2, done.Levels.CleanedPeak, 0.01)
	assert.InDelta(t, done.Levels.OriginalRMS/2, done.Levels.CleanedRMS, 0.01)

	cleaned, err := m.CleanedPath(sess.ID)
	require.NoError(t, err)
	wf, err := audio.ReadWAV(cleaned)
	require.NoError(t, err)
	assert.InDelta(t, 0.225, wf.Peak(), 0.02)

	path, name, mime, err := m.Result(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, cleaned, path)
	assert.Equal(t, "cleaned_audio.wav", name)
	assert.Equal(t, "audio/wav", mime)

	assert.NoFileExists(t, m.dirs.Path(sess.ID, enhancedRawWAV))

	pngPath, err := m.SpectrogramPath(sess.ID)
	require.NoError(t, err)
	f, err := os.Open(pngPath)
	require.NoError(t, err)
	img, err := png.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, 64*2+8, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	data, err := m.SpectrogramData(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 32, data.MelBands)
	assert.Len(t, data.Original, 32)
	assert.Len(t, data.Cleaned, 32)

	entries := hist.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.SessionStatusComplete, entries[0].Status)
	assert.Equal(t, "talk.wav", entries[0].FileName)
	assert.Greater(t, entries[0].InputSize, int64(0))
}

func TestManager_VideoPipeline(t *testing.T) {
	fm := &fakeMedia{}
	m := newTestManager(t, fm, &fakeEnhancer{}, nil)
	// the fake transcoder only needs decodable audio, so a WAV stands in for the video
	input := writeTone(t, t.TempDir(), "clip.mov", 0.5)

	sess, err := m.Start(context.Background(), "file-2", input, "clip.mov", models.MediaKindVideo)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusReady, waitFor(t, m, sess.ID).Status)

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	done := waitFor(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status, done.Error)

	path, name, mime, err := m.Result(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "cleaned_output.mp4", name)
	assert.Equal(t, "video/mp4", mime)
	assert.Equal(t, filepath.Join(m.dirs.Root(), workDirPrefix+sess.ID, "cleaned_output.mp4"), path)

	require.Len(t, fm.remuxCalls, 1)
	assert.Equal(t, m.dirs.Path(sess.ID, "source.mov"), fm.remuxCalls[0][0])
	assert.Equal(t, m.dirs.Path(sess.ID, cleanedWAV), fm.remuxCalls[0][1])
}

func TestManager_VideoSourceOutlivesUpload(t *testing.T) {
	fm := &fakeMedia{}
	m := newTestManager(t, fm, &fakeEnhancer{}, nil)
	input := writeTone(t, t.TempDir(), "clip.mov", 0.5)

	sess, err := m.Start(context.Background(), "file-2", input, "clip.mov", models.MediaKindVideo)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusReady, waitFor(t, m, sess.ID).Status)

	// the upload store reaps or deletes its file while the session lives on
	require.NoError(t, os.Remove(input))
	assert.True(t, m.Touch(sess.ID))

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	done := waitFor(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status, done.Error)

	require.Len(t, fm.remuxCalls, 1)
	assert.FileExists(t, fm.remuxCalls[0][0])

	// a second clean still finds the video
	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusComplete, waitFor(t, m, sess.ID).Status)
}

func TestManager_VideoSourceLost(t *testing.T) {
	m := newTestManager(t, &fakeMedia{}, &fakeEnhancer{}, nil)
	input := writeTone(t, t.TempDir(), "clip.mov", 0.3)

	sess, err := m.Start(context.Background(), "f", input, "clip.mov", models.MediaKindVideo)
	require.NoError(t, err)
	waitFor(t, m, sess.ID)

	require.NoError(t, os.Remove(m.dirs.Path(sess.ID, "source.mov")))
	_, err = m.Clean(sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	s, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusReady, s.Status)
}

func TestManager_AudioSourceReleasedAfterConvert(t *testing.T) {
	m := newTestManager(t, &fakeMedia{}, &fakeEnhancer{}, nil)
	input := writeTone(t, t.TempDir(), "talk.WAV", 0.3)

	sess, err := m.Start(context.Background(), "f", input, "talk.WAV", models.MediaKindAudio)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusReady, waitFor(t, m, sess.ID).Status)

	assert.NoFileExists(t, m.dirs.Path(sess.ID, "source.wav"))
	assert.FileExists(t, input, "the upload itself is left to the store")

	require.NoError(t, os.Remove(input))
	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusComplete, waitFor(t, m, sess.ID).Status)
}

func TestManager_StartRejectsMissingStreams(t *testing.T) {
	tests := []struct {
		name  string
		probe media.ProbeResult
		file  string
		kind  models.MediaKind
		want  error
	}{
		{"audio file without audio", media.ProbeResult{FormatName: "mp3"}, "silent.mp3", models.MediaKindAudio, media.ErrNoAudio},
		{"video without audio", media.ProbeResult{FormatName: "mov", HasVideo: true}, "mute.mov", models.MediaKindVideo, media.ErrNoAudio},
		{"video without video", media.ProbeResult{FormatName: "mov", HasAudio: true}, "voice.mov", models.MediaKindVideo, media.ErrNoVideo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := tt.probe
			m := newTestManager(t, &fakeMedia{probe: &probe}, &fakeEnhancer{}, nil)
			input := writeTone(t, t.TempDir(), tt.file, 0.2)

			_, err := m.Start(context.Background(), "f", input, tt.file, tt.kind)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.file)
			assert.Equal(t, 0, m.Count())

			entries, err := os.ReadDir(m.dirs.Root())
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestManager_ProbeFailureStillConverts(t *testing.T) {
	m := newTestManager(t, &fakeMedia{probeErr: errors.New("ffprobe: not found")}, &fakeEnhancer{}, nil)
	input := writeTone(t, t.TempDir(), "a.wav", 0.2)

	sess, err := m.Start(context.Background(), "f", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)
	assert.Empty(t, sess.Container)
	assert.Equal(t, models.SessionStatusReady, waitFor(t, m, sess.ID).Status)
}

func TestManager_ConvertFailure(t *testing.T) {
	hist := &fakeHistory{}
	fm := &fakeMedia{convertErr: errors.New("invalid data found when processing input")}
	m := newTestManager(t, fm, &fakeEnhancer{}, hist)
	input := writeTone(t, t.TempDir(), "broken.mp3", 0.2)

	sess, err := m.Start(context.Background(), "file-3", input, "broken.mp3", models.MediaKindAudio)
	require.NoError(t, err)

	failed := waitFor(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusError, failed.Status)
	assert.Contains(t, failed.Error, "converting upload")
	assert.Contains(t, failed.Error, "invalid data")

	_, err = m.Clean(sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = m.OriginalPath(sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	entries := hist.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.SessionStatusError, entries[0].Status)
}

func TestManager_EnhanceFailureThenRetry(t *testing.T) {
	enh := &fakeEnhancer{err: errors.New("model missing")}
	m := newTestManager(t, &fakeMedia{}, enh, nil)
	input := writeTone(t, t.TempDir(), "a.wav", 0.3)

	sess, err := m.Start(context.Background(), "f", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)
	waitFor(t, m, sess.ID)

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	failed := waitFor(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusError, failed.Status)
	assert.Contains(t, failed.Error, "enhancing audio: model missing")

	_, _, _, err = m.Result(sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	enh.mu.Lock()
	enh.err = nil
	enh.mu.Unlock()

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	done := waitFor(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusComplete, done.Status)
	assert.Empty(t, done.Error)
}

func TestManager_RemuxFailure(t *testing.T) {
	fm := &fakeMedia{remuxErr: errors.New("could not find tag for codec")}
	m := newTestManager(t, fm, &fakeEnhancer{}, nil)
	input := writeTone(t, t.TempDir(), "v.mov", 0.3)

	sess, err := m.Start(context.Background(), "f", input, "v.mov", models.MediaKindVideo)
	require.NoError(t, err)
	waitFor(t, m, sess.ID)

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	failed := waitFor(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusError, failed.Status)
	assert.Contains(t, failed.Error, "remuxing video")
}

func TestManager_PanicRecovered(t *testing.T) {
	m := newTestManager(t, &fakeMedia{}, &fakeEnhancer{panics: true}, nil)
	input := writeTone(t, t.TempDir(), "a.wav", 0.2)

	sess, err := m.Start(context.Background(), "f", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)
	waitFor(t, m, sess.ID)

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	failed := waitFor(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusError, failed.Status)
	assert.Contains(t, failed.Error, "panicked: model exploded")
}

func TestManager_BusyAndDeleteCancels(t *testing.T) {
	enh := &fakeEnhancer{block: true, started: make(chan struct{}, 1)}
	m := newTestManager(t, &fakeMedia{}, enh, nil)
	input := writeTone(t, t.TempDir(), "a.wav", 0.2)

	sess, err := m.Start(context.Background(), "f", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)
	waitFor(t, m, sess.ID)

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	<-enh.started

	_, err = m.Clean(sess.ID)
	assert.ErrorIs(t, err, ErrBusy)

	events, unsubscribe, err := m.Subscribe(sess.ID)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, m.Delete(sess.ID))
	_, ok := m.Get(sess.ID)
	assert.False(t, ok)
	assert.NoDirExists(t, filepath.Join(m.dirs.Root(), workDirPrefix+sess.ID))

	// drained events end with a closed channel
	for range events {
	}

	assert.ErrorIs(t, m.Delete(sess.ID), ErrNotFound)
	_, err = m.Clean(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_JobTimeout(t *testing.T) {
	enh := &fakeEnhancer{block: true}
	m := newTestManager(t, &fakeMedia{}, enh, nil, func(o *Options) {
		o.JobTimeout = 100 * time.Millisecond
	})
	input := writeTone(t, t.TempDir(), "a.wav", 0.2)

	sess, err := m.Start(context.Background(), "f", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)
	waitFor(t, m, sess.ID)

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)
	failed := waitFor(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusError, failed.Status)
	assert.Contains(t, failed.Error, "timed out")
}

func TestManager_MaxDuration(t *testing.T) {
	m := newTestManager(t, &fakeMedia{}, &fakeEnhancer{}, nil, func(o *Options) {
		o.MaxDuration = 500 * time.Millisecond
	})
	input := writeTone(t, t.TempDir(), "long.wav", 1)

	sess, err := m.Start(context.Background(), "f", input, "long.wav", models.MediaKindAudio)
	require.NoError(t, err)
	failed := waitFor(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusError, failed.Status)
	assert.Contains(t, failed.Error, "limit")
}

func TestManager_MaxSessions(t *testing.T) {
	fm := &fakeMedia{gate: make(chan struct{})}
	m := newTestManager(t, fm, &fakeEnhancer{}, nil, func(o *Options) {
		o.MaxSessions = 1
	})
	input := writeTone(t, t.TempDir(), "a.wav", 0.2)

	first, err := m.Start(context.Background(), "f1", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)

	// first session is still converting, so it cannot be evicted
	_, err = m.Start(context.Background(), "f2", input, "a.wav", models.MediaKindAudio)
	assert.ErrorIs(t, err, ErrTooManySessions)

	close(fm.gate)
	waitFor(t, m, first.ID)

	second, err := m.Start(context.Background(), "f2", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)
	_, ok := m.Get(first.ID)
	assert.False(t, ok, "idle session should be evicted")
	waitFor(t, m, second.ID)
	assert.Equal(t, 1, m.Count())
}

func TestManager_StartMissingInput(t *testing.T) {
	m := newTestManager(t, &fakeMedia{}, &fakeEnhancer{}, nil)
	_, err := m.Start(context.Background(), "f", filepath.Join(t.TempDir(), "nope.wav"), "nope.wav", models.MediaKindAudio)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, 0, m.Count())
}

func TestManager_CleanupOldSessions(t *testing.T) {
	m := newTestManager(t, &fakeMedia{}, &fakeEnhancer{}, nil)
	input := writeTone(t, t.TempDir(), "a.wav", 0.2)

	sess, err := m.Start(context.Background(), "f", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)
	waitFor(t, m, sess.ID)

	assert.True(t, m.Touch(sess.ID))
	assert.Equal(t, 0, m.CleanupOldSessions(time.Hour))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, m.CleanupOldSessions(time.Millisecond))
	_, ok := m.Get(sess.ID)
	assert.False(t, ok)
	assert.False(t, m.Touch(sess.ID))
}

func TestManager_SubscribeSequence(t *testing.T) {
	m := newTestManager(t, &fakeMedia{}, &fakeEnhancer{}, nil)
	input := writeTone(t, t.TempDir(), "a.wav", 0.3)

	sess, err := m.Start(context.Background(), "f", input, "a.wav", models.MediaKindAudio)
	require.NoError(t, err)
	waitFor(t, m, sess.ID)

	events, unsubscribe, err := m.Subscribe(sess.ID)
	require.NoError(t, err)
	defer unsubscribe()

	first := <-events
	assert.Equal(t, models.SessionStatusReady, first.Status)

	_, err = m.Clean(sess.ID)
	require.NoError(t, err)

	var last models.ProgressEvent
	timeout := time.After(10 * time.Second)
	for last.Status != models.SessionStatusComplete {
		select {
		case ev := <-events:
			assert.GreaterOrEqual(t, ev.Progress, 0.0)
			last = ev
		case <-timeout:
			t.Fatal("no completion event")
		}
	}
	assert.Equal(t, 100.0, last.Progress)
	assert.Equal(t, sess.ID, last.SessionID)

	_, _, err = m.Subscribe("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkDirs_Adopt(t *testing.T) {
	root := t.TempDir()
	w, err := NewWorkDirs(filepath.Join(root, "work"), zap.NewNop())
	require.NoError(t, err)
	_, err = w.Create("s1")
	require.NoError(t, err)

	src := filepath.Join(root, "upload.mov")
	require.NoError(t, os.WriteFile(src, []byte("movie bytes"), 0644))

	dst, err := w.Adopt("s1", src, sourceName("Clip.MOV"))
	require.NoError(t, err)
	assert.Equal(t, w.Path("s1", "source.mov"), dst)

	require.NoError(t, os.Remove(src))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "movie bytes", string(data))

	_, err = w.Adopt("s1", filepath.Join(root, "missing.mov"), "other.mov")
	assert.Error(t, err)
}

func TestWorkDirs_PurgeStale(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, workDirPrefix+"old"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "unrelated"), 0755))

	w, err := NewWorkDirs(root, zap.NewNop())
	require.NoError(t, err)
	_, err = w.Create("live")
	require.NoError(t, err)

	assert.Equal(t, 1, w.PurgeStale())
	assert.NoDirExists(t, filepath.Join(root, workDirPrefix+"old"))
	assert.DirExists(t, filepath.Join(root, workDirPrefix+"live"))
	assert.DirExists(t, filepath.Join(root, "unrelated"))

	require.NoError(t, w.Remove("live"))
	assert.NoDirExists(t, filepath.Join(root, workDirPrefix+"live"))
}
