// Package session runs cleaning sessions: one uploaded file converted to WAV,
// passed through the enhancer, optionally remuxed back into its video and
// compared on a spectrogram.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Crazyka51/AudioCleaner/internal/audio"
	"github.com/Crazyka51/AudioCleaner/internal/enhance"
	"github.com/Crazyka51/AudioCleaner/internal/logger"
	"github.com/Crazyka51/AudioCleaner/internal/media"
	"github.com/Crazyka51/AudioCleaner/internal/models"
	"github.com/Crazyka51/AudioCleaner/internal/spectrogram"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrNotReady        = errors.New("session not ready")
	ErrBusy            = errors.New("session is busy")
	ErrTooManySessions = errors.New("too many active sessions")
)

const (
	// DefaultMaxSessions limits concurrent sessions to bound disk and CPU use.
	DefaultMaxSessions = 4

	// DefaultJobTimeout bounds a single convert or clean run.
	DefaultJobTimeout = 20 * time.Minute

	// spectrogramDataFrames caps the time axis of the data endpoint.
	spectrogramDataFrames = 1200

	probeTimeout = 30 * time.Second

	subscriberBuffer = 16
)

// Transcoder is the part of the media driver the pipeline needs.
type Transcoder interface {
	Probe(ctx context.Context, path string) (*media.ProbeResult, error)
	ToWAV(ctx context.Context, in, out string) error
	Remux(ctx context.Context, video, audio, out string) error
}

// Recorder stores finished runs.
type Recorder interface {
	Record(ctx context.Context, e models.HistoryEntry) error
}

// Options configures a Manager.
type Options struct {
	TempDir     string
	MaxSessions int
	JobTimeout  time.Duration
	MaxDuration time.Duration // 0 means unlimited
	Spectrogram spectrogram.Options
	Render      spectrogram.RenderOptions
}

// Manager handles active cleaning sessions.
type Manager struct {
	sessions map[string]*state
	mu       sync.RWMutex
	media    Transcoder
	enhancer enhance.Enhancer
	history  Recorder
	dirs     *WorkDirs
	opts     Options
	log      *zap.Logger
	wg       sync.WaitGroup
}

// state holds a session and everything that must not leave the manager.
// sourcePath is the session's own link to the upload, so the upload store
// may delete its copy at any time.
type state struct {
	session      *models.CleanSession
	sourcePath   string
	inputSize    int64
	lastAccessed time.Time
	gen          int
	cancel       context.CancelFunc
	subscribers  map[chan models.ProgressEvent]struct{}
	spectrogram  *models.SpectrogramData
}

// NewManager creates a session manager. history may be nil.
func NewManager(transcoder Transcoder, enhancer enhance.Enhancer, history Recorder, opts Options, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}

	dirs, err := NewWorkDirs(opts.TempDir, log)
	if err != nil {
		return nil, err
	}
	dirs.PurgeStale()

	return &Manager{
		sessions: make(map[string]*state),
		media:    transcoder,
		enhancer: enhancer,
		history:  history,
		dirs:     dirs,
		opts:     opts,
		log:      log,
	}, nil
}

// Enhancer returns the name of the enhancer runs use.
func (m *Manager) Enhancer() string { return m.enhancer.Name() }

// Start registers a session for an uploaded file and converts it to WAV in
// the background. The session becomes ready once the original preview exists.
// Files without an audio stream, and video files without a video stream, are
// rejected with media.ErrNoAudio or media.ErrNoVideo.
func (m *Manager) Start(ctx context.Context, fileID, inputPath, fileName string, kind models.MediaKind) (*models.CleanSession, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}

	probe, err := m.probe(ctx, inputPath, fileName, kind)
	if err != nil {
		return nil, err
	}

	m.cleanupOldSessionsIfNeeded()
	if m.Count() >= m.opts.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.New().String()
	if _, err := m.dirs.Create(id); err != nil {
		return nil, err
	}
	source, err := m.dirs.Adopt(id, inputPath, sourceName(fileName))
	if err != nil {
		m.dirs.Remove(id)
		return nil, err
	}

	m.mu.Lock()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		m.dirs.Remove(id)
		return nil, ErrTooManySessions
	}

	sess := models.NewCleanSession(id, fileID, fileName, kind)
	sess.Status = models.SessionStatusConverting
	sess.Stage = "converting"
	if probe != nil {
		sess.Container = probe.FormatName
		sess.AudioCodec = probe.AudioCodec
	}

	runCtx, cancel := context.WithTimeout(context.Background(), m.opts.JobTimeout)
	st := &state{
		session:      sess,
		sourcePath:   source,
		inputSize:    info.Size(),
		lastAccessed: time.Now(),
		gen:          1,
		cancel:       cancel,
		subscribers:  make(map[chan models.ProgressEvent]struct{}),
	}
	m.sessions[id] = st
	snapshot := *sess
	m.mu.Unlock()

	m.log.Info("session started",
		zap.String("session", logger.ShortID(id)),
		zap.String("file", fileName),
		zap.String("kind", string(kind)),
		zap.Int64("size", info.Size()))

	m.wg.Add(1)
	go m.runConvert(runCtx, id, st.gen)

	return &snapshot, nil
}

// probe inspects the upload before a session is created. An ffprobe failure
// is only logged and left for the conversion to report.
func (m *Manager) probe(ctx context.Context, path, fileName string, kind models.MediaKind) (*media.ProbeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res, err := m.media.Probe(ctx, path)
	if err != nil {
		m.log.Warn("probe failed, converting anyway", zap.String("file", fileName), zap.Error(err))
		return nil, nil
	}
	if !res.HasAudio {
		return nil, fmt.Errorf("%s: %w", fileName, media.ErrNoAudio)
	}
	if kind == models.MediaKindVideo && !res.HasVideo {
		return nil, fmt.Errorf("%s: %w", fileName, media.ErrNoVideo)
	}
	return res, nil
}

func (m *Manager) runConvert(ctx context.Context, id string, gen int) {
	defer m.wg.Done()
	defer m.endRun(id, gen)
	defer func() {
		if r := recover(); r != nil {
			m.fail(id, fmt.Errorf("conversion panicked: %v", r))
		}
	}()

	start := time.Now()
	snap, ok := m.Get(id)
	if !ok {
		return
	}
	source, _ := m.sourcePath(id)

	m.setProgress(id, models.SessionStatusConverting, "converting", 10)

	out := m.dirs.Path(id, originalWAV)
	if err := m.media.ToWAV(ctx, source, out); err != nil {
		m.fail(id, runError(ctx, "converting upload", err))
		return
	}

	info, err := audio.ReadInfo(out)
	if err != nil {
		m.fail(id, fmt.Errorf("reading converted audio: %w", err))
		return
	}
	if m.opts.MaxDuration > 0 && info.Duration > m.opts.MaxDuration.Seconds() {
		os.Remove(out)
		m.fail(id, fmt.Errorf("recording is %.0fs long, the limit is %.0fs", info.Duration, m.opts.MaxDuration.Seconds()))
		return
	}

	// audio sessions only need the WAV from here on
	if snap.Kind != models.MediaKindVideo {
		os.Remove(source)
	}

	elapsed := time.Since(start).Milliseconds()
	m.update(id, func(s *models.CleanSession) {
		s.Status = models.SessionStatusReady
		s.Stage = ""
		s.Progress = 100
		s.SampleRate = info.SampleRate
		s.Channels = info.Channels
		s.DurationSeconds = info.Duration
		s.ConvertTimeMs = elapsed
	})

	m.log.Info("session ready",
		zap.String("session", logger.ShortID(id)),
		zap.Float64("duration_s", info.Duration),
		zap.Int64("convert_ms", elapsed))
}

// Clean runs the enhancer over a ready session. A finished or failed session
// may be cleaned again as long as its converted WAV exists.
func (m *Manager) Clean(id string) (*models.CleanSession, error) {
	m.mu.Lock()
	st, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	if st.session.Status.Busy() {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	if !fileExists(m.dirs.Path(id, originalWAV)) {
		m.mu.Unlock()
		return nil, ErrNotReady
	}
	if st.session.Kind == models.MediaKindVideo && !fileExists(st.sourcePath) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: video source is gone", ErrNotReady)
	}

	s := st.session
	s.Status = models.SessionStatusCleaning
	s.Stage = "enhancing"
	s.Progress = 0
	s.Enhancer = m.enhancer.Name()
	s.Error = ""
	s.DownloadName = ""
	s.DownloadMime = ""
	s.ResultSize = 0
	s.Levels = nil
	s.CleanTimeMs = 0
	s.CompletedAt = nil
	st.spectrogram = nil
	st.lastAccessed = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.JobTimeout)
	st.gen++
	st.cancel = cancel
	gen := st.gen
	m.broadcast(st)
	snapshot := *s
	m.mu.Unlock()

	m.log.Info("cleaning started",
		zap.String("session", logger.ShortID(id)),
		zap.String("enhancer", m.enhancer.Name()))

	m.wg.Add(1)
	go m.runClean(ctx, id, gen)

	return &snapshot, nil
}

func (m *Manager) runClean(ctx context.Context, id string, gen int) {
	defer m.wg.Done()
	defer m.endRun(id, gen)
	defer func() {
		if r := recover(); r != nil {
			m.fail(id, fmt.Errorf("cleaning panicked: %v", r))
		}
	}()

	start := time.Now()
	snap, ok := m.Get(id)
	if !ok {
		return
	}
	source, _ := m.sourcePath(id)

	orig := m.dirs.Path(id, originalWAV)
	raw := m.dirs.Path(id, enhancedRawWAV)
	cleaned := m.dirs.Path(id, cleanedWAV)
	video := m.dirs.Path(id, models.CleanedVideoName)
	png := m.dirs.Path(id, spectrogramPNG)
	for _, p := range []string{raw, cleaned, video, png} {
		os.Remove(p)
	}

	m.setProgress(id, models.SessionStatusCleaning, "enhancing", 10)
	if err := m.enhancer.Enhance(ctx, orig, raw); err != nil {
		m.fail(id, runError(ctx, "enhancing audio", err))
		return
	}

	// enhancers may emit float or multi-channel WAV; bring it back to the
	// session format so previews and the spectrogram agree
	m.setProgress(id, models.SessionStatusCleaning, "normalizing", 55)
	if err := m.media.ToWAV(ctx, raw, cleaned); err != nil {
		m.fail(id, runError(ctx, "normalizing enhanced audio", err))
		return
	}
	os.Remove(raw)

	result, name, mime := cleaned, models.CleanedAudioName, "audio/wav"
	if snap.Kind == models.MediaKindVideo {
		m.setProgress(id, models.SessionStatusRemuxing, "remuxing", 65)
		if _, err := os.Stat(source); err != nil {
			m.fail(id, fmt.Errorf("video source: %w", err))
			return
		}
		if err := m.media.Remux(ctx, source, cleaned, video); err != nil {
			m.fail(id, runError(ctx, "remuxing video", err))
			return
		}
		result, name, mime = video, models.CleanedVideoName, "video/mp4"
	}

	m.setProgress(id, models.SessionStatusRendering, "rendering spectrogram", 80)
	data, levels, err := m.renderSpectrogram(orig, cleaned, png)
	if err != nil {
		m.fail(id, fmt.Errorf("rendering spectrogram: %w", err))
		return
	}
	if err := ctx.Err(); err != nil {
		m.fail(id, runError(ctx, "cleaning", err))
		return
	}

	var size int64
	if info, err := os.Stat(result); err == nil {
		size = info.Size()
	}

	elapsed := time.Since(start).Milliseconds()
	now := time.Now()

	final, inputSize, ok := m.snapshotForFinish(id)
	if !ok {
		return
	}
	final.Status = models.SessionStatusComplete
	final.Stage = ""
	final.Progress = 100
	final.CleanTimeMs = elapsed
	final.DownloadName = name
	final.DownloadMime = mime
	final.ResultSize = size
	final.Levels = levels
	final.CompletedAt = &now

	m.log.Info("cleaning complete",
		zap.String("session", logger.ShortID(id)),
		zap.String("download", name),
		zap.Int64("size", size),
		zap.Int64("clean_ms", elapsed))

	m.finish(final, data, inputSize)
}

func (m *Manager) renderSpectrogram(origPath, cleanedPath, pngPath string) (*models.SpectrogramData, *models.AudioLevels, error) {
	orig, err := audio.ReadWAV(origPath)
	if err != nil {
		return nil, nil, err
	}
	cleaned, err := audio.ReadWAV(cleanedPath)
	if err != nil {
		return nil, nil, err
	}

	mo := spectrogram.Compute(orig.Samples, orig.SampleRate, m.opts.Spectrogram)
	mc := spectrogram.Compute(cleaned.Samples, cleaned.SampleRate, m.opts.Spectrogram)
	img := spectrogram.RenderComparison(mo, mc, m.opts.Render)

	tmp := pngPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, nil, err
	}
	if err := spectrogram.EncodePNG(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, nil, err
	}
	if err := os.Rename(tmp, pngPath); err != nil {
		os.Remove(tmp)
		return nil, nil, err
	}

	levels := &models.AudioLevels{
		OriginalPeak: orig.Peak(),
		OriginalRMS:  orig.RMS(),
		CleanedPeak:  cleaned.Peak(),
		CleanedRMS:   cleaned.RMS(),
	}

	return &models.SpectrogramData{
		SampleRate: orig.SampleRate,
		HopLength:  mo.HopLength,
		MelBands:   mo.Bands,
		TopDB:      mo.TopDB,
		Original:   mo.Downsample(spectrogramDataFrames),
		Cleaned:    mc.Downsample(spectrogramDataFrames),
	}, levels, nil
}

// runError adds the step name and turns deadline errors into a readable
// timeout message.
func runError(ctx context.Context, step string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: timed out: %w", step, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: cancelled: %w", step, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}

func (m *Manager) fail(id string, err error) {
	now := time.Now()

	final, inputSize, ok := m.snapshotForFinish(id)
	if !ok {
		return
	}
	stage := final.Stage
	final.Status = models.SessionStatusError
	final.Stage = ""
	final.Error = err.Error()
	final.CompletedAt = &now

	m.log.Error("session failed",
		zap.String("session", logger.ShortID(id)),
		zap.String("stage", stage),
		zap.Error(err))

	m.finish(final, nil, inputSize)
}

func (m *Manager) snapshotForFinish(id string) (*models.CleanSession, int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, 0, false
	}
	final := *st.session
	return &final, st.inputSize, true
}

// finish records a terminal state and only then publishes it, so anyone who
// observes the session as done also sees its history row.
func (m *Manager) finish(final *models.CleanSession, data *models.SpectrogramData, inputSize int64) {
	m.record(final, inputSize)

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[final.ID]
	if !ok {
		return
	}
	*st.session = *final
	st.spectrogram = data
	m.broadcast(st)
}

func (m *Manager) record(s *models.CleanSession, inputSize int64) {
	if m.history == nil {
		return
	}
	finished := time.Now()
	if s.CompletedAt != nil {
		finished = *s.CompletedAt
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.history.Record(ctx, models.HistoryEntry{
		SessionID:       s.ID,
		FileName:        s.FileName,
		Kind:            s.Kind,
		Enhancer:        s.Enhancer,
		Status:          s.Status,
		DurationSeconds: s.DurationSeconds,
		InputSize:       inputSize,
		ResultSize:      s.ResultSize,
		ConvertTimeMs:   s.ConvertTimeMs,
		CleanTimeMs:     s.CleanTimeMs,
		Error:           s.Error,
		FinishedAt:      finished,
	})
	if err != nil {
		m.log.Warn("failed to record history", zap.String("session", logger.ShortID(s.ID)), zap.Error(err))
	}
}

// endRun releases the context of run gen unless a newer run replaced it.
func (m *Manager) endRun(id string, gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok || st.gen != gen || st.cancel == nil {
		return
	}
	st.cancel()
	st.cancel = nil
}

func (m *Manager) sourcePath(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return "", false
	}
	return st.sourcePath, true
}

func (m *Manager) setProgress(id string, status models.SessionStatus, stage string, progress float64) {
	m.update(id, func(s *models.CleanSession) {
		s.Status = status
		s.Stage = stage
		s.Progress = progress
	})
}

func (m *Manager) update(id string, fn func(*models.CleanSession)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return
	}
	fn(st.session)
	m.broadcast(st)
}

// broadcast pushes the current state to subscribers. Must hold m.mu.
// A full subscriber loses its oldest event rather than blocking the run.
func (m *Manager) broadcast(st *state) {
	ev := eventOf(st.session)
	for ch := range st.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func eventOf(s *models.CleanSession) models.ProgressEvent {
	return models.ProgressEvent{
		SessionID: s.ID,
		Status:    s.Status,
		Stage:     s.Stage,
		Progress:  s.Progress,
		Error:     s.Error,
	}
}

// Subscribe returns a channel of progress events, starting with the current
// state. The channel is closed by the returned function or when the session
// is deleted.
func (m *Manager) Subscribe(id string) (<-chan models.ProgressEvent, func(), error) {
	ch := make(chan models.ProgressEvent, subscriberBuffer)

	m.mu.Lock()
	st, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, nil, ErrNotFound
	}
	st.subscribers[ch] = struct{}{}
	ch <- eventOf(st.session)
	m.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if st, ok := m.sessions[id]; ok {
				if _, ok := st.subscribers[ch]; ok {
					delete(st.subscribers, ch)
					close(ch)
				}
			}
		})
	}
	return ch, unsubscribe, nil
}

// Wait blocks until the session is no longer busy and returns its state.
func (m *Manager) Wait(ctx context.Context, id string) (*models.CleanSession, error) {
	events, unsubscribe, err := m.Subscribe(id)
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil, ErrNotFound
			}
			if !ev.Status.Busy() {
				s, ok := m.Get(id)
				if !ok {
					return nil, ErrNotFound
				}
				return s, nil
			}
		}
	}
}

// Get returns a snapshot of a session.
func (m *Manager) Get(id string) (*models.CleanSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *st.session
	return &snapshot, true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Touch marks a session as in use so cleanup skips it.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return false
	}
	st.lastAccessed = time.Now()
	return true
}

// Delete cancels any run, closes subscribers and removes the work directory.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	st, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	if st.cancel != nil {
		st.cancel()
	}
	for ch := range st.subscribers {
		close(ch)
	}
	st.subscribers = nil
	m.mu.Unlock()

	m.log.Info("session deleted", zap.String("session", logger.ShortID(id)))
	return m.dirs.Remove(id)
}

// cleanupOldSessionsIfNeeded evicts the least recently used idle sessions
// when at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.RLock()
	if len(m.sessions) < m.opts.MaxSessions {
		m.mu.RUnlock()
		return
	}
	type candidate struct {
		id   string
		seen time.Time
	}
	var idle []candidate
	for id, st := range m.sessions {
		if !st.session.Status.Busy() {
			idle = append(idle, candidate{id, st.lastAccessed})
		}
	}
	toFree := len(m.sessions) - m.opts.MaxSessions + 1
	m.mu.RUnlock()

	sort.Slice(idle, func(i, j int) bool { return idle[i].seen.Before(idle[j].seen) })
	for i := 0; i < len(idle) && i < toFree; i++ {
		if err := m.Delete(idle[i].id); err == nil {
			m.log.Info("evicted idle session to make room", zap.String("session", logger.ShortID(idle[i].id)))
		}
	}
}

// CleanupOldSessions removes idle sessions not accessed within maxAge and
// returns how many were removed.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.RLock()
	var expired []string
	for id, st := range m.sessions {
		if st.session.Status.Busy() {
			continue
		}
		if st.lastAccessed.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if err := m.Delete(id); err == nil {
			removed++
		}
	}
	if removed > 0 {
		m.log.Info("cleaned up aged sessions", zap.Int("count", removed))
	}
	return removed
}

// Close cancels every run, waits for the goroutines and removes all work
// directories.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Delete(id)
	}
	m.wg.Wait()
	m.dirs.PurgeStale()
}

// OriginalPath returns the converted WAV of the upload.
func (m *Manager) OriginalPath(id string) (string, error) {
	m.mu.RLock()
	st, ok := m.sessions[id]
	var status models.SessionStatus
	if ok {
		status = st.session.Status
	}
	m.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if status == models.SessionStatusPending || status == models.SessionStatusConverting {
		return "", ErrNotReady
	}
	p := m.dirs.Path(id, originalWAV)
	if !fileExists(p) {
		return "", ErrNotReady
	}
	return p, nil
}

func (m *Manager) completed(id string) (*state, error) {
	st, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if st.session.Status != models.SessionStatusComplete {
		return nil, ErrNotReady
	}
	return st, nil
}

// CleanedPath returns the enhanced WAV of a complete session.
func (m *Manager) CleanedPath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.completed(id); err != nil {
		return "", err
	}
	return m.dirs.Path(id, cleanedWAV), nil
}

// Result returns the downloadable file with its attachment name and MIME type.
func (m *Manager) Result(id string) (path, name, mime string, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.completed(id)
	if err != nil {
		return "", "", "", err
	}
	s := st.session
	if s.Kind == models.MediaKindVideo {
		return m.dirs.Path(id, models.CleanedVideoName), s.DownloadName, s.DownloadMime, nil
	}
	return m.dirs.Path(id, cleanedWAV), s.DownloadName, s.DownloadMime, nil
}

// SpectrogramPath returns the comparison PNG of a complete session.
func (m *Manager) SpectrogramPath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.completed(id); err != nil {
		return "", err
	}
	return m.dirs.Path(id, spectrogramPNG), nil
}

// SpectrogramData returns the downsampled mel grids of a complete session.
func (m *Manager) SpectrogramData(id string) (*models.SpectrogramData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.completed(id)
	if err != nil {
		return nil, err
	}
	if st.spectrogram == nil {
		return nil, ErrNotReady
	}
	return st.spectrogram, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
