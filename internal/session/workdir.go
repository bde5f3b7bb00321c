package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Crazyka51/AudioCleaner/internal/logger"
)

// Files inside a session work directory.
const (
	originalWAV    = "original.wav"
	enhancedRawWAV = "enhanced_raw.wav"
	cleanedWAV     = "cleaned.wav"
	spectrogramPNG = "spectrogram.png"
	sourcePrefix   = "source"

	workDirPrefix = "session_"
)

// sourceName is the name of the session's own copy of the upload.
func sourceName(fileName string) string {
	return sourcePrefix + strings.ToLower(filepath.Ext(fileName))
}

// WorkDirs owns the per-session scratch directories under one root. Nothing
// is ever written into the process working directory.
type WorkDirs struct {
	root string
	log  *zap.Logger
	mu   sync.Mutex
	live map[string]string
}

// NewWorkDirs creates root if needed.
func NewWorkDirs(root string, log *zap.Logger) (*WorkDirs, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &WorkDirs{root: root, log: log, live: make(map[string]string)}, nil
}

// Root returns the parent directory.
func (w *WorkDirs) Root() string { return w.root }

// Create makes the directory for a session.
func (w *WorkDirs) Create(sessionID string) (string, error) {
	dir := filepath.Join(w.root, workDirPrefix+sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	w.mu.Lock()
	w.live[sessionID] = dir
	w.mu.Unlock()
	return dir, nil
}

// Path joins name onto the session directory.
func (w *WorkDirs) Path(sessionID, name string) string {
	return filepath.Join(w.root, workDirPrefix+sessionID, name)
}

// Adopt hard-links src into the session directory under name, copying it
// when a link is not possible (different filesystem, no link support).
func (w *WorkDirs) Adopt(sessionID, src, name string) (string, error) {
	dst := w.Path(sessionID, name)
	if err := os.Link(src, dst); err == nil {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("creating session copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copying upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("copying upload: %w", err)
	}
	w.log.Debug("upload copied into work directory", zap.String("session", logger.ShortID(sessionID)))
	return dst, nil
}

// Remove deletes the session directory and everything in it.
func (w *WorkDirs) Remove(sessionID string) error {
	w.mu.Lock()
	delete(w.live, sessionID)
	w.mu.Unlock()

	dir := filepath.Join(w.root, workDirPrefix+sessionID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove work directory: %w", err)
	}
	w.log.Debug("work directory removed", zap.String("session", logger.ShortID(sessionID)))
	return nil
}

// PurgeStale removes session directories not created by this process, such
// as those left behind by a crash. It returns how many were removed.
func (w *WorkDirs) PurgeStale() int {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.log.Warn("failed to scan temp directory", zap.String("root", w.root), zap.Error(err))
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, workDirPrefix) {
			continue
		}
		if _, ok := w.live[strings.TrimPrefix(name, workDirPrefix)]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.root, name)); err != nil {
			w.log.Warn("failed to remove stale work directory", zap.String("dir", name), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		w.log.Info("purged stale work directories", zap.Int("count", removed))
	}
	return removed
}
