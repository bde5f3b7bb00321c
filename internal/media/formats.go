package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Crazyka51/AudioCleaner/internal/models"
)

// ErrUnsupported is returned for uploads whose extension is not accepted.
var ErrUnsupported = errors.New("unsupported media format")

// DefaultAccepted lists the upload extensions the UI offers.
var DefaultAccepted = []string{".mp3", ".m4a", ".wav", ".flac", ".ogg", ".mov"}

// DefaultVideo lists extensions treated as video containers.
var DefaultVideo = []string{".mov"}

// Formats decides which uploads are accepted and which carry video.
type Formats struct {
	accepted map[string]struct{}
	video    map[string]struct{}
	order    []string
}

// NewFormats builds a Formats from extension lists. Empty lists fall back to
// the defaults.
func NewFormats(accepted, video []string) *Formats {
	if len(accepted) == 0 {
		accepted = DefaultAccepted
	}
	if video == nil {
		video = DefaultVideo
	}
	f := &Formats{
		accepted: make(map[string]struct{}, len(accepted)),
		video:    make(map[string]struct{}, len(video)),
	}
	for _, ext := range accepted {
		ext = normalizeExt(ext)
		if _, dup := f.accepted[ext]; !dup {
			f.accepted[ext] = struct{}{}
			f.order = append(f.order, ext)
		}
	}
	for _, ext := range video {
		f.video[normalizeExt(ext)] = struct{}{}
	}
	return f
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IsAccepted reports whether name has an accepted extension.
func (f *Formats) IsAccepted(name string) bool {
	_, ok := f.accepted[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Check returns ErrUnsupported for names IsAccepted rejects.
func (f *Formats) Check(name string) error {
	if f.IsAccepted(name) {
		return nil
	}
	ext := filepath.Ext(name)
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupported, ext, strings.Join(f.order, ", "))
}

// KindOf classifies name by extension.
func (f *Formats) KindOf(name string) models.MediaKind {
	if _, ok := f.video[strings.ToLower(filepath.Ext(name))]; ok {
		return models.MediaKindVideo
	}
	return models.MediaKindAudio
}

// Extensions returns the accepted extensions in configuration order.
func (f *Formats) Extensions() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Accept renders the list for an HTML file input accept attribute.
func (f *Formats) Accept() string {
	return strings.Join(f.order, ",")
}
