// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/Crazyka51/AudioCleaner/internal/models"
	"github.com/Crazyka51/AudioCleaner/internal/upload"
	"github.com/labstack/echo/v4"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadJobStatus(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// SessionHandler handles cleaning session operations
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleCleanSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionProgressStream(c echo.Context) error
	HandleOriginalAudio(c echo.Context) error
	HandleCleanedAudio(c echo.Context) error
	HandleDownload(c echo.Context) error
	HandleSpectrogramImage(c echo.Context) error
	HandleSpectrogramData(c echo.Context) error
}

// HistoryHandler serves the ledger of finished sessions
type HistoryHandler interface {
	HandleGetHistory(c echo.Context) error
	HandleGetHistoryStats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
	HandleGetFormats(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Start(ctx context.Context, fileID, inputPath, fileName string, kind models.MediaKind) (*models.CleanSession, error)
	Clean(id string) (*models.CleanSession, error)
	Get(id string) (*models.CleanSession, bool)
	Touch(id string) bool
	Delete(id string) error
	Subscribe(id string) (<-chan models.ProgressEvent, func(), error)
	OriginalPath(id string) (string, error)
	CleanedPath(id string) (string, error)
	Result(id string) (path, name, mime string, err error)
	SpectrogramPath(id string) (string, error)
	SpectrogramData(id string) (*models.SpectrogramData, error)
	Enhancer() string
	Count() int
}

// UploadJobs runs chunked-upload assembly in the background
type UploadJobs interface {
	StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) *upload.Job
	GetJob(id string) (*upload.Job, bool)
}

// HistoryReader reads the history ledger
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	Stats(ctx context.Context) (models.HistoryStats, error)
}

// Checker reports whether an external tool can be invoked
type Checker interface {
	Check(ctx context.Context) error
}

// FormatPolicy decides which uploads are accepted
type FormatPolicy interface {
	Check(name string) error
	KindOf(name string) models.MediaKind
	Extensions() []string
	Accept() string
}
