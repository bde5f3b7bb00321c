// handlers_upload.go - File upload operation handlers
package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/Crazyka51/AudioCleaner/internal/logger"
	"github.com/Crazyka51/AudioCleaner/internal/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const recentFilesLimit = 20

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store       storage.Store
	jobs        UploadJobs
	formats     FormatPolicy
	allowDelete bool
	log         *zap.Logger
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, jobs UploadJobs, formats FormatPolicy, allowDelete bool, log *zap.Logger) UploadHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadHandlerImpl{
		store:       store,
		jobs:        jobs,
		formats:     formats,
		allowDelete: allowDelete,
		log:         log,
	}
}

// HandleUploadFile accepts a multipart "file" field and saves it to storage
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	if err := h.formats.Check(file.Filename); err != nil {
		return NewUnsupportedMediaError(err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	h.log.Info("file uploaded",
		zap.String("file", logger.ShortID(info.ID)),
		zap.String("name", info.Name),
		zap.Int64("size", info.Size))
	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single base64 chunk of a chunked upload
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		if errors.Is(err, storage.ErrInvalidUploadID) {
			return NewValidationError("uploadId")
		}
		return NewInternalError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload completes a chunked upload and starts async processing
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	// Reject early so the client does not wait for a job that must fail.
	if err := h.formats.Check(req.Name); err != nil {
		return NewUnsupportedMediaError(err)
	}

	job := h.jobs.StartJob(
		req.UploadID,
		req.Name,
		req.TotalChunks,
		req.OriginalSize,
		req.CompressedSize,
		req.Encoding,
	)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleUploadJobStatus returns the state of an assembly job
func (h *UploadHandlerImpl) HandleUploadJobStatus(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleGetRecentFiles returns recently uploaded media files
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(recentFilesLimit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return fromDomainError(err, "file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes an uploaded file
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if !h.allowDelete {
		return NewForbiddenError("file deletion is disabled")
	}

	if err := h.store.Delete(id); err != nil {
		return fromDomainError(err, "file", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// Request/Response types

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID       string `json:"uploadId"`
	Name           string `json:"name"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	Encoding       string `json:"encoding"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	switch r.Encoding {
	case "", "none", "gzip", "binary-gzip":
	default:
		return NewValidationError("encoding")
	}
	return nil
}
