// handlers_session.go - Cleaning session handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Crazyka51/AudioCleaner/internal/logger"
	"github.com/Crazyka51/AudioCleaner/internal/models"
	"github.com/Crazyka51/AudioCleaner/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	mimeWAV     = "audio/wav"
	mimePNG     = "image/png"
	mimeMsgpack = "application/msgpack"
)

// SSE stream limits
var (
	sseHeartbeat     = 15 * time.Second
	sseStreamTimeout = 30 * time.Minute
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	store    storage.Store
	sessions SessionManager
	formats  FormatPolicy
	log      *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store storage.Store, sessions SessionManager, formats FormatPolicy, log *zap.Logger) SessionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionHandlerImpl{
		store:    store,
		sessions: sessions,
		formats:  formats,
		log:      log,
	}
}

type createSessionRequest struct {
	FileID string `json:"fileId"`
}

func (r *createSessionRequest) validate() error {
	if r.FileID == "" {
		return NewValidationError("fileId")
	}
	return nil
}

// HandleCreateSession converts an uploaded file to WAV in a new session
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return fromDomainError(err, "file", req.FileID)
	}
	if err := h.formats.Check(info.Name); err != nil {
		return NewUnsupportedMediaError(err)
	}
	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return fromDomainError(err, "file", req.FileID)
	}

	sess, err := h.sessions.Start(c.Request().Context(), info.ID, path, info.Name, h.formats.KindOf(info.Name))
	if err != nil {
		return fromDomainError(err, "session", req.FileID)
	}

	h.log.Info("session started",
		zap.String("session", logger.ShortID(sess.ID)),
		zap.String("file", logger.ShortID(info.ID)),
		zap.String("kind", string(sess.Kind)))
	return c.JSON(http.StatusCreated, sess)
}

// HandleGetSession returns the current session state
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	sess, ok := h.sessions.Get(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	h.sessions.Touch(id)
	return c.JSON(http.StatusOK, sess)
}

// HandleCleanSession runs the enhancement model over the session's WAV
func (h *SessionHandlerImpl) HandleCleanSession(c echo.Context) error {
	id := c.Param("id")
	sess, err := h.sessions.Clean(id)
	if err != nil {
		return fromDomainError(err, "session", id)
	}
	return c.JSON(http.StatusAccepted, sess)
}

// HandleSessionKeepAlive keeps an idle session from being cleaned up
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.Touch(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleDeleteSession cancels any run and removes the session's files
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessions.Delete(id); err != nil {
		return fromDomainError(err, "session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionProgressStream streams progress via SSE until the running
// step finishes.
func (h *SessionHandlerImpl) HandleSessionProgressStream(c echo.Context) error {
	id := c.Param("id")
	events, unsubscribe, err := h.sessions.Subscribe(id)
	if err != nil {
		return fromDomainError(err, "session", id)
	}
	defer unsubscribe()

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	timeout := time.NewTimer(sseStreamTimeout)
	defer timeout.Stop()

	first := true
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.sendSSEError(c, "session deleted")
				return nil
			}
			h.sendSSEData(c, ev)

			// A ready session streams on until the next run ends.
			if !ev.Status.Busy() && !(first && ev.Status == models.SessionStatusReady) {
				return nil
			}
			first = false

		case <-heartbeat.C:
			fmt.Fprint(c.Response(), ": ping\n\n")
			c.Response().Flush()

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func (h *SessionHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.log.Warn("failed to encode progress event", zap.Error(err))
		return
	}
	fmt.Fprintf(c.Response(), "data: %s\n\n", payload)
	c.Response().Flush()
}

func (h *SessionHandlerImpl) sendSSEError(c echo.Context, message string) {
	payload, _ := json.Marshal(map[string]string{"error": message})
	fmt.Fprintf(c.Response(), "event: error\ndata: %s\n\n", payload)
	c.Response().Flush()
}

// HandleOriginalAudio serves the converted WAV for the preview player
func (h *SessionHandlerImpl) HandleOriginalAudio(c echo.Context) error {
	id := c.Param("id")
	path, err := h.sessions.OriginalPath(id)
	if err != nil {
		return fromDomainError(err, "original audio", id)
	}
	h.sessions.Touch(id)
	c.Response().Header().Set(echo.HeaderContentType, mimeWAV)
	return c.File(path)
}

// HandleCleanedAudio serves the enhanced WAV for the preview player
func (h *SessionHandlerImpl) HandleCleanedAudio(c echo.Context) error {
	id := c.Param("id")
	path, err := h.sessions.CleanedPath(id)
	if err != nil {
		return fromDomainError(err, "cleaned audio", id)
	}
	h.sessions.Touch(id)
	c.Response().Header().Set(echo.HeaderContentType, mimeWAV)
	return c.File(path)
}

// HandleDownload serves the cleaned audio or remuxed video as an attachment
func (h *SessionHandlerImpl) HandleDownload(c echo.Context) error {
	id := c.Param("id")
	path, name, mime, err := h.sessions.Result(id)
	if err != nil {
		return fromDomainError(err, "result", id)
	}
	h.sessions.Touch(id)
	c.Response().Header().Set(echo.HeaderContentType, mime)
	return c.Attachment(path, name)
}

// HandleSpectrogramImage serves the original-vs-cleaned comparison PNG
func (h *SessionHandlerImpl) HandleSpectrogramImage(c echo.Context) error {
	id := c.Param("id")
	path, err := h.sessions.SpectrogramPath(id)
	if err != nil {
		return fromDomainError(err, "spectrogram", id)
	}
	c.Response().Header().Set(echo.HeaderContentType, mimePNG)
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.File(path)
}

// HandleSpectrogramData returns the mel grids as msgpack, or JSON with
// ?format=json.
func (h *SessionHandlerImpl) HandleSpectrogramData(c echo.Context) error {
	id := c.Param("id")
	data, err := h.sessions.SpectrogramData(id)
	if err != nil {
		return fromDomainError(err, "spectrogram", id)
	}

	if c.QueryParam("format") == "json" {
		return c.JSON(http.StatusOK, data)
	}

	encoded, err := msgpack.Marshal(data)
	if err != nil {
		return NewInternalError("failed to encode spectrogram", err)
	}
	return c.Blob(http.StatusOK, mimeMsgpack, encoded)
}
