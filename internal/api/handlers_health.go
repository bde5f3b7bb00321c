// handlers_health.go - Health check handlers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 3 * time.Second

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	ffmpeg   Checker
	sessions SessionManager
	formats  FormatPolicy
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, ffmpeg Checker, sessions SessionManager, formats FormatPolicy) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		ffmpeg:   ffmpeg,
		sessions: sessions,
		formats:  formats,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}

	if h.ffmpeg != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
		defer cancel()
		if err := h.ffmpeg.Check(ctx); err != nil {
			resp["status"] = "degraded"
			resp["ffmpeg"] = false
			resp["ffmpegError"] = err.Error()
		} else {
			resp["ffmpeg"] = true
		}
	}
	if h.sessions != nil {
		resp["enhancer"] = h.sessions.Enhancer()
		resp["sessions"] = h.sessions.Count()
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleGetFormats returns the upload extensions the UI should offer
func (h *HealthHandlerImpl) HandleGetFormats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"extensions": h.formats.Extensions(),
		"accept":     h.formats.Accept(),
	})
}
