// handlers_history.go - History ledger handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/Crazyka51/AudioCleaner/internal/models"
	"github.com/labstack/echo/v4"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	history HistoryReader
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history HistoryReader) HistoryHandler {
	return &HistoryHandlerImpl{history: history}
}

// HandleGetHistory returns the most recent finished sessions
func (h *HistoryHandlerImpl) HandleGetHistory(c echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to read history", err)
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// HandleGetHistoryStats returns aggregate numbers over the ledger
func (h *HistoryHandlerImpl) HandleGetHistoryStats(c echo.Context) error {
	stats, err := h.history.Stats(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to read history stats", err)
	}
	return c.JSON(http.StatusOK, stats)
}
