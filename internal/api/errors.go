// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Crazyka51/AudioCleaner/internal/media"
	"github.com/Crazyka51/AudioCleaner/internal/session"
	"github.com/Crazyka51/AudioCleaner/internal/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewNotReadyError creates a 409 error for results that do not exist yet
func NewNotReadyError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "NOT_READY",
		Message: fmt.Sprintf("%s not ready: %s", resource, id),
	}
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// NewUnsupportedMediaError creates a 415 error for rejected upload formats
func NewUnsupportedMediaError(cause error) *APIError {
	err := &APIError{
		Status:  http.StatusUnsupportedMediaType,
		Code:    "UNSUPPORTED_MEDIA",
		Message: "unsupported file format",
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewUnprocessableMediaError creates a 422 error for media that decodes but
// lacks a stream the pipeline needs
func NewUnprocessableMediaError(code string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    code,
		Message: "file cannot be cleaned",
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// fromDomainError maps sentinel errors of the lower layers onto API errors.
func fromDomainError(err error, resource, id string) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return NewNotFoundError(resource, id)
	case errors.Is(err, session.ErrNotReady):
		return NewNotReadyError(resource, id)
	case errors.Is(err, session.ErrBusy):
		return NewConflictError(fmt.Sprintf("%s is busy: %s", resource, id))
	case errors.Is(err, session.ErrTooManySessions):
		return NewServiceUnavailableError("too many active sessions, try again shortly")
	case errors.Is(err, media.ErrUnsupported):
		return NewUnsupportedMediaError(err)
	case errors.Is(err, media.ErrNoAudio):
		return NewUnprocessableMediaError("NO_AUDIO_STREAM", err)
	case errors.Is(err, media.ErrNoVideo):
		return NewUnprocessableMediaError("NO_VIDEO_STREAM", err)
	default:
		return NewInternalError(fmt.Sprintf("%s operation failed", resource), err)
	}
}

// NewErrorHandler returns an echo error handler that renders APIError JSON.
// Details of server errors are only exposed when exposeDetails is set.
func NewErrorHandler(log *zap.Logger, exposeDetails bool) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError

		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
		default:
			apiErr = &APIError{
				Status:  http.StatusInternalServerError,
				Code:    "UNKNOWN_ERROR",
				Message: "An unexpected error occurred",
			}
			if exposeDetails {
				apiErr.Details = err.Error()
			}
		}

		if apiErr.Status >= http.StatusInternalServerError && !exposeDetails && apiErr.Details != "" {
			hidden := *apiErr
			hidden.Details = ""
			apiErr = &hidden
		}

		if apiErr.Status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", apiErr.Status),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			c.NoContent(apiErr.Status)
			return
		}
		c.JSON(apiErr.Status, apiErr)
	}
}
