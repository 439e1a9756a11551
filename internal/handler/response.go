// Package handler provides the HTTP request handlers for the scheduler API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/files"
	"github.com/ad-tracker/upload-scheduler-go/internal/mode"
	"github.com/ad-tracker/upload-scheduler-go/internal/remote"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
	"github.com/ad-tracker/upload-scheduler-go/internal/store"
	"github.com/ad-tracker/upload-scheduler-go/internal/validation"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse represents a standard error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

// handleError maps service errors onto HTTP statuses.
func handleError(c *gin.Context, err error) {
	var (
		validationErr *validation.ValidationError
		httpErr       *remote.HTTPError
		netErr        *remote.NetworkError
		initErr       *store.StoreInitError
	)

	switch {
	case errors.As(err, &validationErr):
		logger.Log.Warn("Validation error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Status:    http.StatusBadRequest,
			Error:     http.StatusText(http.StatusBadRequest),
			Message:   validationErr.Message,
			Field:     validationErr.Field,
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	case errors.Is(err, service.ErrInvalidImportFormat),
		errors.Is(err, files.ErrInvalidPath),
		errors.Is(err, files.ErrUnknownArea):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &httpErr) && !httpErr.ServerError():
		respondError(c, httpErr.StatusCode, httpErr.Body)
	case errors.Is(err, db.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, db.ErrConstraintViolation):
		respondError(c, http.StatusConflict, err.Error())
	case errors.As(err, &httpErr), errors.As(err, &netErr):
		logger.Log.Error("Remote API failure",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, store.ErrNotInitialized),
		errors.Is(err, mode.ErrNoOfflineHandler),
		errors.As(err, &initErr):
		logger.Log.Error("Local store unavailable",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Log.Error("Unexpected error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// parseID reads a positive integer path parameter.
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// bindJSON decodes the body into dst and reports a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Log.Warn("Invalid request payload",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}
