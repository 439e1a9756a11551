package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/mode"
	"github.com/gin-gonic/gin"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store      Pinger
	controller *mode.Controller
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(store Pinger, controller *mode.Controller) *HealthHandler {
	return &HealthHandler{
		store:      store,
		controller: controller,
	}
}

// LivenessProbe checks if the application is running.
func (h *HealthHandler) LivenessProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now(),
	})
}

// ReadinessProbe checks if the local store is open and answering.
func (h *HealthHandler) ReadinessProbe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	currentMode := mode.Detecting
	if h.controller != nil {
		currentMode = h.controller.Mode()
	}

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"store":  "unhealthy",
			"mode":   currentMode,
			"error":  err.Error(),
			"time":   time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"store":  "healthy",
		"mode":   currentMode,
		"time":   time.Now(),
	})
}
