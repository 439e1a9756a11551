package handler

import (
	"errors"
	"net/http"

	"github.com/ad-tracker/upload-scheduler-go/internal/lifecycle"
	"github.com/ad-tracker/upload-scheduler-go/internal/mode"
	"github.com/gin-gonic/gin"
)

// ModeRequest selects the connectivity mode.
type ModeRequest struct {
	Mode string `json:"mode" binding:"required,oneof=offline online auto"`
}

// ModeResponse reports the connectivity mode.
type ModeResponse struct {
	Mode           mode.Mode `json:"mode"`
	Native         bool      `json:"native"`
	NetworkCapable bool      `json:"networkCapable"`
}

// ModeHandler exposes the mode controller.
type ModeHandler struct {
	controller *mode.Controller
}

// NewModeHandler creates a new ModeHandler.
func NewModeHandler(controller *mode.Controller) *ModeHandler {
	return &ModeHandler{controller: controller}
}

// Get handles GET /mode.
func (h *ModeHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.response())
}

// Set handles PUT /mode. "auto" re-runs detection.
func (h *ModeHandler) Set(c *gin.Context) {
	var req ModeRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	var err error
	switch req.Mode {
	case "offline":
		err = h.controller.ForceOffline(ctx)
	case "online":
		err = h.controller.ForceOnline(ctx)
	case "auto":
		_, err = h.controller.Detect(ctx)
	}

	if errors.Is(err, mode.ErrNetworkUnavailable) {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response())
}

func (h *ModeHandler) response() ModeResponse {
	p := h.controller.Platform()
	return ModeResponse{
		Mode:           h.controller.Mode(),
		Native:         p.Native,
		NetworkCapable: p.NetworkCapable,
	}
}

// LifecycleHandler forwards foreground and background transitions from the
// host shell.
type LifecycleHandler struct {
	boot *lifecycle.Bootstrapper
}

// NewLifecycleHandler creates a new LifecycleHandler.
func NewLifecycleHandler(boot *lifecycle.Bootstrapper) *LifecycleHandler {
	return &LifecycleHandler{boot: boot}
}

// Foreground handles POST /lifecycle/foreground.
func (h *LifecycleHandler) Foreground(c *gin.Context) {
	if err := h.boot.Foreground(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": lifecycle.EventForeground})
}

// Background handles POST /lifecycle/background.
func (h *LifecycleHandler) Background(c *gin.Context) {
	if err := h.boot.Background(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": lifecycle.EventBackground})
}
