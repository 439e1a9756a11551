package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
	"github.com/ad-tracker/upload-scheduler-go/internal/service/quota"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProfileHandler handles profile endpoints.
type ProfileHandler struct {
	svc    service.Service
	budget *quota.Manager
}

// NewProfileHandler creates a new ProfileHandler. A nil budget disables the
// push gate and the budget endpoint.
func NewProfileHandler(svc service.Service, budget *quota.Manager) *ProfileHandler {
	return &ProfileHandler{svc: svc, budget: budget}
}

// List handles GET /profiles.
func (h *ProfileHandler) List(c *gin.Context) {
	profiles, err := h.svc.GetProfiles(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// Get handles GET /profiles/:id.
func (h *ProfileHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetProfile(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	if p == nil {
		respondError(c, http.StatusNotFound, fmt.Sprintf("profile %d not found", id))
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create handles POST /profiles.
func (h *ProfileHandler) Create(c *gin.Context) {
	var in models.ProfileInput
	if !bindJSON(c, &in) {
		return
	}

	p, err := h.svc.CreateProfile(c.Request.Context(), &in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update handles PATCH /profiles/:id.
func (h *ProfileHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var patch models.ProfilePatch
	if !bindJSON(c, &patch) {
		return
	}

	p, err := h.svc.UpdateProfile(c.Request.Context(), id, &patch)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /profiles/:id.
func (h *ProfileHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteProfile(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Push handles POST /profiles/:id/push. It is refused with 429 once the
// profile's budget is spent.
func (h *ProfileHandler) Push(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if h.budget != nil {
		available, budget, err := h.budget.CheckPushAvailable(ctx, id)
		if err != nil {
			handleError(c, err)
			return
		}
		if !available {
			c.Header("Retry-After", retryAfter(budget))
			respondError(c, http.StatusTooManyRequests,
				fmt.Sprintf("profile %d has used %d of %d pushes in the current window", id, budget.Used, budget.Threshold))
			return
		}
	}

	p, err := h.svc.IncrementProfilePushCount(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}

	logger.Log.Info("Push recorded",
		zap.Int64("profileId", id),
		zap.Int("dailyPushCount", p.DailyPushCount),
	)
	c.JSON(http.StatusOK, p)
}

// ResetPush handles POST /profiles/:id/push/reset.
func (h *ProfileHandler) ResetPush(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.ResetProfilePushCount(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Budget handles GET /profiles/:id/budget.
func (h *ProfileHandler) Budget(c *gin.Context) {
	if h.budget == nil {
		respondError(c, http.StatusNotFound, "push budget is not configured")
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	b, err := h.budget.GetBudget(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func retryAfter(b *quota.Budget) string {
	if b == nil || b.ResetsAt == nil {
		return "0"
	}
	secs := int(time.Until(*b.ResetsAt).Seconds()) + 1
	if secs < 0 {
		secs = 0
	}
	return strconv.Itoa(secs)
}
