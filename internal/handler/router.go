package handler

import (
	"github.com/ad-tracker/upload-scheduler-go/internal/files"
	"github.com/ad-tracker/upload-scheduler-go/internal/lifecycle"
	"github.com/ad-tracker/upload-scheduler-go/internal/middleware"
	"github.com/ad-tracker/upload-scheduler-go/internal/mode"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
	"github.com/ad-tracker/upload-scheduler-go/internal/service/quota"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIPrefix is where the scheduler resources are mounted.
const APIPrefix = "/api"

// Deps holds what the router wires into handlers. Budget, Controller and
// Lifecycle are optional.
type Deps struct {
	Service    service.Service
	Files      *files.Manager
	Budget     *quota.Manager
	Controller *mode.Controller
	Lifecycle  *lifecycle.Bootstrapper
	Store      Pinger
	APIKeys    []string
}

// NewRouter builds the gin engine. With no API keys configured the API is
// served without authentication.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	health := NewHealthHandler(d.Store, d.Controller)
	r.GET("/health/live", health.LivenessProbe)
	r.GET("/health/ready", health.ReadinessProbe)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(APIPrefix)
	if auth := middleware.NewAPIKeyAuth(d.APIKeys); auth.Enabled() {
		api.Use(auth.Middleware())
	} else {
		logger.Log.Warn("No API keys configured, API is unauthenticated")
	}

	profiles := NewProfileHandler(d.Service, d.Budget)
	api.GET("/profiles", profiles.List)
	api.POST("/profiles", profiles.Create)
	api.GET("/profiles/:id", profiles.Get)
	api.PATCH("/profiles/:id", profiles.Update)
	api.DELETE("/profiles/:id", profiles.Delete)
	api.POST("/profiles/:id/push", profiles.Push)
	api.POST("/profiles/:id/push/reset", profiles.ResetPush)
	api.GET("/profiles/:id/budget", profiles.Budget)

	videos := NewVideoHandler(d.Service, d.Files)
	api.GET("/videos", videos.List)
	api.POST("/videos", videos.Create)
	api.POST("/videos/missed", videos.MarkMissed)
	api.GET("/videos/:id", videos.Get)
	api.PATCH("/videos/:id", videos.Update)
	api.DELETE("/videos/:id", videos.Delete)
	api.POST("/videos/:id/uploaded", videos.MarkUploaded)
	api.POST("/videos/:id/revert", videos.Revert)
	api.POST("/videos/:id/reschedule", videos.Reschedule)
	api.POST("/videos/:id/file", videos.UploadFile)

	data := NewDataHandler(d.Service)
	api.GET("/export", data.Export)
	api.POST("/import", data.Import)

	if d.Controller != nil {
		modes := NewModeHandler(d.Controller)
		api.GET("/mode", modes.Get)
		api.PUT("/mode", modes.Set)
	}

	if d.Lifecycle != nil {
		lc := NewLifecycleHandler(d.Lifecycle)
		api.POST("/lifecycle/foreground", lc.Foreground)
		api.POST("/lifecycle/background", lc.Background)
	}

	return r
}
