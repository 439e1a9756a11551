package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/internal/files"
	"github.com/ad-tracker/upload-scheduler-go/internal/remote"
	"github.com/ad-tracker/upload-scheduler-go/internal/service"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// VideoHandler handles video endpoints.
type VideoHandler struct {
	svc   service.Service
	files *files.Manager
	now   func() time.Time
}

// NewVideoHandler creates a new VideoHandler. fm stages multipart uploads;
// with a nil fm only JSON path uploads are accepted.
func NewVideoHandler(svc service.Service, fm *files.Manager) *VideoHandler {
	return &VideoHandler{svc: svc, files: fm, now: time.Now}
}

// UploadFileRequest attaches a file that is already on this host.
type UploadFileRequest struct {
	Path string `json:"path" binding:"required"`
}

// List handles GET /videos with optional profileId, status or date filters.
func (h *VideoHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		videos []*models.Video
		err    error
	)

	switch {
	case c.Query("profileId") != "":
		profileID, perr := strconv.ParseInt(c.Query("profileId"), 10, 64)
		if perr != nil || profileID <= 0 {
			respondError(c, http.StatusBadRequest, "profileId must be a positive integer")
			return
		}
		videos, err = h.svc.GetVideosByProfile(ctx, profileID)
	case c.Query("status") != "":
		status := models.VideoStatus(c.Query("status"))
		if !status.Valid() {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
			return
		}
		videos, err = h.svc.GetVideosByStatus(ctx, status)
	case c.Query("date") != "":
		day, perr := parseDate(c.Query("date"))
		if perr != nil {
			respondError(c, http.StatusBadRequest, perr.Error())
			return
		}
		videos, err = h.svc.GetVideosByDate(ctx, day)
	default:
		videos, err = h.svc.GetVideos(ctx)
	}

	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

// parseDate accepts a calendar day in server local time or an RFC3339
// timestamp whose offset fixes the day boundaries.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, raw, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or RFC3339)", raw)
	}
	return t, nil
}

// Get handles GET /videos/:id.
func (h *VideoHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	v, err := h.svc.GetVideo(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	if v == nil {
		respondError(c, http.StatusNotFound, fmt.Sprintf("video %d not found", id))
		return
	}
	c.JSON(http.StatusOK, v)
}

// Create handles POST /videos.
func (h *VideoHandler) Create(c *gin.Context) {
	var in models.VideoInput
	if !bindJSON(c, &in) {
		return
	}

	v, err := h.svc.CreateVideo(c.Request.Context(), &in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// Update handles PATCH /videos/:id.
func (h *VideoHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var patch models.VideoPatch
	if !bindJSON(c, &patch) {
		return
	}

	v, err := h.svc.UpdateVideo(c.Request.Context(), id, &patch)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /videos/:id.
func (h *VideoHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteVideo(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkUploaded handles POST /videos/:id/uploaded.
func (h *VideoHandler) MarkUploaded(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req remote.UploadedRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := h.svc.MarkVideoAsUploaded(c.Request.Context(), id, req.YoutubeLink)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Revert handles POST /videos/:id/revert.
func (h *VideoHandler) Revert(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	v, err := h.svc.RevertVideoUpload(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Reschedule handles POST /videos/:id/reschedule.
func (h *VideoHandler) Reschedule(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req remote.RescheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ScheduleDate.IsZero() {
		respondError(c, http.StatusBadRequest, "scheduleDate is required")
		return
	}

	v, err := h.svc.RescheduleVideo(c.Request.Context(), id, req.ScheduleDate)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// MarkMissed handles POST /videos/missed. An empty body uses the current time.
func (h *VideoHandler) MarkMissed(c *gin.Context) {
	var req remote.MissedRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
	}
	if req.Now.IsZero() {
		req.Now = h.now()
	}

	videos, err := h.svc.MarkMissedSchedules(c.Request.Context(), req.Now)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

// UploadFile handles POST /videos/:id/file. A multipart "file" field is
// staged in the temp area; a JSON body names a file already on this host.
func (h *VideoHandler) UploadFile(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req UploadFileRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := h.svc.UploadVideoFile(ctx, id, req.Path)
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
		return
	}

	if h.files == nil {
		respondError(c, http.StatusUnsupportedMediaType, "multipart uploads are not enabled")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}

	src, err := header.Open()
	if err != nil {
		handleError(c, err)
		return
	}
	defer src.Close()

	staged := h.files.TempName(filepath.Ext(header.Filename))
	if _, err := h.files.Write(staged, src); err != nil {
		handleError(c, err)
		return
	}
	abs, err := h.files.AbsPath(staged)
	if err != nil {
		handleError(c, err)
		return
	}

	v, err := h.svc.UploadVideoFile(ctx, id, abs)
	if err != nil {
		if derr := h.files.Delete(staged); derr != nil {
			logger.Log.Warn("Failed to remove staged upload", zap.String("path", staged), zap.Error(derr))
		}
		handleError(c, err)
		return
	}

	logger.Log.Info("Video file uploaded",
		zap.Int64("videoId", id),
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
	)
	c.JSON(http.StatusOK, v)
}
