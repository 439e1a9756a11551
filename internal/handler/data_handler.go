package handler

import (
	"io"
	"net/http"

	"github.com/ad-tracker/upload-scheduler-go/internal/service"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxImportSize bounds an import document.
const maxImportSize = 64 << 20

// DataHandler handles export and import.
type DataHandler struct {
	svc service.Service
}

// NewDataHandler creates a new DataHandler.
func NewDataHandler(svc service.Service) *DataHandler {
	return &DataHandler{svc: svc}
}

// Export handles GET /export.
func (h *DataHandler) Export(c *gin.Context) {
	data, err := h.svc.ExportData(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Import handles POST /import. A partial import answers 207 with the counts
// of what was kept.
func (h *DataHandler) Import(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	data, err := service.ParseExport(raw)
	if err != nil {
		handleError(c, err)
		return
	}

	result, err := h.svc.ImportData(c.Request.Context(), data)
	if err != nil {
		if result != nil && (result.ProfilesImported > 0 || result.VideosImported > 0) {
			logger.Log.Warn("Import stopped partway",
				zap.Int("profilesImported", result.ProfilesImported),
				zap.Int("videosImported", result.VideosImported),
				zap.Error(err),
			)
			c.JSON(http.StatusMultiStatus, gin.H{
				"profilesImported": result.ProfilesImported,
				"videosImported":   result.VideosImported,
				"error":            err.Error(),
			})
			return
		}
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
