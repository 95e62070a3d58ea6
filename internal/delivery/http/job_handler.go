package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/usecase"
)

// JobHandler serves job status, download and listing requests.
type JobHandler struct {
	getJobUC   *usecase.GetJobUsecase
	listJobsUC *usecase.ListJobsUsecase
	logger     *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(getJobUC *usecase.GetJobUsecase, listJobsUC *usecase.ListJobsUsecase, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		getJobUC:   getJobUC,
		listJobsUC: listJobsUC,
		logger:     logger,
	}
}

// Status handles GET /api/v1/status/:id
func (h *JobHandler) Status(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	view, err := h.getJobUC.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Get status failed", zap.Error(err), zap.String("job_id", id.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// Download handles GET /api/v1/download/:id
func (h *JobHandler) Download(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	rc, info, err := h.getJobUC.Download(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrOutputMissing):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "Document not ready yet"})
		default:
			h.logger.Error("Download failed", zap.Error(err), zap.String("job_id", id.String()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}
	defer rc.Close()

	ext := "pdf"
	if info.ContentType == "application/json" {
		ext = "json"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s.%s"`, id, ext),
	}
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, headers)
}

// List handles GET /api/v1/jobs?status=&template=&limit=
func (h *JobHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	views, err := h.listJobsUC.Execute(c.Request.Context(), c.Query("status"), c.Query("template"), limit)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("List jobs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(views),
		"jobs":  views,
	})
}

func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return uuid.Nil, false
	}
	return id, true
}
