package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/usecase"
)

// UploadHandler handles document generation submissions.
type UploadHandler struct {
	submitUC *usecase.SubmitJobUsecase
	logger   *zap.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(submitUC *usecase.SubmitJobUsecase, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{submitUC: submitUC, logger: logger}
}

type uploadJSONBody struct {
	TemplateName string          `json:"template_name" binding:"required"`
	OutputFormat string          `json:"output_format"`
	Data         json.RawMessage `json:"data"`
}

// Upload handles POST /api/v1/upload. Accepts either a multipart form with a
// template_name field plus a JSON file, or a JSON body with inline data.
func (h *UploadHandler) Upload(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	job, err := h.submitUC.Execute(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnsupportedTemplate),
			errors.Is(err, domain.ErrUnsupportedFormat),
			errors.Is(err, domain.ErrMalformedInput):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, domain.ErrPublishFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Service temporarily unavailable"})
		default:
			h.logger.Error("Submit job failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, domain.SubmitResponse{
		Success: true,
		JobID:   job.ID,
		Status:  job.Status,
	})
}

func (h *UploadHandler) parseRequest(c *gin.Context) (*usecase.SubmitRequest, error) {
	contentType := c.GetHeader("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		templateName := c.PostForm("template_name")
		if templateName == "" {
			return nil, errors.New("template_name is required")
		}

		var raw []byte
		file, _, err := c.Request.FormFile("file")
		if err == nil {
			defer file.Close()
			raw, err = io.ReadAll(file)
			if err != nil {
				return nil, errors.New("failed to read uploaded file")
			}
		} else if data := c.PostForm("data"); data != "" {
			raw = []byte(data)
		}

		return &usecase.SubmitRequest{
			TemplateName: domain.TemplateName(templateName),
			OutputFormat: domain.OutputFormat(c.PostForm("output_format")),
			RawData:      raw,
		}, nil
	}

	var body uploadJSONBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, errors.New("invalid request body: " + err.Error())
	}
	return &usecase.SubmitRequest{
		TemplateName: domain.TemplateName(body.TemplateName),
		OutputFormat: domain.OutputFormat(body.OutputFormat),
		RawData:      body.Data,
	}, nil
}
