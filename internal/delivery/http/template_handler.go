package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GitRadiation/template-filler/internal/registry"
)

// TemplateHandler handles template listing requests.
type TemplateHandler struct {
	registry *registry.Registry
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(reg *registry.Registry) *TemplateHandler {
	return &TemplateHandler{registry: reg}
}

// List handles GET /api/v1/templates
func (h *TemplateHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"templates": h.registry.Entries(),
	})
}
