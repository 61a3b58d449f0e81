package api

import (
	"errors"
	"net/http"

	"studio-messaging/internal/models"
	"studio-messaging/internal/store"
	"studio-messaging/internal/templates"

	"github.com/gin-gonic/gin"
)

// TemplateHandler manages stored message templates.
type TemplateHandler struct {
	Templates *store.TemplateStore
	Renderer  *templates.Renderer
}

func NewTemplateHandler(store *store.TemplateStore, renderer *templates.Renderer) *TemplateHandler {
	return &TemplateHandler{Templates: store, Renderer: renderer}
}

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	list, err := h.Templates.List(c.Query("category"), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

type templateRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category" binding:"required"`
	Language    string `json:"language"`
	BodyText    string `json:"body_text" binding:"required"`
	IsActive    *bool  `json:"is_active"`
}

func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.Templates.FindByName(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "template already exists"})
		return
	}

	tpl := models.Template{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Category:    req.Category,
		Language:    req.Language,
		BodyText:    req.BodyText,
		IsActive:    true,
	}
	if req.IsActive != nil {
		tpl.IsActive = *req.IsActive
	}
	if tpl.Language == "" {
		tpl.Language = "pt_BR"
	}

	if err := h.Templates.Create(&tpl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	tpl, err := h.Templates.FindByName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tpl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		Category    *string `json:"category"`
		BodyText    *string `json:"body_text"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.DisplayName != nil {
		tpl.DisplayName = *req.DisplayName
	}
	if req.Category != nil {
		tpl.Category = *req.Category
	}
	if req.BodyText != nil {
		tpl.BodyText = *req.BodyText
	}
	if req.IsActive != nil {
		tpl.IsActive = *req.IsActive
	}

	if err := h.Templates.Update(tpl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.Templates.DeleteByName(c.Param("name")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// PreviewTemplate renders without committing usage statistics.
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	var req struct {
		Variables map[string]string `json:"variables"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rendered, err := h.Renderer.Render(c.Param("name"), req.Variables)
	if err != nil {
		var missing *templates.MissingVariableError
		switch {
		case errors.Is(err, templates.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &missing):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "variable": missing.Key})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"rendered": rendered})
}
