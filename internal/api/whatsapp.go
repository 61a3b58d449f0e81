package api

import (
	"errors"
	"net/http"

	"studio-messaging/internal/store"
	"studio-messaging/internal/templates"
	"studio-messaging/internal/wa"

	"github.com/gin-gonic/gin"
)

// WhatsAppHandler exposes connection status and the send paths.
type WhatsAppHandler struct {
	Gateway  *wa.Gateway
	Messages *store.MessageStore
}

func NewWhatsAppHandler(gateway *wa.Gateway, messages *store.MessageStore) *WhatsAppHandler {
	return &WhatsAppHandler{Gateway: gateway, Messages: messages}
}

func (h *WhatsAppHandler) GetStatus(c *gin.Context) {
	stats, err := h.Messages.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": h.Gateway.Status(),
		"stats":   stats,
	})
}

type sendRequest struct {
	To            string `json:"to" binding:"required"`
	Body          string `json:"body" binding:"required"`
	ClientID      *uint  `json:"client_id"`
	AppointmentID *uint  `json:"appointment_id"`
}

func (h *WhatsAppHandler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Gateway.SendFreeform(c.Request.Context(), req.To, req.Body, wa.SendContext{
		ClientID:      req.ClientID,
		AppointmentID: req.AppointmentID,
	})
	if err != nil {
		respondSendError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type sendTemplateRequest struct {
	To            string            `json:"to" binding:"required"`
	Template      string            `json:"template" binding:"required"`
	Variables     map[string]string `json:"variables"`
	ClientID      *uint             `json:"client_id"`
	AppointmentID *uint             `json:"appointment_id"`
}

func (h *WhatsAppHandler) SendTemplate(c *gin.Context) {
	var req sendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Gateway.SendTemplate(c.Request.Context(), req.To, req.Template, req.Variables, wa.SendContext{
		ClientID:      req.ClientID,
		AppointmentID: req.AppointmentID,
	})
	if err != nil {
		respondSendError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// respondSendError maps core errors onto HTTP statuses.
func respondSendError(c *gin.Context, err error) {
	var missing *templates.MissingVariableError
	switch {
	case errors.Is(err, wa.ErrNotConnected), errors.Is(err, wa.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, templates.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "variable": missing.Key})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
