package api

import (
	"net/http"
	"strconv"

	"studio-messaging/internal/store"

	"github.com/gin-gonic/gin"
)

// MessageHandler lists persisted messages for the dashboard.
type MessageHandler struct {
	Messages *store.MessageStore
}

func NewMessageHandler(messages *store.MessageStore) *MessageHandler {
	return &MessageHandler{Messages: messages}
}

func (h *MessageHandler) ListMessages(c *gin.Context) {
	filter := store.MessageFilter{
		Direction: c.Query("direction"),
		Status:    c.Query("status"),
		Address:   c.Query("address"),
	}
	if raw := c.Query("automated"); raw != "" {
		automated := raw == "true"
		filter.Automated = &automated
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	messages, total, err := h.Messages.List(filter, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      messages,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
