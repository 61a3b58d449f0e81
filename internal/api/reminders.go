package api

import (
	"net/http"
	"strconv"

	"studio-messaging/internal/reminder"
	"studio-messaging/internal/store"

	"github.com/gin-gonic/gin"
)

// ReminderHandler manages reminder jobs for appointments.
type ReminderHandler struct {
	Scheduler *reminder.Scheduler
	Jobs      *store.ReminderStore
}

func NewReminderHandler(scheduler *reminder.Scheduler, jobs *store.ReminderStore) *ReminderHandler {
	return &ReminderHandler{Scheduler: scheduler, Jobs: jobs}
}

func (h *ReminderHandler) CreateReminders(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}

	created, err := h.Scheduler.CreateForAppointment(uint(id))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": created})
}

func (h *ReminderHandler) CancelReminders(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}

	cancelled, err := h.Scheduler.CancelForAppointment(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

func (h *ReminderHandler) ListReminders(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}

	jobs, err := h.Jobs.ListForAppointment(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, jobs)
}
