package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fitbook/trainer-crm-api/internal/models"
	"github.com/fitbook/trainer-crm-api/pkg/response"
)

type reminderDispatcher interface {
	RunOnce(ctx context.Context) (*models.DispatchSummary, error)
}

// ReminderHandler exposes manual reminder dispatch. The periodic job uses the
// same service; this endpoint exists for operators and tests.
type ReminderHandler struct {
	service reminderDispatcher
}

// NewReminderHandler builds a new handler.
func NewReminderHandler(service reminderDispatcher) *ReminderHandler {
	return &ReminderHandler{service: service}
}

// Dispatch godoc
// @Summary Run one reminder dispatch batch
// @Tags Reminders
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reminders/dispatch [post]
func (h *ReminderHandler) Dispatch(c *gin.Context) {
	summary, err := h.service.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
