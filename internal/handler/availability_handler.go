package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fitbook/trainer-crm-api/internal/service"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
	"github.com/fitbook/trainer-crm-api/pkg/response"
)

type availabilityService interface {
	Slots(ctx context.Context, trainerID string, day time.Time) ([]service.SlotView, error)
	Durations(ctx context.Context, trainerID string, start time.Time) (*service.DurationOptions, error)
}

// AvailabilityHandler exposes the slot and duration queries backing the
// booking UI.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler builds a new handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Slots godoc
// @Summary List slots for a day
// @Tags Availability
// @Produce json
// @Param date query string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /availability/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	day, ok := parseDay(c.Query("date"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	slots, err := h.service.Slots(c.Request.Context(), trainerIDFromContext(c), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Durations godoc
// @Summary Duration menu for a start instant
// @Tags Availability
// @Produce json
// @Param start query string true "Start instant (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /availability/durations [get]
func (h *AvailabilityHandler) Durations(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start must be RFC 3339"))
		return
	}
	options, err := h.service.Durations(c.Request.Context(), trainerIDFromContext(c), start)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}
