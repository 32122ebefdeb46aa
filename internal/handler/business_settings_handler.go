package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fitbook/trainer-crm-api/internal/models"
	"github.com/fitbook/trainer-crm-api/internal/service"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
	"github.com/fitbook/trainer-crm-api/pkg/response"
)

type businessSettingsService interface {
	Get(ctx context.Context, trainerID string) (*models.BusinessSettings, error)
	Update(ctx context.Context, trainerID string, req service.UpdateBusinessSettingsRequest) (*models.BusinessSettings, error)
}

// BusinessSettingsHandler exposes the trainer's booking configuration.
type BusinessSettingsHandler struct {
	service businessSettingsService
}

// NewBusinessSettingsHandler builds a new handler.
func NewBusinessSettingsHandler(service businessSettingsService) *BusinessSettingsHandler {
	return &BusinessSettingsHandler{service: service}
}

// Get godoc
// @Summary Get business settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /business-settings [get]
func (h *BusinessSettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context(), trainerIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Replace business settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body service.UpdateBusinessSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /business-settings [put]
func (h *BusinessSettingsHandler) Update(c *gin.Context) {
	var req service.UpdateBusinessSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	settings, err := h.service.Update(c.Request.Context(), trainerIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
