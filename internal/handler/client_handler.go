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

type clientService interface {
	List(ctx context.Context, trainerID string) ([]models.Client, error)
	Get(ctx context.Context, trainerID, id string) (*models.Client, error)
	Create(ctx context.Context, trainerID string, req service.CreateClientRequest) (*models.Client, error)
}

// ClientHandler exposes the client roster endpoints.
type ClientHandler struct {
	service clientService
}

// NewClientHandler builds a new handler.
func NewClientHandler(service clientService) *ClientHandler {
	return &ClientHandler{service: service}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.service.List(c.Request.Context(), trainerIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clients, nil)
}

// Get godoc
// @Summary Get a client
// @Tags Clients
// @Produce json
// @Param id path string true "Client id"
// @Success 200 {object} response.Envelope
// @Router /clients/{id} [get]
func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.service.Get(c.Request.Context(), trainerIDFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, client, nil)
}

// Create godoc
// @Summary Add a client
// @Tags Clients
// @Accept json
// @Produce json
// @Param payload body service.CreateClientRequest true "Client payload"
// @Success 201 {object} response.Envelope
// @Router /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid client payload"))
		return
	}
	client, err := h.service.Create(c.Request.Context(), trainerIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, client)
}
