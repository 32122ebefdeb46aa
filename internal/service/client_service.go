package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fitbook/trainer-crm-api/internal/models"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

type clientStore interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
	ListByTrainer(ctx context.Context, trainerID string) ([]models.Client, error)
	Create(ctx context.Context, client *models.Client) error
}

// CreateClientRequest is the payload for adding a client to the roster.
type CreateClientRequest struct {
	Name           string  `json:"name" validate:"required,min=1,max=200"`
	Phone          string  `json:"phone" validate:"omitempty,max=32"`
	TelegramChatID *string `json:"telegram_chat_id"`
}

// ClientService manages a trainer's client roster.
type ClientService struct {
	repo      clientStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClientService instantiates ClientService.
func NewClientService(repo clientStore, validate *validator.Validate, logger *zap.Logger) *ClientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{repo: repo, validator: validate, logger: logger}
}

// List returns the trainer's roster.
func (s *ClientService) List(ctx context.Context, trainerID string) ([]models.Client, error) {
	clients, err := s.repo.ListByTrainer(ctx, trainerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clients")
	}
	if clients == nil {
		clients = []models.Client{}
	}
	return clients, nil
}

// Get loads one client the caller owns.
func (s *ClientService) Get(ctx context.Context, trainerID, id string) (*models.Client, error) {
	client, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	if client.TrainerID != trainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "client belongs to another trainer")
	}
	return client, nil
}

// Create adds a client to the trainer's roster.
func (s *ClientService) Create(ctx context.Context, trainerID string, req CreateClientRequest) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}

	client := &models.Client{
		TrainerID:      trainerID,
		Name:           req.Name,
		Phone:          req.Phone,
		TelegramChatID: req.TelegramChatID,
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client")
	}
	return client, nil
}
