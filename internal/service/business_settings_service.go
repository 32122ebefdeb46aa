package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fitbook/trainer-crm-api/internal/models"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context, trainerID string) (*models.BusinessSettings, error)
	Upsert(ctx context.Context, settings *models.BusinessSettings) error
}

type settingsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UpdateBusinessSettingsRequest is a full replace of a trainer's settings.
type UpdateBusinessSettingsRequest struct {
	Timezone            string                     `json:"timezone" validate:"required"`
	WorkingHours        map[string]models.DayHours `json:"working_hours" validate:"required"`
	SlotDurationMinutes int                        `json:"slot_duration_minutes" validate:"required,gt=0"`
	Holidays            []string                   `json:"holidays"`
	RemindersEnabled    bool                       `json:"reminders_enabled"`
	ReminderLeadHours   int                        `json:"reminder_lead_hours" validate:"gte=0,lte=72"`
	MaxGroupClients     int                        `json:"max_group_clients" validate:"gte=1,lte=100"`
}

// BusinessSettingsService serves and mutates per-trainer booking
// configuration. Reads are cache-first: settings back every slot and
// availability query but change rarely.
type BusinessSettingsService struct {
	repo      settingsRepository
	cache     settingsCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBusinessSettingsService instantiates the service.
func NewBusinessSettingsService(repo settingsRepository, cache settingsCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *BusinessSettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &BusinessSettingsService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

func settingsCacheKey(trainerID string) string {
	return "settings:" + trainerID
}

// Get returns a trainer's settings, synthesizing defaults when none were ever
// saved so read paths always have a complete calendar to work with.
func (s *BusinessSettingsService) Get(ctx context.Context, trainerID string) (*models.BusinessSettings, error) {
	key := settingsCacheKey(trainerID)
	if s.cache != nil {
		var cached models.BusinessSettings
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	settings, err := s.repo.Get(ctx, trainerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load business settings")
	}
	if settings == nil {
		settings = models.DefaultBusinessSettings(trainerID)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, settings, s.cacheTTL); err != nil {
			s.logger.Warn("settings cache set failed", zap.String("trainer_id", trainerID), zap.Error(err))
		}
	}
	return settings, nil
}

// Update validates and replaces a trainer's settings, then invalidates the
// cached copy. Last writer wins on concurrent updates.
func (s *BusinessSettingsService) Update(ctx context.Context, trainerID string, req UpdateBusinessSettingsRequest) (*models.BusinessSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid business settings payload")
	}

	settings := &models.BusinessSettings{
		TrainerID:           trainerID,
		Timezone:            req.Timezone,
		WorkingHours:        req.WorkingHours,
		SlotDurationMinutes: req.SlotDurationMinutes,
		Holidays:            req.Holidays,
		RemindersEnabled:    req.RemindersEnabled,
		ReminderLeadHours:   req.ReminderLeadHours,
		MaxGroupClients:     req.MaxGroupClients,
	}
	if settings.Holidays == nil {
		settings.Holidays = []string{}
	}

	if err := settings.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save business settings")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, settingsCacheKey(trainerID)); err != nil {
			s.logger.Warn("settings cache invalidation failed", zap.String("trainer_id", trainerID), zap.Error(err))
		}
	}
	return settings, nil
}
