package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitbook/trainer-crm-api/internal/models"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

type stubSettingsRepo struct {
	stored  *models.BusinessSettings
	getErr  error
	upserts int
}

func (s *stubSettingsRepo) Get(ctx context.Context, trainerID string) (*models.BusinessSettings, error) {
	return s.stored, s.getErr
}

func (s *stubSettingsRepo) Upsert(ctx context.Context, settings *models.BusinessSettings) error {
	s.upserts++
	s.stored = settings
	return nil
}

type memCache struct {
	values  map[string]*models.BusinessSettings
	deletes []string
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.BusinessSettings) = *v
	return nil
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = map[string]*models.BusinessSettings{}
	}
	c.values[key] = value.(*models.BusinessSettings)
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	delete(c.values, key)
	return nil
}

func validSettingsRequest() UpdateBusinessSettingsRequest {
	return UpdateBusinessSettingsRequest{
		Timezone:            "Europe/Berlin",
		WorkingHours:        models.DefaultWorkingHours(),
		SlotDurationMinutes: 30,
		Holidays:            []string{"2025-12-25"},
		RemindersEnabled:    true,
		ReminderLeadHours:   3,
		MaxGroupClients:     8,
	}
}

func TestBusinessSettingsServiceGetSynthesizesDefaults(t *testing.T) {
	repo := &stubSettingsRepo{}
	svc := NewBusinessSettingsService(repo, nil, 0, nil, nil)

	settings, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", settings.TrainerID)
	assert.Equal(t, 30, settings.SlotDurationMinutes)
	assert.True(t, settings.WorkingHours["monday"].Enabled)
	assert.False(t, settings.WorkingHours["saturday"].Enabled)
}

func TestBusinessSettingsServiceGetCacheFirst(t *testing.T) {
	cached := models.DefaultBusinessSettings("t1")
	cached.SlotDurationMinutes = 45
	cache := &memCache{values: map[string]*models.BusinessSettings{"settings:t1": cached}}
	repo := &stubSettingsRepo{stored: models.DefaultBusinessSettings("t1")}
	svc := NewBusinessSettingsService(repo, cache, time.Minute, nil, nil)

	settings, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 45, settings.SlotDurationMinutes)
}

func TestBusinessSettingsServiceGetPopulatesCache(t *testing.T) {
	cache := &memCache{}
	repo := &stubSettingsRepo{stored: models.DefaultBusinessSettings("t1")}
	svc := NewBusinessSettingsService(repo, cache, time.Minute, nil, nil)

	_, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Contains(t, cache.values, "settings:t1")
}

func TestBusinessSettingsServiceUpdateInvalidatesCache(t *testing.T) {
	cache := &memCache{values: map[string]*models.BusinessSettings{"settings:t1": models.DefaultBusinessSettings("t1")}}
	repo := &stubSettingsRepo{}
	svc := NewBusinessSettingsService(repo, cache, time.Minute, nil, nil)

	settings, err := svc.Update(context.Background(), "t1", validSettingsRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.upserts)
	assert.Equal(t, "Europe/Berlin", settings.Timezone)
	assert.Equal(t, 8, settings.MaxGroupClients)
	assert.Equal(t, []string{"settings:t1"}, cache.deletes)
}

func TestBusinessSettingsServiceUpdateKeepsZeroLeadHours(t *testing.T) {
	repo := &stubSettingsRepo{}
	svc := NewBusinessSettingsService(repo, nil, 0, nil, nil)

	req := validSettingsRequest()
	req.ReminderLeadHours = 0
	settings, err := svc.Update(context.Background(), "t1", req)
	require.NoError(t, err)
	assert.Equal(t, 0, settings.ReminderLeadHours)
	assert.Equal(t, 0, repo.stored.ReminderLeadHours)
}

func TestBusinessSettingsServiceUpdateRejectsBadHours(t *testing.T) {
	svc := NewBusinessSettingsService(&stubSettingsRepo{}, nil, 0, nil, nil)

	req := validSettingsRequest()
	req.WorkingHours = map[string]models.DayHours{
		"monday": {Enabled: true, Start: "18:00", End: "09:00"},
	}
	_, err := svc.Update(context.Background(), "t1", req)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	req = validSettingsRequest()
	req.MaxGroupClients = 0
	_, err = svc.Update(context.Background(), "t1", req)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	req = validSettingsRequest()
	req.Holidays = []string{"25-12-2025"}
	_, err = svc.Update(context.Background(), "t1", req)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}
