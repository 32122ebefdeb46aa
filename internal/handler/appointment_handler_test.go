package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitbook/trainer-crm-api/internal/middleware"
	"github.com/fitbook/trainer-crm-api/internal/models"
	"github.com/fitbook/trainer-crm-api/internal/service"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

type appointmentServiceMock struct {
	createResp *models.Appointment
	createErr  error
	listResp   []models.Appointment
	cancelResp *models.Appointment
	trainerID  string
}

func (m *appointmentServiceMock) Create(ctx context.Context, trainerID string, req service.CreateAppointmentRequest) (*models.Appointment, error) {
	m.trainerID = trainerID
	return m.createResp, m.createErr
}

func (m *appointmentServiceMock) Get(ctx context.Context, trainerID, id string) (*models.Appointment, error) {
	return m.createResp, m.createErr
}

func (m *appointmentServiceMock) ListDay(ctx context.Context, trainerID string, day time.Time, includeCancelled bool) ([]models.Appointment, error) {
	return m.listResp, nil
}

func (m *appointmentServiceMock) Update(ctx context.Context, trainerID, id string, req service.UpdateAppointmentRequest) (*models.Appointment, error) {
	return m.createResp, m.createErr
}

func (m *appointmentServiceMock) Cancel(ctx context.Context, trainerID, id, reason string) (*models.Appointment, error) {
	return m.cancelResp, m.createErr
}

func (m *appointmentServiceMock) SetAttendance(ctx context.Context, id string, status models.AttendanceStatus) (*models.Appointment, error) {
	return m.createResp, m.createErr
}

type exporterMock struct {
	result *service.ExportResult
	err    error
}

func (m *exporterMock) DaySheet(ctx context.Context, trainerID string, day time.Time, format service.ExportFormat) (*service.ExportResult, error) {
	return m.result, m.err
}

func authedContext(t *testing.T, w *httptest.ResponseRecorder) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{TrainerID: "t1"})
	return c
}

func TestAppointmentHandlerCreate(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	mock := &appointmentServiceMock{createResp: &models.Appointment{ID: "a1", TrainerID: "t1", StartTime: start}}
	handler := NewAppointmentHandler(mock, &exporterMock{})

	w := httptest.NewRecorder()
	c := authedContext(t, w)
	body, _ := json.Marshal(service.CreateAppointmentRequest{
		StartTime: start, DurationMinutes: 60, Type: "individual", ClientID: "c1",
	})
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t1", mock.trainerID)
}

func TestAppointmentHandlerCreateConflict(t *testing.T) {
	mock := &appointmentServiceMock{createErr: appErrors.Clone(appErrors.ErrSlotTaken, "")}
	handler := NewAppointmentHandler(mock, &exporterMock{})

	w := httptest.NewRecorder()
	c := authedContext(t, w)
	body, _ := json.Marshal(service.CreateAppointmentRequest{
		StartTime: time.Now().Add(time.Hour), DurationMinutes: 60, Type: "individual", ClientID: "c1",
	})
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "SLOT_TAKEN", envelope.Error.Code)
}

func TestAppointmentHandlerListDayRequiresDate(t *testing.T) {
	handler := NewAppointmentHandler(&appointmentServiceMock{}, &exporterMock{})

	w := httptest.NewRecorder()
	c := authedContext(t, w)
	req, _ := http.NewRequest(http.MethodGet, "/appointments?date=10-03-2025", nil)
	c.Request = req

	handler.ListDay(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppointmentHandlerCancelWithoutBody(t *testing.T) {
	cancelled := &models.Appointment{ID: "a1", Status: models.StatusCancelled}
	handler := NewAppointmentHandler(&appointmentServiceMock{cancelResp: cancelled}, &exporterMock{})

	w := httptest.NewRecorder()
	c := authedContext(t, w)
	req, _ := http.NewRequest(http.MethodDelete, "/appointments/a1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cancelled"`)
}

func TestAppointmentHandlerExport(t *testing.T) {
	handler := NewAppointmentHandler(&appointmentServiceMock{}, &exporterMock{result: &service.ExportResult{
		Content:     []byte("Time,Clients\n"),
		ContentType: "text/csv",
		Filename:    "schedule-2025-03-10.csv",
	}})

	w := httptest.NewRecorder()
	c := authedContext(t, w)
	req, _ := http.NewRequest(http.MethodGet, "/appointments/export?date=2025-03-10&format=csv", nil)
	c.Request = req

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule-2025-03-10.csv")
}
