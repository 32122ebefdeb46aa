package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fitbook/trainer-crm-api/internal/models"
	"github.com/fitbook/trainer-crm-api/internal/service"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
	"github.com/fitbook/trainer-crm-api/pkg/response"
)

type appointmentService interface {
	Create(ctx context.Context, trainerID string, req service.CreateAppointmentRequest) (*models.Appointment, error)
	Get(ctx context.Context, trainerID, id string) (*models.Appointment, error)
	ListDay(ctx context.Context, trainerID string, day time.Time, includeCancelled bool) ([]models.Appointment, error)
	Update(ctx context.Context, trainerID, id string, req service.UpdateAppointmentRequest) (*models.Appointment, error)
	Cancel(ctx context.Context, trainerID, id, reason string) (*models.Appointment, error)
	SetAttendance(ctx context.Context, id string, status models.AttendanceStatus) (*models.Appointment, error)
}

type daySheetExporter interface {
	DaySheet(ctx context.Context, trainerID string, day time.Time, format service.ExportFormat) (*service.ExportResult, error)
}

// AppointmentHandler exposes the booking lifecycle endpoints.
type AppointmentHandler struct {
	service  appointmentService
	exporter daySheetExporter
}

// NewAppointmentHandler builds a new handler.
func NewAppointmentHandler(service appointmentService, exporter daySheetExporter) *AppointmentHandler {
	return &AppointmentHandler{service: service, exporter: exporter}
}

// Create godoc
// @Summary Book an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req service.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}
	appt, err := h.service.Create(c.Request.Context(), trainerIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appt)
}

// ListDay godoc
// @Summary List appointments for a day
// @Tags Appointments
// @Produce json
// @Param date query string true "Day (YYYY-MM-DD)"
// @Param include_cancelled query bool false "Include cancelled appointments"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) ListDay(c *gin.Context) {
	day, ok := parseDay(c.Query("date"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	includeCancelled := c.Query("include_cancelled") == "true"
	appointments, err := h.service.ListDay(c.Request.Context(), trainerIDFromContext(c), day, includeCancelled)
	if err != nil {
		response.Error(c, err)
		return
	}
	if appointments == nil {
		appointments = []models.Appointment{}
	}
	response.JSON(c, http.StatusOK, appointments, nil)
}

// Get godoc
// @Summary Get an appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment id"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appt, err := h.service.Get(c.Request.Context(), trainerIDFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Update godoc
// @Summary Update an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment id"
// @Param payload body service.UpdateAppointmentRequest true "Partial update payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id} [put]
func (h *AppointmentHandler) Update(c *gin.Context) {
	var req service.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}
	appt, err := h.service.Update(c.Request.Context(), trainerIDFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

// Cancel godoc
// @Summary Cancel an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment id"
// @Param payload body cancelAppointmentRequest false "Optional cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	var req cancelAppointmentRequest
	// The body is optional; a bare DELETE cancels without a reason.
	_ = c.ShouldBindJSON(&req)

	appt, err := h.service.Cancel(c.Request.Context(), trainerIDFromContext(c), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

type attendanceRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetAttendance godoc
// @Summary Record a client's attendance answer
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment id"
// @Param payload body attendanceRequest true "confirmed or declined"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/attendance [post]
func (h *AppointmentHandler) SetAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	appt, err := h.service.SetAttendance(c.Request.Context(), c.Param("id"), models.AttendanceStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Export godoc
// @Summary Export a day's schedule
// @Tags Appointments
// @Produce text/csv
// @Produce application/pdf
// @Param date query string true "Day (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /appointments/export [get]
func (h *AppointmentHandler) Export(c *gin.Context) {
	day, ok := parseDay(c.Query("date"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))

	result, err := h.exporter.DaySheet(c.Request.Context(), trainerIDFromContext(c), day, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
