package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fitbook/trainer-crm-api/internal/models"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
	"github.com/fitbook/trainer-crm-api/pkg/export"
)

// ExportFormat selects the rendering of a day sheet.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult carries a rendered day sheet plus HTTP metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders a trainer's schedule for one day as CSV or PDF.
type ExportService struct {
	appointments dayLister
	clients      clientReader
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	logger       *zap.Logger
}

// NewExportService instantiates ExportService.
func NewExportService(appointments dayLister, clients clientReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		appointments: appointments,
		clients:      clients,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		logger:       logger,
	}
}

var daySheetHeaders = []string{"Time", "Duration", "Type", "Clients", "Status", "Notes"}

// DaySheet builds and renders one day of appointments, cancelled ones included
// so the sheet reflects the full history of the day.
func (s *ExportService) DaySheet(ctx context.Context, trainerID string, day time.Time, format ExportFormat) (*ExportResult, error) {
	appointments, err := s.appointments.ListForDay(ctx, trainerID, day, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments for export")
	}

	names, err := s.clientNames(ctx, appointments)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clients for export")
	}

	data := export.Dataset{Headers: daySheetHeaders, Rows: make([]map[string]string, 0, len(appointments))}
	for i := range appointments {
		appt := appointments[i]
		data.Rows = append(data.Rows, map[string]string{
			"Time":     fmt.Sprintf("%s - %s", appt.StartTime.Format("15:04"), appt.EndTime().Format("15:04")),
			"Duration": fmt.Sprintf("%d min", appt.DurationMinutes),
			"Type":     string(appt.Type),
			"Clients":  joinNames(appt.Participants(), names),
			"Status":   string(appt.Status),
			"Notes":    appt.Notes,
		})
	}

	dayLabel := day.Format("2006-01-02")
	switch format {
	case ExportPDF:
		content, err := s.pdf.Render(data, "Schedule for "+dayLabel)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: "schedule-" + dayLabel + ".pdf"}, nil
	case ExportCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: "schedule-" + dayLabel + ".csv"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+string(format))
	}
}

func (s *ExportService) clientNames(ctx context.Context, appointments []models.Appointment) (map[string]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	for i := range appointments {
		for _, id := range appointments[i].Participants() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	clients, err := s.clients.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(clients))
	for i := range clients {
		names[clients[i].ID] = clients[i].Name
	}
	return names, nil
}

func joinNames(ids []string, names map[string]string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok && name != "" {
			out = append(out, name)
			continue
		}
		out = append(out, id)
	}
	return strings.Join(out, ", ")
}
