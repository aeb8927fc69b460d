package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/class-schedule/internal/models"
	appErrors "github.com/noah-isme/class-schedule/pkg/errors"
	"github.com/noah-isme/class-schedule/pkg/export"
)

// ExportFormat enumerates supported schedule export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type classLister interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportResult is a rendered schedule document.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders the class schedule as a downloadable document.
type ExportService struct {
	classes   classLister
	renderers map[ExportFormat]renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService backed by the CSV and PDF exporters.
func NewExportService(classes classLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		classes: classes,
		renderers: map[ExportFormat]renderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// ParseExportFormat normalises a user supplied format; empty means CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return ExportFormatCSV, nil
	case ExportFormatCSV, ExportFormatPDF:
		return f, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
}

// Export renders the (optionally day-filtered) schedule in the given format.
func (s *ExportService) Export(ctx context.Context, format ExportFormat, filter models.ClassFilter) (*ExportResult, error) {
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	classes, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	body, err := r.Render(BuildScheduleDataset(classes, filter))
	if err != nil {
		s.logger.Error("render schedule export", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    s.filename(format, filter),
		ContentType: r.ContentType(),
		Body:        body,
		Rows:        len(classes),
	}, nil
}

// ScheduleHeaders are the column captions used by every schedule table.
var ScheduleHeaders = []string{"ID", "Subject", "Time", "Day", "Room", "Instructor"}

// BuildScheduleDataset converts classes into a renderable table.
func BuildScheduleDataset(classes []models.Class, filter models.ClassFilter) export.Dataset {
	rows := make([][]string, 0, len(classes))
	for _, c := range classes {
		rows = append(rows, []string{strconv.FormatInt(c.ID, 10), c.Subject, c.Time, c.Day, c.Room, c.Instructor})
	}
	title := "Class Schedule"
	if day := strings.TrimSpace(filter.Day); day != "" {
		title = fmt.Sprintf("Class Schedule %s", day)
	}
	return export.Dataset{Title: title, Headers: ScheduleHeaders, Rows: rows}
}

func (s *ExportService) filename(format ExportFormat, filter models.ClassFilter) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	day := sanitizeFilename(strings.ToLower(strings.TrimSpace(filter.Day)))
	return fmt.Sprintf("classes_%s_%s.%s", day, timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := []rune(replacer.Replace(raw))
	if len(result) > 40 {
		result = result[:40]
	}
	return string(result)
}
