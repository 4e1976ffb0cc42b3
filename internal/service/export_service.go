package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/export"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

// ExportCommitmentRepository loads the commitment being exported.
type ExportCommitmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Commitment, error)
}

// ExportBookingRepository loads the sessions under a commitment.
type ExportBookingRepository interface {
	ListByCommitment(ctx context.Context, commitmentID string) ([]models.Booking, error)
}

// ExportService renders attendance reports as CSV or PDF.
type ExportService struct {
	commits  ExportCommitmentRepository
	bookings ExportBookingRepository
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// ExportResult carries rendered bytes plus response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// NewExportService constructs the export service.
func NewExportService(commits ExportCommitmentRepository, bookings ExportBookingRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		commits:  commits,
		bookings: bookings,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// AttendanceReport renders the session-by-session attendance record for a
// commitment. Supported formats are "csv" and "pdf".
func (s *ExportService) AttendanceReport(ctx context.Context, commitmentID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	commitment, err := s.commits.FindByID(ctx, commitmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "commitment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load commitment")
	}

	sessions, err := s.bookings.ListByCommitment(ctx, commitmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load sessions")
	}

	dataset := export.Dataset{
		Columns: []string{"Week", "Scheduled", "Status", "Attendance"},
		Rows:    make([][]string, 0, len(sessions)),
	}
	for _, session := range sessions {
		week := ""
		if session.WeekNumber != nil {
			week = fmt.Sprintf("%d", *session.WeekNumber)
		}
		attendance := ""
		if session.Attendance != nil {
			attendance = string(*session.Attendance)
		}
		dataset.Rows = append(dataset.Rows, []string{
			week,
			session.StartAt.Format("2006-01-02 15:04"),
			string(session.Status),
			attendance,
		})
	}

	switch format {
	case "pdf":
		title := fmt.Sprintf("Attendance Report %s", commitment.Kind)
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to render pdf")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("attendance-%s.pdf", commitmentID),
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to render csv")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("attendance-%s.csv", commitmentID),
		}, nil
	}
}
