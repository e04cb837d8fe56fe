package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/medrefill/internal/config"
	"github.com/mamadbah2/medrefill/internal/domain/models"
)

const dateLayout = "2006-01-02"

// ReportExporter appends one row per dispatch run to a Google Sheet so that
// operators can follow reminder volume without database access.
type ReportExporter struct {
	service       *sheetsapi.Service
	spreadsheetID string
	sheetRange    string
	logger        *zap.Logger
}

// NewReportExporter builds a Google Sheets backed exporter.
func NewReportExporter(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*ReportExporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &ReportExporter{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetRange:    cfg.Range,
		logger:        logger,
	}, nil
}

// ExportDispatchReport appends the report as a row.
func (e *ReportExporter) ExportDispatchReport(ctx context.Context, report models.DispatchReport) error {
	if e.sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{reportRow(report)}}

	call := e.service.Spreadsheets.Values.Append(e.spreadsheetID, e.sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", e.sheetRange, err)
	}

	e.logger.Debug("dispatch report appended to sheet", zap.String("range", e.sheetRange), zap.String("mode", string(report.Mode)))
	return nil
}

func reportRow(report models.DispatchReport) []interface{} {
	reasons := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.UserID, f.Reason))
	}

	return []interface{}{
		report.RunAt.UTC().Format(time.RFC3339),
		string(report.Mode),
		report.AsOf.Format(dateLayout),
		report.Selected,
		report.UsersNotified,
		report.EmailsSent,
		strings.Join(reasons, "; "),
	}
}
