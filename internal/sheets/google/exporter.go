// Package google writes published reports to a Google Sheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"rewards/internal/analytics"
	"rewards/internal/core"
	applog "rewards/internal/log"
)

// Exporter replaces the content of one sheet with the latest report.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger
}

func New(svc *gsheet.Service, spreadsheetID, sheetName string, logger *applog.Logger) *Exporter {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

// NewFromEnv builds an exporter authenticated with a service account taken
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, spreadsheetID, sheetName string, logger *applog.Logger) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Report"
	}
	creds, err := serviceAccountJSON()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return New(svc, spreadsheetID, sheetName, logger), nil
}

func serviceAccountJSON() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// ExportReport clears the sheet and writes the rows of BuildReportRows.
func (e *Exporter) ExportReport(ctx context.Context, s core.Snapshot) error {
	rows := BuildReportRows(s)

	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, e.sheetName, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", e.sheetName, err)
	}

	vr := &gsheet.ValueRange{Values: rows}
	rng := e.sheetName + "!A1"
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	e.logger.InfoContext(ctx, "Exported report to sheet",
		applog.FieldGeneration, s.Generation,
		"sheet", e.sheetName,
		"rows", len(rows))
	return nil
}

// BuildReportRows lays out a snapshot as sheet rows: header, metrics, monthly
// trend, category distribution and top rewards with popularity.
func BuildReportRows(s core.Snapshot) [][]interface{} {
	d := s.Data
	rows := [][]interface{}{
		{"Rewards report"},
		{"Generation", s.Generation},
		{"Range", s.Range.Start.Format(time.DateOnly), s.Range.End.Format(time.DateOnly)},
		{"Generated at", s.GeneratedAt.UTC().Format(time.RFC3339)},
		{},
		{"Metrics"},
		{"Total nominations", d.Metrics.TotalNominations},
		{"Approved nominations", d.Metrics.ApprovedNominations},
		{"Active employees", d.Metrics.ActiveEmployees},
		{"Unique rewards", d.Metrics.UniqueRewards},
		{},
		{"Monthly nominations"},
		{"Month", "Nominations"},
	}
	for _, m := range d.MonthlyNominations {
		rows = append(rows, []interface{}{m.Month, m.Nominations})
	}

	rows = append(rows, []interface{}{}, []interface{}{"Reward distribution"}, []interface{}{"Category", "Nominations"})
	for _, c := range d.RewardDistribution {
		rows = append(rows, []interface{}{c.Name, c.Value})
	}

	rows = append(rows, []interface{}{}, []interface{}{"Top rewards"},
		[]interface{}{"Reward ID", "Reward", "Category", "Nominations", "Popularity %"})
	for _, t := range d.TopRewards {
		pop := math.Round(analytics.Popularity(d.TopRewards, t.Count)*10) / 10
		rows = append(rows, []interface{}{t.RewardID, t.RewardName, t.CategoryName, t.Count, pop})
	}
	return rows
}
