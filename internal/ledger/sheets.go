package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/NgigiN/spendbot/internal/clock"
)

// Column layout of the expense sheet. Header row occupies row 1.
var header = []any{"Date", "Category", "Amount", "Description", "Timestamp"}

// SheetsConfig holds configuration for the Google Sheets backend.
type SheetsConfig struct {
	// SpreadsheetID is the ID of an existing spreadsheet.
	SpreadsheetID string
	// SheetName is the tab holding expenses.
	SheetName string
	// CredentialsFile is the path to a service account key JSON file.
	CredentialsFile string
}

// SheetsStore persists expenses to one tab of a Google Sheet, one row per
// record.
type SheetsStore struct {
	service       *sheets.Service
	logger        *slog.Logger
	spreadsheetID string
	sheetName     string
	sheetID       int64
}

// NewSheetsStore builds the Sheets client, locates the configured tab and
// makes sure the header row is in place.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, logger *slog.Logger) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" || cfg.SheetName == "" {
		return nil, fmt.Errorf("spreadsheet ID and sheet name are required")
	}

	jsonKey, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading service account key: %w", err)
	}
	jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}

	service, err := sheets.NewService(ctx, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	s := &SheetsStore{
		service:       service,
		logger:        logger.With("component", "sheets_ledger"),
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}

	// Startup-only retry: rate limits during boot should not kill the bot.
	err = retry.Do(
		func() error { return s.init(ctx) },
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited during init, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(30*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sheets ledger ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName,
	)
	return s, nil
}

func (s *SheetsStore) init(ctx context.Context) error {
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("fetching spreadsheet: %w", err)
	}

	found := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == s.sheetName {
			s.sheetID = sheet.Properties.SheetId
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("sheet %q not found in spreadsheet", s.sheetName)
	}

	headerRange := fmt.Sprintf("%s!A1:E1", s.sheetName)
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading header row: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}

	headerReq := sheets.ValueRange{Values: [][]any{header}}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, &headerReq).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("writing header row: %w", err)
	}
	s.logger.Info("wrote header row")
	return nil
}

// Append implements Store.
func (s *SheetsStore) Append(ctx context.Context, rec Record) error {
	writeRange := fmt.Sprintf("%s!A2:E2", s.sheetName)
	writeReq := sheets.ValueRange{Values: [][]any{recordValues(rec)}}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, writeRange, &writeReq).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending row: %w", err)
	}

	s.logger.Info("appended expense", "category", rec.Category, "amount", rec.Amount)
	return nil
}

// ListSince implements Store. Rows missing date, category or amount are
// skipped; missing description or timestamp cells are treated as empty.
func (s *SheetsStore) ListSince(ctx context.Context, days int) ([]Row, error) {
	readRange := fmt.Sprintf("%s!A2:E", s.sheetName)
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	cutoff := clock.Now().AddDate(0, 0, -days)
	var rows []Row
	for i, cells := range resp.Values {
		rec, ok := recordFromCells(cells)
		if !ok {
			continue
		}
		if rec.Time().Before(cutoff) {
			continue
		}
		// Ref is the 1-based sheet row number; header is row 1.
		rows = append(rows, Row{Record: rec, Ref: Ref(i + 2)})
	}
	return rows, nil
}

// UpdateAt implements Store.
func (s *SheetsStore) UpdateAt(ctx context.Context, ref Ref, rec Record) error {
	writeRange := fmt.Sprintf("%s!A%d:E%d", s.sheetName, ref, ref)
	writeReq := sheets.ValueRange{Values: [][]any{recordValues(rec)}}

	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, &writeReq).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating row %d: %w", ref, err)
	}

	s.logger.Info("updated expense", "row", ref, "category", rec.Category)
	return nil
}

// DeleteAt implements Store.
func (s *SheetsStore) DeleteAt(ctx context.Context, ref Ref) error {
	if ref < 2 {
		return ErrRowVanished
	}
	batch := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    s.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(ref) - 1,
					EndIndex:   int64(ref),
				},
			},
		}},
	}

	_, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, batch).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("deleting row %d: %w", ref, err)
	}

	s.logger.Info("deleted expense", "row", ref)
	return nil
}

func recordValues(rec Record) []any {
	return []any{rec.Date, rec.Category, amountCell(rec.Amount), rec.Description, rec.Timestamp}
}

func amountCell(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// recordFromCells maps one sheet row to a Record. Date, category and amount
// are required for the row to count as a record.
func recordFromCells(cells []any) (Record, bool) {
	if len(cells) < 3 {
		return Record{}, false
	}
	date := cellString(cells[0])
	category := cellString(cells[1])
	amountStr := strings.TrimPrefix(cellString(cells[2]), "$")
	if date == "" || category == "" || amountStr == "" {
		return Record{}, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(amountStr, ",", ""), 64)
	if err != nil {
		return Record{}, false
	}

	rec := Record{Date: date, Category: category, Amount: amount}
	if len(cells) > 3 {
		rec.Description = cellString(cells[3])
	}
	if len(cells) > 4 {
		rec.Timestamp = cellString(cells[4])
	}
	return rec, true
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
