package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/starland/ledger/internal/config"
)

// Repository appends report rows to spreadsheet tabs.
type Repository interface {
	AppendRows(ctx context.Context, tab string, rows [][]interface{}) error
}

// GoogleSheetRepository implements Repository using the Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// AppendRows appends rows below the existing content of tab, creating the tab when missing.
func (r *GoogleSheetRepository) AppendRows(ctx context.Context, tab string, rows [][]interface{}) error {
	if tab == "" {
		return fmt.Errorf("tab must not be empty")
	}
	if len(rows) == 0 {
		return nil
	}

	if err := r.ensureTab(ctx, tab); err != nil {
		return err
	}

	sheetRange := fmt.Sprintf("'%s'!A1", tab)
	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, &sheetsapi.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append rows into %s: %w", tab, err)
	}

	r.logger.Debug("rows appended to sheet", zap.String("tab", tab), zap.Int("rows", len(rows)))
	return nil
}

func (r *GoogleSheetRepository) ensureTab(ctx context.Context, tab string) error {
	doc, err := r.service.Spreadsheets.Get(r.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet tabs: %w", err)
	}
	for _, s := range doc.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}

	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{Properties: &sheetsapi.SheetProperties{Title: tab}},
		}},
	}
	if _, err := r.service.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create tab %s: %w", tab, err)
	}
	r.logger.Info("spreadsheet tab created", zap.String("tab", tab))
	return nil
}
