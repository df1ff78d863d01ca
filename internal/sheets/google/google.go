// Package google mirrors the spend journal into a Google Sheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendir/internal/core"
	ports "spendir/internal/sheets"
)

// Journal row layout: A cell, B message id, C date, D time, E author,
// F amount, G currency, H amount in base currency, I note, J tags.
const journalColumns = "A:J"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	zone          *time.Location
}

// Ensure interface conformance
var _ ports.JournalWriter = (*Client)(nil)

// New creates a Sheets client using Service Account credentials from
// the environment: GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string, zone *time.Location) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Journal"
	}
	if zone == nil {
		zone = time.UTC
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		zone:          zone,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

func (c *Client) Append(ctx context.Context, s core.Spend) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	// Find the next empty row from the sheet dimensions.
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.sheetName, err)
	}
	nextRow := len(resp.Values) + 1

	created := s.CreatedAt.In(c.zone)
	row := []any{
		strconv.FormatInt(s.Cell, 10),
		strconv.FormatInt(s.MessageID, 10),
		created.Format("02.01.2006"),
		created.Format("15:04"),
		s.Author,
		s.Amount.String(),
		s.Currency,
		s.AmountBase.String(),
		s.Note,
		strings.Join(s.Tags, " "),
	}

	dataRange := fmt.Sprintf("%s!A%d:J%d", c.sheetName, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	return dataRange, nil
}

// Delete clears the journal row whose first two columns match the
// spend identity. Missing rows are ignored.
func (c *Client) Delete(ctx context.Context, cell, messageID int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:B", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	wantCell := strconv.FormatInt(cell, 10)
	wantMsg := strconv.FormatInt(messageID, 10)
	for i, row := range resp.Values {
		if len(row) < 2 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) != wantCell || strings.TrimSpace(fmt.Sprint(row[1])) != wantMsg {
			continue
		}

		clearRange := fmt.Sprintf("%s!A%d:J%d", c.sheetName, i+1, i+1)
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clear %s: %w", clearRange, err)
		}
		return nil
	}

	return nil
}
