package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"finanzas/internal/cache"
	ports "finanzas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	writeFields    = "userEnteredValue,userEnteredFormat.numberFormat"
	sheetIDTTL     = 30 * time.Minute
	sheetIDEntries = 32
)

var ErrSheetNotFound = errors.New("sheet not found")

// Client stores sheets as tabs of one Google spreadsheet. Every mutation
// is a single batchUpdate so a row is never left half written.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetIDs      *cache.LRUCache[int64]
}

// Ensure interface conformance
var (
	_ ports.Table       = (*Client)(nil)
	_ ports.RowReplacer = (*Client)(nil)
)

// Credentials builds the client option for a service account, preferring
// inline JSON over a key file. GOOGLE_APPLICATION_CREDENTIALS is the last
// fallback.
func Credentials(ctx context.Context, inlineJSON, file string) (goption.ClientOption, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	if inlineJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inlineJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials", "json_length", len(inlineJSON))
		return goption.WithCredentialsJSON([]byte(inlineJSON)), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(b))
		return goption.WithCredentialsJSON(b), nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// New connects to the spreadsheet. opts carry credentials, or an endpoint
// override in tests.
func New(ctx context.Context, spreadsheetID string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	opts = append([]goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetIDs:      cache.NewLRUCache[int64](sheetIDEntries, sheetIDTTL),
	}, nil
}

// SheetIDCache exposes the tab id cache so it can be swept.
func (c *Client) SheetIDCache() *cache.LRUCache[int64] { return c.sheetIDs }

// Ping reads the spreadsheet id back, checking credentials and access.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("reach spreadsheet: %w", err)
	}
	return nil
}

func (c *Client) EnsureHeader(ctx context.Context, s ports.Schema) error {
	id, err := c.sheetID(ctx, s.Sheet)
	if errors.Is(err, ErrSheetNotFound) {
		id, err = c.addSheet(ctx, s.Sheet)
	}
	if err != nil {
		return err
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(s.Sheet, "1:1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", s.Sheet, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	req := &gsheet.Request{UpdateCells: &gsheet.UpdateCellsRequest{
		Start:  &gsheet.GridCoordinate{SheetId: id, ForceSendFields: []string{"SheetId"}},
		Rows:   []*gsheet.RowData{headerRow(s)},
		Fields: "userEnteredValue",
	}}
	return c.batch(ctx, s.Sheet, req)
}

func (c *Client) ReadRows(ctx context.Context, s ports.Schema) ([][]any, error) {
	rng := a1(s.Sheet, "A1:"+s.LastColumn())
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	if err := s.CheckHeader(resp.Values[0]); err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(resp.Values)-1)
	for _, r := range resp.Values[1:] {
		rows = append(rows, r)
	}
	return rows, nil
}

func (c *Client) AppendRow(ctx context.Context, s ports.Schema, row []any) error {
	id, err := c.sheetID(ctx, s.Sheet)
	if err != nil {
		return err
	}
	req := &gsheet.Request{AppendCells: &gsheet.AppendCellsRequest{
		SheetId:         id,
		Rows:            []*gsheet.RowData{rowData(s, row)},
		Fields:          writeFields,
		ForceSendFields: []string{"SheetId"},
	}}
	return c.batch(ctx, s.Sheet, req)
}

func (c *Client) UpdateRow(ctx context.Context, s ports.Schema, rowOffset int, row []any) error {
	if rowOffset < ports.FirstDataRow {
		return fmt.Errorf("update %s: row %d is not a data row", s.Sheet, rowOffset)
	}
	id, err := c.sheetID(ctx, s.Sheet)
	if err != nil {
		return err
	}
	req := &gsheet.Request{UpdateCells: &gsheet.UpdateCellsRequest{
		Start: &gsheet.GridCoordinate{
			SheetId:         id,
			RowIndex:        int64(rowOffset - 1),
			ForceSendFields: []string{"SheetId"},
		},
		Rows:   []*gsheet.RowData{rowData(s, ports.PadRow(row, len(s.Header)))},
		Fields: writeFields,
	}}
	return c.batch(ctx, s.Sheet, req)
}

func (c *Client) DeleteRow(ctx context.Context, s ports.Schema, rowOffset int) error {
	if rowOffset < ports.FirstDataRow {
		return fmt.Errorf("delete %s: row %d is not a data row", s.Sheet, rowOffset)
	}
	id, err := c.sheetID(ctx, s.Sheet)
	if err != nil {
		return err
	}
	return c.batch(ctx, s.Sheet, deleteRowRequest(id, rowOffset))
}

// ReplaceRows clears the tab and writes the header plus rows in one batch.
func (c *Client) ReplaceRows(ctx context.Context, s ports.Schema, rows [][]any) error {
	id, err := c.sheetID(ctx, s.Sheet)
	if errors.Is(err, ErrSheetNotFound) {
		id, err = c.addSheet(ctx, s.Sheet)
	}
	if err != nil {
		return err
	}
	data := make([]*gsheet.RowData, 0, len(rows)+1)
	data = append(data, headerRow(s))
	for _, r := range rows {
		data = append(data, rowData(s, ports.PadRow(r, len(s.Header))))
	}
	wipe := &gsheet.Request{UpdateCells: &gsheet.UpdateCellsRequest{
		Range:  &gsheet.GridRange{SheetId: id, ForceSendFields: []string{"SheetId"}},
		Fields: "userEnteredValue",
	}}
	write := &gsheet.Request{UpdateCells: &gsheet.UpdateCellsRequest{
		Start:  &gsheet.GridCoordinate{SheetId: id, ForceSendFields: []string{"SheetId"}},
		Rows:   data,
		Fields: writeFields,
	}}
	return c.batch(ctx, s.Sheet, wipe, write)
}

func (c *Client) batch(ctx context.Context, sheet string, reqs ...*gsheet.Request) error {
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch update %s: %w", sheet, err)
	}
	return nil
}

// sheetID resolves a tab title to its numeric id. The whole title map is
// cached on a miss.
func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	if id, ok := c.sheetIDs.Get(title); ok {
		return id, nil
	}
	sp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	found, id := false, int64(0)
	for _, sh := range sp.Sheets {
		if sh.Properties == nil {
			continue
		}
		c.sheetIDs.Set(sh.Properties.Title, sh.Properties.SheetId)
		if sh.Properties.Title == title {
			found, id = true, sh.Properties.SheetId
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrSheetNotFound, title)
	}
	return id, nil
}

func (c *Client) addSheet(ctx context.Context, title string) (int64, error) {
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{AddSheet: &gsheet.AddSheetRequest{
			Properties: &gsheet.SheetProperties{Title: title},
		}}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %s: empty reply", title)
	}
	id := resp.Replies[0].AddSheet.Properties.SheetId
	c.sheetIDs.Set(title, id)
	slog.InfoContext(ctx, "Created sheet", "sheet", title, "sheet_id", id)
	return id, nil
}

// a1 quotes a tab title for A1 notation.
func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}
