package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var txSchema = ports.Schema{
	Sheet:       "Movimientos",
	Header:      []string{"fecha", "nombre", "importe", "tipo_movimiento"},
	DateColumns: []int{0},
}

// fakeSheets serves the subset of the Sheets REST API the client uses.
type fakeSheets struct {
	mu        sync.Mutex
	tabs      map[string]int64
	values    [][]any
	metaCalls int
	ranges    []string
	batches   []*gsheet.BatchUpdateSpreadsheetRequest
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.batches = append(f.batches, &req)
		resp := gsheet.BatchUpdateSpreadsheetResponse{SpreadsheetId: "sid"}
		for _, rq := range req.Requests {
			reply := &gsheet.Response{}
			if rq.AddSheet != nil {
				f.tabs[rq.AddSheet.Properties.Title] = 99
				reply.AddSheet = &gsheet.AddSheetResponse{Properties: &gsheet.SheetProperties{SheetId: 99, Title: rq.AddSheet.Properties.Title}}
			}
			resp.Replies = append(resp.Replies, reply)
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.Contains(r.URL.Path, "/values/"):
		f.ranges = append(f.ranges, r.URL.Path[strings.Index(r.URL.Path, "/values/")+len("/values/"):])
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.values})
	case r.Method == http.MethodGet:
		f.metaCalls++
		var sheets []map[string]any
		for title, id := range f.tabs {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": id, "title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid", "sheets": sheets})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	if f.tabs == nil {
		f.tabs = map[string]int64{"Movimientos": 7}
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), "sid",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := Credentials(context.Background(), "", "")
	assert.ErrorContains(t, err, "missing service account credentials")

	_, err = Credentials(context.Background(), "", "/does/not/exist.json")
	assert.ErrorContains(t, err, "read service account file")

	opt, err := Credentials(context.Background(), `{"type":"service_account"}`, "")
	require.NoError(t, err)
	assert.NotNil(t, opt)
}

func TestReadRowsSkipsHeader(t *testing.T) {
	f := &fakeSheets{values: [][]any{
		{"Fecha", "Nombre", "Importe", "Tipo_Movimiento"},
		{"2024-01-05", "Rent", 500000, "Gastos fijos"},
		{"2024-01-10", "Salary", 2000000},
	}}
	c := newTestClient(t, f)
	rows, err := c.ReadRows(context.Background(), txSchema)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Rent", rows[0][1])
	assert.Equal(t, float64(500000), rows[0][2])
	assert.Len(t, rows[1], 3, "trailing empty cells are omitted by the API")
	assert.Equal(t, []string{"'Movimientos'!A1:D"}, f.ranges)
}

func TestReadRowsEmptySheet(t *testing.T) {
	c := newTestClient(t, &fakeSheets{})
	rows, err := c.ReadRows(context.Background(), txSchema)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadRowsHeaderMismatch(t *testing.T) {
	c := newTestClient(t, &fakeSheets{values: [][]any{{"date", "name", "amount", "kind"}}})
	_, err := c.ReadRows(context.Background(), txSchema)
	assert.True(t, errors.Is(err, core.ErrHeaderMismatch), "got %v", err)
}

func TestAppendRowIsOneBatchWithDateFormat(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	serial := core.NewDate(2024, 1, 5).Serial()
	err := c.AppendRow(context.Background(), txSchema, []any{serial, "Rent", int64(500000), "Gastos fijos"})
	require.NoError(t, err)

	require.Len(t, f.batches, 1)
	require.Len(t, f.batches[0].Requests, 1)
	ac := f.batches[0].Requests[0].AppendCells
	require.NotNil(t, ac)
	assert.Equal(t, int64(7), ac.SheetId)
	assert.Equal(t, writeFields, ac.Fields)

	cells := ac.Rows[0].Values
	require.Len(t, cells, 4)
	assert.Equal(t, float64(45296), *cells[0].UserEnteredValue.NumberValue)
	assert.Equal(t, "DATE", cells[0].UserEnteredFormat.NumberFormat.Type)
	assert.Equal(t, DatePattern, cells[0].UserEnteredFormat.NumberFormat.Pattern)
	assert.Equal(t, "Rent", *cells[1].UserEnteredValue.StringValue)
	assert.Equal(t, float64(500000), *cells[2].UserEnteredValue.NumberValue)
	assert.Nil(t, cells[1].UserEnteredFormat)
}

func TestUpdateRowWritesWholeRow(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	err := c.UpdateRow(context.Background(), txSchema, 3, []any{"2024-02-01", "Bus", int64(3000)})
	require.NoError(t, err)

	require.Len(t, f.batches, 1)
	uc := f.batches[0].Requests[0].UpdateCells
	require.NotNil(t, uc)
	assert.Equal(t, int64(2), uc.Start.RowIndex)
	assert.Equal(t, int64(0), uc.Start.ColumnIndex)
	cells := uc.Rows[0].Values
	require.Len(t, cells, 4, "row is padded so stale cells are cleared")
	assert.Equal(t, core.NewDate(2024, 2, 1).Serial(), *cells[0].UserEnteredValue.NumberValue)

	assert.Error(t, c.UpdateRow(context.Background(), txSchema, 1, nil))
}

func TestDeleteRowRemovesExactlyOneRow(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	require.NoError(t, c.DeleteRow(context.Background(), txSchema, 3))

	dd := f.batches[0].Requests[0].DeleteDimension
	require.NotNil(t, dd)
	assert.Equal(t, "ROWS", dd.Range.Dimension)
	assert.Equal(t, int64(2), dd.Range.StartIndex)
	assert.Equal(t, int64(3), dd.Range.EndIndex)
	assert.Equal(t, int64(7), dd.Range.SheetId)
}

func TestSheetIDIsCached(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	ctx := context.Background()
	require.NoError(t, c.AppendRow(ctx, txSchema, []any{"2024-01-01", "a", 1, "X"}))
	require.NoError(t, c.DeleteRow(ctx, txSchema, 2))
	assert.Equal(t, 1, f.metaCalls)

	c.SheetIDCache().Purge()
	require.NoError(t, c.DeleteRow(ctx, txSchema, 2))
	assert.Equal(t, 2, f.metaCalls)

	err := c.AppendRow(ctx, ports.Schema{Sheet: "Nope", Header: []string{"x"}}, []any{"y"})
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestPing(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 1, f.metaCalls)
}

func TestEnsureHeaderCreatesMissingSheet(t *testing.T) {
	f := &fakeSheets{tabs: map[string]int64{}}
	c := newTestClient(t, f)
	require.NoError(t, c.EnsureHeader(context.Background(), txSchema))

	require.Len(t, f.batches, 2)
	assert.Equal(t, "Movimientos", f.batches[0].Requests[0].AddSheet.Properties.Title)
	uc := f.batches[1].Requests[0].UpdateCells
	require.NotNil(t, uc)
	assert.Equal(t, int64(99), uc.Start.SheetId)
	assert.Equal(t, "fecha", *uc.Rows[0].Values[0].UserEnteredValue.StringValue)
}

func TestEnsureHeaderKeepsExistingHeader(t *testing.T) {
	f := &fakeSheets{values: [][]any{{"fecha", "nombre", "importe", "tipo_movimiento"}}}
	c := newTestClient(t, f)
	require.NoError(t, c.EnsureHeader(context.Background(), txSchema))
	assert.Empty(t, f.batches)
}

func TestReplaceRows(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	rows := [][]any{{"2024-01-05", "Rent", float64(500000), "Gastos fijos"}}
	require.NoError(t, c.ReplaceRows(context.Background(), txSchema, rows))

	require.Len(t, f.batches, 1)
	reqs := f.batches[0].Requests
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].UpdateCells.Rows)
	assert.Equal(t, "userEnteredValue", reqs[0].UpdateCells.Fields)
	require.Len(t, reqs[1].UpdateCells.Rows, 2)
	assert.Equal(t, "fecha", *reqs[1].UpdateCells.Rows[0].Values[0].UserEnteredValue.StringValue)
	assert.Equal(t, float64(45296), *reqs[1].UpdateCells.Rows[1].Values[0].UserEnteredValue.NumberValue)
}

func TestDateSerialAcceptsWholeNumbers(t *testing.T) {
	for _, v := range []any{float64(45296), int64(45296), 45296, "2024-01-05"} {
		got, ok := dateSerial(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, float64(45296), got, "%T", v)
	}
	_, ok := dateSerial(true)
	assert.False(t, ok)
}

func TestA1QuotesTitles(t *testing.T) {
	assert.Equal(t, "'Mis Metas'!A1:D", a1("Mis Metas", "A1:D"))
	assert.Equal(t, "'O''Brien'!1:1", a1("O'Brien", "1:1"))
}
