//go:build integration

package google

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"
)

// Integration tests need a real spreadsheet shared with a service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_RowLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	creds, err := Credentials(ctx, os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"), os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if err != nil {
		t.Skipf("no credentials: %v", err)
	}
	c, err := New(ctx, spreadsheetID, creds)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s := ports.Schema{
		Sheet:       fmt.Sprintf("it-%d", time.Now().UnixNano()),
		Header:      []string{"fecha", "importe", "descripcion"},
		DateColumns: []int{0},
	}
	if err := c.EnsureHeader(ctx, s); err != nil {
		t.Fatalf("EnsureHeader: %v", err)
	}
	d := core.NewDate(2024, 1, 5)
	if err := c.AppendRow(ctx, s, []any{d.Serial(), int64(100), "a"}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if err := c.AppendRow(ctx, s, []any{d.Serial(), int64(200), "b"}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if err := c.UpdateRow(ctx, s, 2, []any{d.Serial(), int64(150), "a2"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	if err := c.DeleteRow(ctx, s, 3); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	rows, err := c.ReadRows(ctx, s)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "2024-01-05" || rows[0][2] != "a2" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
