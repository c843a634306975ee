package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"finanzas/internal/core"
	"finanzas/internal/sheets"
)

var testSchema = sheets.Schema{
	Sheet:       "Movimientos",
	Header:      []string{"fecha", "nombre", "importe", "tipo_movimiento"},
	DateColumns: []int{0},
}

func TestStoreAppendUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.EnsureHeader(ctx, testSchema); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	for _, name := range []string{"a", "b", "c"} {
		if err := s.AppendRow(ctx, testSchema, []any{"2024-01-01", name, 1, "X"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if f, ok := s.Format("Movimientos", 0, 4); !ok || f != DateFormat {
		t.Fatalf("expected date format on A4, got %q %v", f, ok)
	}
	if _, ok := s.Format("Movimientos", 1, 4); ok {
		t.Fatalf("non-date column must not be formatted")
	}

	if err := s.UpdateRow(ctx, testSchema, 3, []any{"2024-02-02", "B", 2, "Y"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.DeleteRow(ctx, testSchema, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, err := s.ReadRows(ctx, testSchema)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 || rows[0][1] != "B" || rows[1][1] != "c" {
		t.Fatalf("unexpected rows after update/delete: %v", rows)
	}
	if _, ok := s.Format("Movimientos", 0, 4); ok {
		t.Fatalf("format of the removed last row should shift away")
	}

	if err := s.DeleteRow(ctx, testSchema, 4); !errors.Is(err, sheets.ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
	if err := s.UpdateRow(ctx, testSchema, 1, []any{}); !errors.Is(err, sheets.ErrRowNotFound) {
		t.Fatalf("header row must not be updatable, got %v", err)
	}
}

func TestStoreHeaderMismatch(t *testing.T) {
	s := New()
	s.SetHeader("Movimientos", "date", "name", "amount", "category")
	_, err := s.ReadRows(context.Background(), testSchema)
	if !errors.Is(err, core.ErrHeaderMismatch) {
		t.Fatalf("expected ErrHeaderMismatch, got %v", err)
	}
}

func TestStoreFailHook(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.EnsureHeader(ctx, testSchema)
	boom := errors.New("boom")
	s.Fail = func(op string) error {
		if op == "append" {
			return boom
		}
		return nil
	}
	if err := s.AppendRow(ctx, testSchema, []any{"2024-01-01", "a", 1, "X"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	rows, _ := s.ReadRows(ctx, testSchema)
	if len(rows) != 0 {
		t.Fatalf("failed append must not add rows: %v", rows)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	content := "fecha,nombre,importe,tipo_movimiento\n2024-01-05,Rent,500000,Gastos fijos\n\n2024-01-10,Salary,2000000,Ingresos\n"
	if err := os.WriteFile(filepath.Join(dir, "Movimientos.csv"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	other := sheets.Schema{Sheet: "Ahorros", Header: []string{"fecha", "importe", "descripcion"}}

	s, err := NewFromFiles(dir, testSchema, other)
	if err != nil {
		t.Fatalf("NewFromFiles: %v", err)
	}
	rows, err := s.ReadRows(context.Background(), testSchema)
	if err != nil || len(rows) != 2 {
		t.Fatalf("unexpected seeded rows: %v err=%v", rows, err)
	}
	if rows[1][3] != "Ingresos" {
		t.Fatalf("unexpected second row: %v", rows[1])
	}
	rows, err = s.ReadRows(context.Background(), other)
	if err != nil || len(rows) != 0 {
		t.Fatalf("missing seed should read empty: %v err=%v", rows, err)
	}
}

func TestReplaceRows(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.ReplaceRows(ctx, testSchema, [][]any{{"2024-01-01", "x", 5, "Y"}})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows, err := s.ReadRows(ctx, testSchema)
	if err != nil || len(rows) != 1 {
		t.Fatalf("unexpected rows: %v err=%v", rows, err)
	}
	if f, ok := s.Format("Movimientos", 0, 2); !ok || f != DateFormat {
		t.Fatalf("replace should format date cells")
	}
}
