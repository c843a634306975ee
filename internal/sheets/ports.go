package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finanzas/internal/core"
)

// ErrRowNotFound is returned when a row offset points past the last row.
var ErrRowNotFound = errors.New("row not found")

// FirstDataRow is the row offset of the first record; row 1 is the header.
const FirstDataRow = 2

// Schema describes one sheet: its tab name, its header row and the
// zero-based columns holding dates.
type Schema struct {
	Sheet       string
	Header      []string
	DateColumns []int
}

// Ports for outbound adapters.
type (
	// Table is a row-numbered sheet with a header row. Row offsets are
	// 1-based and include the header, so the first record lives at
	// FirstDataRow.
	Table interface {
		// EnsureHeader writes the header row when the sheet is empty.
		EnsureHeader(ctx context.Context, s Schema) error
		// ReadRows returns every data row in store order. Trailing empty
		// cells may be missing.
		ReadRows(ctx context.Context, s Schema) ([][]any, error)
		// AppendRow adds one row after the last one and formats its date cells.
		AppendRow(ctx context.Context, s Schema, row []any) error
		// UpdateRow overwrites every cell of the row at rowOffset in one request.
		UpdateRow(ctx context.Context, s Schema, rowOffset int, row []any) error
		// DeleteRow removes the row at rowOffset; later rows shift up by one.
		DeleteRow(ctx context.Context, s Schema, rowOffset int) error
	}

	// RowReplacer is implemented by tables that can be overwritten in bulk,
	// used when mirroring a sheet from another store.
	RowReplacer interface {
		ReplaceRows(ctx context.Context, s Schema, rows [][]any) error
	}
)

// IsDateColumn reports whether col holds dates.
func (s Schema) IsDateColumn(col int) bool {
	for _, c := range s.DateColumns {
		if c == col {
			return true
		}
	}
	return false
}

// LastColumn returns the spreadsheet letter of the last schema column.
func (s Schema) LastColumn() string {
	return ColumnLetter(len(s.Header) - 1)
}

// CheckHeader compares a header row with the schema, ignoring case and
// surrounding spaces. Extra trailing columns are allowed.
func (s Schema) CheckHeader(got []any) error {
	if len(got) < len(s.Header) {
		return fmt.Errorf("%w: sheet %s has %d columns, want %v", core.ErrHeaderMismatch, s.Sheet, len(got), s.Header)
	}
	for i, want := range s.Header {
		if !strings.EqualFold(strings.TrimSpace(CellString(got[i])), want) {
			return fmt.Errorf("%w: sheet %s column %s is %q, want %q", core.ErrHeaderMismatch, s.Sheet, ColumnLetter(i), CellString(got[i]), want)
		}
	}
	return nil
}

// HeaderRow returns the header as a row of cells.
func (s Schema) HeaderRow() []any {
	row := make([]any, len(s.Header))
	for i, h := range s.Header {
		row[i] = h
	}
	return row
}

// ColumnLetter converts a zero-based column index to A, B, ..., Z, AA, ...
func ColumnLetter(col int) string {
	if col < 0 {
		return ""
	}
	var b []byte
	for col >= 0 {
		b = append([]byte{byte('A' + col%26)}, b...)
		col = col/26 - 1
	}
	return string(b)
}

// CellString renders a raw cell value as trimmed text.
func CellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case float64:
		if c == float64(int64(c)) {
			return fmt.Sprintf("%d", int64(c))
		}
		return strings.TrimSpace(fmt.Sprint(c))
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

// PadRow extends row with nil cells up to width.
func PadRow(row []any, width int) []any {
	if len(row) >= width {
		return row
	}
	out := make([]any, width)
	copy(out, row)
	return out
}
