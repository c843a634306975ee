package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"finanzas/internal/sheets"

	_ "modernc.org/sqlite"
)

// DatePattern is the display format recorded for date columns.
const DatePattern = "yyyy-mm-dd"

// Table stores sheets in SQLite. Each row keeps the spreadsheet row offset
// as its position; deleting renumbers later rows so offsets stay dense.
type Table struct {
	db *sql.DB
}

var (
	_ sheets.Table       = (*Table)(nil)
	_ sheets.RowReplacer = (*Table)(nil)
)

// Open creates the database file if needed and applies migrations.
func Open(dbPath string) (*Table, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Table{db: db}, nil
}

func (t *Table) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (t *Table) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

func (t *Table) EnsureHeader(ctx context.Context, s sheets.Schema) error {
	header, err := encodeCells(s.HeaderRow())
	if err != nil {
		return err
	}
	return t.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO sheet_headers (sheet, cells) VALUES (?, ?)`, s.Sheet, header); err != nil {
			return fmt.Errorf("ensure header %s: %w", s.Sheet, err)
		}
		return recordFormats(ctx, tx, s)
	})
}

func (t *Table) ReadRows(ctx context.Context, s sheets.Schema) ([][]any, error) {
	var raw string
	err := t.db.QueryRowContext(ctx, `SELECT cells FROM sheet_headers WHERE sheet = ?`, s.Sheet).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", s.Sheet, err)
	}
	header, err := decodeCells(raw)
	if err != nil {
		return nil, err
	}
	if err := s.CheckHeader(header); err != nil {
		return nil, err
	}

	rs, err := t.db.QueryContext(ctx, `SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY position`, s.Sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows %s: %w", s.Sheet, err)
	}
	defer rs.Close()
	var rows [][]any
	for rs.Next() {
		if err := rs.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row %s: %w", s.Sheet, err)
		}
		row, err := decodeCells(raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, rs.Err()
}

func (t *Table) AppendRow(ctx context.Context, s sheets.Schema, row []any) error {
	cells, err := encodeCells(row)
	if err != nil {
		return err
	}
	return t.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sheet_rows (sheet, position, cells)
			SELECT ?, COALESCE(MAX(position), ?) + 1, ? FROM sheet_rows WHERE sheet = ?`,
			s.Sheet, sheets.FirstDataRow-1, cells, s.Sheet)
		if err != nil {
			return fmt.Errorf("append %s: %w", s.Sheet, err)
		}
		return recordFormats(ctx, tx, s)
	})
}

func (t *Table) UpdateRow(ctx context.Context, s sheets.Schema, rowOffset int, row []any) error {
	cells, err := encodeCells(row)
	if err != nil {
		return err
	}
	res, err := t.db.ExecContext(ctx,
		`UPDATE sheet_rows SET cells = ?, updated_at = CURRENT_TIMESTAMP WHERE sheet = ? AND position = ?`,
		cells, s.Sheet, rowOffset)
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", s.Sheet, rowOffset, err)
	}
	return affectedOne(res, s.Sheet, rowOffset)
}

func (t *Table) DeleteRow(ctx context.Context, s sheets.Schema, rowOffset int) error {
	return t.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ? AND position = ?`, s.Sheet, rowOffset)
		if err != nil {
			return fmt.Errorf("delete %s row %d: %w", s.Sheet, rowOffset, err)
		}
		if err := affectedOne(res, s.Sheet, rowOffset); err != nil {
			return err
		}
		// Shift through negative positions so the primary key never collides.
		if _, err := tx.ExecContext(ctx,
			`UPDATE sheet_rows SET position = -(position - 1) WHERE sheet = ? AND position > ?`, s.Sheet, rowOffset); err != nil {
			return fmt.Errorf("renumber %s: %w", s.Sheet, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sheet_rows SET position = -position WHERE sheet = ? AND position < 0`, s.Sheet); err != nil {
			return fmt.Errorf("renumber %s: %w", s.Sheet, err)
		}
		return nil
	})
}

// ReplaceRows swaps the header and every row of the sheet in one transaction.
func (t *Table) ReplaceRows(ctx context.Context, s sheets.Schema, rows [][]any) error {
	header, err := encodeCells(s.HeaderRow())
	if err != nil {
		return err
	}
	return t.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ?`, s.Sheet); err != nil {
			return fmt.Errorf("clear %s: %w", s.Sheet, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sheet_headers (sheet, cells) VALUES (?, ?)
			ON CONFLICT(sheet) DO UPDATE SET cells = excluded.cells`, s.Sheet, header); err != nil {
			return fmt.Errorf("write header %s: %w", s.Sheet, err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO sheet_rows (sheet, position, cells) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for i, r := range rows {
			cells, err := encodeCells(r)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, s.Sheet, i+sheets.FirstDataRow, cells); err != nil {
				return fmt.Errorf("insert %s row %d: %w", s.Sheet, i+sheets.FirstDataRow, err)
			}
		}
		return recordFormats(ctx, tx, s)
	})
}

// Formats returns the display pattern recorded for each formatted column.
func (t *Table) Formats(ctx context.Context, sheet string) (map[int]string, error) {
	rs, err := t.db.QueryContext(ctx, `SELECT col, pattern FROM sheet_formats WHERE sheet = ?`, sheet)
	if err != nil {
		return nil, fmt.Errorf("read formats %s: %w", sheet, err)
	}
	defer rs.Close()
	out := map[int]string{}
	for rs.Next() {
		var col int
		var pattern string
		if err := rs.Scan(&col, &pattern); err != nil {
			return nil, err
		}
		out[col] = pattern
	}
	return out, rs.Err()
}

func (t *Table) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func recordFormats(ctx context.Context, tx *sql.Tx, s sheets.Schema) error {
	for _, col := range s.DateColumns {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO sheet_formats (sheet, col, pattern) VALUES (?, ?, ?)`,
			s.Sheet, col, DatePattern); err != nil {
			return fmt.Errorf("record format %s: %w", s.Sheet, err)
		}
	}
	return nil
}

func affectedOne(res sql.Result, sheet string, rowOffset int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s row %d", sheets.ErrRowNotFound, sheet, rowOffset)
	}
	return nil
}

func encodeCells(row []any) (string, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encode row: %w", err)
	}
	return string(b), nil
}

// decodeCells reads whole numbers back as int64 so amounts past 2^53 keep
// every digit.
func decodeCells(raw string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var row []any
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	for i, v := range row {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if whole, err := n.Int64(); err == nil {
			row[i] = whole
			continue
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("decode row: cell %d: %w", i, err)
		}
		row[i] = f
	}
	return row, nil
}
