package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finanzas/internal/sheets"
)

// DateFormat is the display pattern recorded for date cells.
const DateFormat = "yyyy-mm-dd"

var ErrSheetNotFound = errors.New("sheet not found")

type sheet struct {
	header []any
	rows   [][]any
}

// Store is an in-process Table. It mimics a spreadsheet: row 1 is the
// header and deleting a row shifts every later row up by one.
type Store struct {
	mu      sync.Mutex
	sheets  map[string]*sheet
	formats map[string]string

	// Fail, when set, is consulted before every operation; a non-nil
	// result aborts the operation without touching the data.
	Fail func(op string) error
}

var (
	_ sheets.Table       = (*Store)(nil)
	_ sheets.RowReplacer = (*Store)(nil)
)

func New() *Store {
	return &Store{sheets: map[string]*sheet{}, formats: map[string]string{}}
}

// NewFromFiles seeds one sheet per schema from "<sheet>.csv" in base. The
// first CSV line is the header. Missing files leave the sheet empty.
func NewFromFiles(base string, schemas ...sheets.Schema) (*Store, error) {
	s := New()
	for _, sc := range schemas {
		records, err := readCSV(filepath.Join(base, sc.Sheet+".csv"))
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			continue
		}
		sh := &sheet{header: toCells(records[0])}
		for _, rec := range records[1:] {
			if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
				continue
			}
			sh.rows = append(sh.rows, toCells(rec))
		}
		s.sheets[sc.Sheet] = sh
	}
	return s, nil
}

func (s *Store) EnsureHeader(_ context.Context, sc sheets.Schema) error {
	if err := s.fail("ensure_header"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[sc.Sheet]
	if !ok {
		sh = &sheet{}
		s.sheets[sc.Sheet] = sh
	}
	if len(sh.header) == 0 {
		sh.header = sc.HeaderRow()
	}
	return nil
}

func (s *Store) ReadRows(_ context.Context, sc sheets.Schema) ([][]any, error) {
	if err := s.fail("read"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[sc.Sheet]
	if !ok || len(sh.header) == 0 {
		return nil, nil
	}
	if err := sc.CheckHeader(sh.header); err != nil {
		return nil, err
	}
	out := make([][]any, len(sh.rows))
	for i, r := range sh.rows {
		out[i] = append([]any(nil), r...)
	}
	return out, nil
}

func (s *Store) AppendRow(_ context.Context, sc sheets.Schema, row []any) error {
	if err := s.fail("append"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[sc.Sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, sc.Sheet)
	}
	sh.rows = append(sh.rows, append([]any(nil), row...))
	s.formatDates(sc, len(sh.rows)+1)
	return nil
}

func (s *Store) UpdateRow(_ context.Context, sc sheets.Schema, rowOffset int, row []any) error {
	if err := s.fail("update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.rowSheet(sc.Sheet, rowOffset)
	if err != nil {
		return err
	}
	sh.rows[rowOffset-sheets.FirstDataRow] = append([]any(nil), row...)
	s.formatDates(sc, rowOffset)
	return nil
}

func (s *Store) DeleteRow(_ context.Context, sc sheets.Schema, rowOffset int) error {
	if err := s.fail("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.rowSheet(sc.Sheet, rowOffset)
	if err != nil {
		return err
	}
	i := rowOffset - sheets.FirstDataRow
	sh.rows = append(sh.rows[:i], sh.rows[i+1:]...)

	// Formats follow their rows up, like a spreadsheet.
	last := len(sh.rows) + sheets.FirstDataRow
	for _, col := range sc.DateColumns {
		for r := rowOffset; r <= last; r++ {
			from := cellKey(sc.Sheet, col, r+1)
			to := cellKey(sc.Sheet, col, r)
			if f, ok := s.formats[from]; ok {
				s.formats[to] = f
			} else {
				delete(s.formats, to)
			}
		}
	}
	return nil
}

// ReplaceRows overwrites the header and every data row of the sheet.
func (s *Store) ReplaceRows(_ context.Context, sc sheets.Schema, rows [][]any) error {
	if err := s.fail("replace"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sh := &sheet{header: sc.HeaderRow()}
	for i, r := range rows {
		sh.rows = append(sh.rows, append([]any(nil), r...))
		s.formatDates(sc, i+sheets.FirstDataRow)
	}
	s.sheets[sc.Sheet] = sh
	return nil
}

// Format returns the display format applied to a cell, if any.
func (s *Store) Format(sheetName string, col, rowOffset int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.formats[cellKey(sheetName, col, rowOffset)]
	return f, ok
}

// SetHeader replaces the header row, letting tests simulate a foreign sheet.
func (s *Store) SetHeader(sheetName string, header ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[sheetName]
	if !ok {
		sh = &sheet{}
		s.sheets[sheetName] = sh
	}
	sh.header = toCells(header)
}

// PutRow appends a raw row without any formatting, as another client would.
func (s *Store) PutRow(sheetName string, row ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok := s.sheets[sheetName]; ok {
		sh.rows = append(sh.rows, row)
	}
}

func (s *Store) rowSheet(name string, rowOffset int) (*sheet, error) {
	sh, ok := s.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	if rowOffset < sheets.FirstDataRow || rowOffset-sheets.FirstDataRow >= len(sh.rows) {
		return nil, fmt.Errorf("%w: %s row %d", sheets.ErrRowNotFound, name, rowOffset)
	}
	return sh, nil
}

func (s *Store) formatDates(sc sheets.Schema, rowOffset int) {
	for _, col := range sc.DateColumns {
		s.formats[cellKey(sc.Sheet, col, rowOffset)] = DateFormat
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

func cellKey(sheetName string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", sheetName, sheets.ColumnLetter(col), row)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open seed %s: %w", path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return records, nil
}

func toCells(rec []string) []any {
	out := make([]any, len(rec))
	for i, v := range rec {
		out[i] = v
	}
	return out
}
