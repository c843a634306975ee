package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
)

// Record is any entity that can check its own fields.
type Record interface {
	Validate() error
}

// Snapshot is one full read of a sheet. Records are in store order, so
// Records[i] lives at sheet row i+sheets.FirstDataRow. Token fingerprints
// the rows that produced it.
type Snapshot[T any] struct {
	Records []T
	Token   string
}

// ChangeFunc is told about every successful mutation. rowOffset is 0 for
// appends.
type ChangeFunc func(ctx context.Context, sheet, op string, rowOffset int)

// Repository gives index-addressed CRUD over one sheet. It never caches
// records: every call goes to the table.
type Repository[T Record] struct {
	table    sheets.Table
	schema   sheets.Schema
	codec    Codec[T]
	logger   *log.Logger
	onChange ChangeFunc
}

func NewRepository[T Record](table sheets.Table, schema sheets.Schema, codec Codec[T], logger *log.Logger) *Repository[T] {
	if logger == nil {
		logger = log.Discard()
	}
	return &Repository[T]{
		table:  table,
		schema: schema,
		codec:  codec,
		logger: logger.WithComponent(log.ComponentLedger),
	}
}

// OnChange registers fn to run after each successful mutation.
func (r *Repository[T]) OnChange(fn ChangeFunc) { r.onChange = fn }

func (r *Repository[T]) Schema() sheets.Schema { return r.schema }

// LoadAll reads and decodes every row. Any failure yields an empty snapshot
// and a *core.LoadError.
func (r *Repository[T]) LoadAll(ctx context.Context) (Snapshot[T], error) {
	rows, err := r.table.ReadRows(ctx, r.schema)
	if err != nil {
		r.logger.WarnContext(ctx, "Load failed", log.FieldSheet, r.schema.Sheet, log.FieldError, err)
		return Snapshot[T]{}, &core.LoadError{Sheet: r.schema.Sheet, Err: err}
	}
	records := make([]T, 0, len(rows))
	for i, row := range rows {
		rec, err := r.codec.Decode(row)
		if err != nil {
			offset := i + sheets.FirstDataRow
			r.logger.WarnContext(ctx, "Unparseable row",
				log.FieldSheet, r.schema.Sheet,
				log.FieldRowOffset, offset,
				log.FieldError, err)
			return Snapshot[T]{}, &core.LoadError{Sheet: r.schema.Sheet, Row: offset, Err: err}
		}
		records = append(records, rec)
	}
	r.logger.DebugContext(ctx, "Loaded records", log.FieldSheet, r.schema.Sheet, log.FieldCount, len(records))
	return Snapshot[T]{Records: records, Token: fingerprint(rows)}, nil
}

// Create appends rec as a new last row.
func (r *Repository[T]) Create(ctx context.Context, rec T) error {
	if err := rec.Validate(); err != nil {
		return &core.ValidationError{Sheet: r.schema.Sheet, Err: err}
	}
	if err := r.table.AppendRow(ctx, r.schema, r.codec.Encode(rec)); err != nil {
		r.logger.LogError(ctx, "Append failed", err, log.OpCreate, log.NewFields().WithRow(r.schema.Sheet, -1))
		return &core.SaveError{Sheet: r.schema.Sheet, Op: log.OpCreate, Err: err}
	}
	r.logger.InfoContext(ctx, "Record created", log.FieldSheet, r.schema.Sheet, log.FieldOperation, log.OpCreate)
	r.changed(ctx, log.OpCreate, 0)
	return nil
}

// Update overwrites the record at index. token must come from the snapshot
// the index was read from.
func (r *Repository[T]) Update(ctx context.Context, token string, index int, rec T) error {
	if err := rec.Validate(); err != nil {
		return &core.ValidationError{Sheet: r.schema.Sheet, Err: err}
	}
	offset, err := r.locate(ctx, token, index)
	if err != nil {
		return &core.SaveError{Sheet: r.schema.Sheet, Op: log.OpUpdate, Err: err}
	}
	if err := r.table.UpdateRow(ctx, r.schema, offset, r.codec.Encode(rec)); err != nil {
		r.logger.LogError(ctx, "Update failed", err, log.OpUpdate, log.NewFields().WithRow(r.schema.Sheet, index))
		return &core.SaveError{Sheet: r.schema.Sheet, Op: log.OpUpdate, Err: err}
	}
	r.logger.InfoContext(ctx, "Record updated",
		log.FieldSheet, r.schema.Sheet,
		log.FieldIndex, index,
		log.FieldOperation, log.OpUpdate)
	r.changed(ctx, log.OpUpdate, offset)
	return nil
}

// Delete removes the record at index; later records shift down by one.
func (r *Repository[T]) Delete(ctx context.Context, token string, index int) error {
	offset, err := r.locate(ctx, token, index)
	if err != nil {
		return &core.DeleteError{Sheet: r.schema.Sheet, Row: index + sheets.FirstDataRow, Err: err}
	}
	if err := r.table.DeleteRow(ctx, r.schema, offset); err != nil {
		r.logger.LogError(ctx, "Delete failed", err, log.OpDelete, log.NewFields().WithRow(r.schema.Sheet, index))
		return &core.DeleteError{Sheet: r.schema.Sheet, Row: offset, Err: err}
	}
	r.logger.InfoContext(ctx, "Record deleted",
		log.FieldSheet, r.schema.Sheet,
		log.FieldIndex, index,
		log.FieldOperation, log.OpDelete)
	r.changed(ctx, log.OpDelete, offset)
	return nil
}

// locate re-reads the sheet and maps index to a row offset, refusing when
// the sheet changed since token was issued.
func (r *Repository[T]) locate(ctx context.Context, token string, index int) (int, error) {
	rows, err := r.table.ReadRows(ctx, r.schema)
	if err != nil {
		return 0, fmt.Errorf("reload: %w", err)
	}
	if token != fingerprint(rows) {
		return 0, core.ErrStaleSnapshot
	}
	if index < 0 || index >= len(rows) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", core.ErrIndexOutOfRange, index, len(rows))
	}
	return index + sheets.FirstDataRow, nil
}

func (r *Repository[T]) changed(ctx context.Context, op string, rowOffset int) {
	if r.onChange != nil {
		r.onChange(ctx, r.schema.Sheet, op, rowOffset)
	}
}

// fingerprint hashes the textual form of every cell, so the same sheet
// contents give the same token whatever numeric type a store returns.
// Trailing empty cells are ignored; the Sheets API omits them.
func fingerprint(rows [][]any) string {
	h := sha256.New()
	for _, row := range rows {
		n := len(row)
		for n > 0 && sheets.CellString(row[n-1]) == "" {
			n--
		}
		for _, cell := range row[:n] {
			h.Write([]byte(sheets.CellString(cell)))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
