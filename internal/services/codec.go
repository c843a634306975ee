package services

import (
	"fmt"
	"strconv"

	"finanzas/internal/core"
	"finanzas/internal/sheets"
)

// Default tab names, matching the spreadsheet the ledger was built around.
const (
	DefaultTransactionsSheet = "Movimientos"
	DefaultSavingsSheet      = "Ahorros"
	DefaultGoalsSheet        = "Metas"
)

// Codec maps a record to and from one sheet row in fixed column order.
type Codec[T any] interface {
	Encode(rec T) []any
	Decode(row []any) (T, error)
}

func TransactionSchema(sheet string) sheets.Schema {
	return sheets.Schema{
		Sheet:       sheet,
		Header:      []string{"fecha", "nombre", "importe", "tipo_movimiento"},
		DateColumns: []int{0},
	}
}

func SavingsSchema(sheet string) sheets.Schema {
	return sheets.Schema{
		Sheet:       sheet,
		Header:      []string{"fecha", "importe", "descripcion"},
		DateColumns: []int{0},
	}
}

func GoalSchema(sheet string) sheets.Schema {
	return sheets.Schema{
		Sheet:       sheet,
		Header:      []string{"nombre", "monto_objetivo", "fecha_objetivo", "descripcion"},
		DateColumns: []int{2},
	}
}

type TransactionCodec struct{}

func (TransactionCodec) Encode(t core.Transaction) []any {
	return []any{t.Date.Serial(), t.Name, t.Amount, t.Category}
}

func (TransactionCodec) Decode(row []any) (core.Transaction, error) {
	row = sheets.PadRow(row, 4)
	d, err := dateCell(row[0], "fecha")
	if err != nil {
		return core.Transaction{}, err
	}
	amt, err := amountCell(row[2], "importe")
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Date:     d,
		Name:     sheets.CellString(row[1]),
		Amount:   amt,
		Category: sheets.CellString(row[3]),
	}, nil
}

type SavingsCodec struct{}

func (SavingsCodec) Encode(s core.SavingsEntry) []any {
	return []any{s.Date.Serial(), s.Amount, s.Description}
}

func (SavingsCodec) Decode(row []any) (core.SavingsEntry, error) {
	row = sheets.PadRow(row, 3)
	d, err := dateCell(row[0], "fecha")
	if err != nil {
		return core.SavingsEntry{}, err
	}
	amt, err := amountCell(row[1], "importe")
	if err != nil {
		return core.SavingsEntry{}, err
	}
	return core.SavingsEntry{Date: d, Amount: amt, Description: sheets.CellString(row[2])}, nil
}

type GoalCodec struct{}

func (GoalCodec) Encode(g core.SavingsGoal) []any {
	return []any{g.Name, g.TargetAmount, g.TargetDate.Serial(), g.Description}
}

func (GoalCodec) Decode(row []any) (core.SavingsGoal, error) {
	row = sheets.PadRow(row, 4)
	target, err := amountCell(row[1], "monto_objetivo")
	if err != nil {
		return core.SavingsGoal{}, err
	}
	d, err := dateCell(row[2], "fecha_objetivo")
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return core.SavingsGoal{
		Name:         sheets.CellString(row[0]),
		TargetAmount: target,
		TargetDate:   d,
		Description:  sheets.CellString(row[3]),
	}, nil
}

// dateCell accepts date text, optionally quoted, or a spreadsheet serial.
func dateCell(v any, column string) (core.Date, error) {
	var (
		d   core.Date
		err error
	)
	switch c := v.(type) {
	case float64:
		d, err = core.DateFromSerial(c)
	case int64:
		d, err = core.DateFromSerial(float64(c))
	case int:
		d, err = core.DateFromSerial(float64(c))
	default:
		text := sheets.CellString(v)
		d, err = core.ParseDate(text)
		if err != nil {
			if serial, perr := strconv.ParseFloat(text, 64); perr == nil {
				d, err = core.DateFromSerial(serial)
			}
		}
	}
	if err != nil {
		return core.Date{}, fmt.Errorf("column %s: %w", column, err)
	}
	return d, nil
}

func amountCell(v any, column string) (int64, error) {
	n, err := core.AmountFromCell(v)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", column, err)
	}
	return n, nil
}
