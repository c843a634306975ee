package google

import (
	"fmt"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"

	gsheet "google.golang.org/api/sheets/v4"
)

// DatePattern is the number format applied to date cells.
const DatePattern = "yyyy-mm-dd"

func dateFormat() *gsheet.CellFormat {
	return &gsheet.CellFormat{NumberFormat: &gsheet.NumberFormat{Type: "DATE", Pattern: DatePattern}}
}

func headerRow(s ports.Schema) *gsheet.RowData {
	cells := make([]*gsheet.CellData, len(s.Header))
	for i, h := range s.Header {
		h := h
		cells[i] = &gsheet.CellData{UserEnteredValue: &gsheet.ExtendedValue{StringValue: &h}}
	}
	return &gsheet.RowData{Values: cells}
}

// rowData encodes one row. Date columns are written as serial numbers with
// a DATE format so the sheet sorts and filters them as dates.
func rowData(s ports.Schema, row []any) *gsheet.RowData {
	cells := make([]*gsheet.CellData, len(row))
	for i, v := range row {
		cell := &gsheet.CellData{UserEnteredValue: extendedValue(v)}
		if s.IsDateColumn(i) {
			if serial, ok := dateSerial(v); ok {
				cell.UserEnteredValue = &gsheet.ExtendedValue{NumberValue: &serial}
			}
			cell.UserEnteredFormat = dateFormat()
		}
		cells[i] = cell
	}
	return &gsheet.RowData{Values: cells}
}

func extendedValue(v any) *gsheet.ExtendedValue {
	switch c := v.(type) {
	case nil:
		return &gsheet.ExtendedValue{}
	case string:
		return &gsheet.ExtendedValue{StringValue: &c}
	case float64:
		return &gsheet.ExtendedValue{NumberValue: &c}
	case int64:
		f := float64(c)
		return &gsheet.ExtendedValue{NumberValue: &f}
	case int:
		f := float64(c)
		return &gsheet.ExtendedValue{NumberValue: &f}
	case bool:
		return &gsheet.ExtendedValue{BoolValue: &c}
	default:
		s := fmt.Sprint(c)
		return &gsheet.ExtendedValue{StringValue: &s}
	}
}

func dateSerial(v any) (float64, bool) {
	switch c := v.(type) {
	case float64:
		return c, true
	case int64:
		return float64(c), true
	case int:
		return float64(c), true
	case core.Date:
		return c.Serial(), true
	case string:
		d, err := core.ParseDate(c)
		if err != nil {
			return 0, false
		}
		return d.Serial(), true
	}
	return 0, false
}

// deleteRowRequest removes exactly the row at rowOffset (1-based).
func deleteRowRequest(sheetID int64, rowOffset int) *gsheet.Request {
	return &gsheet.Request{DeleteDimension: &gsheet.DeleteDimensionRequest{
		Range: &gsheet.DimensionRange{
			SheetId:         sheetID,
			Dimension:       "ROWS",
			StartIndex:      int64(rowOffset - 1),
			EndIndex:        int64(rowOffset),
			ForceSendFields: []string{"SheetId"},
		},
	}}
}
