package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// IncomeCategory is the only category counted as income. Every other
// category is an expense category.
const IncomeCategory = "Ingresos"

// DateLayout is the canonical "YYYY-MM-DD" representation used in sheets.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Transaction struct {
		Date     Date
		Name     string
		Amount   int64 // whole currency units
		Category string
	}

	SavingsEntry struct {
		Date        Date
		Amount      int64
		Description string
	}

	SavingsGoal struct {
		Name         string
		TargetAmount int64
		TargetDate   Date
		Description  string
	}

	// Dated is implemented by every record that can be bucketed by period.
	Dated interface {
		When() Date
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyCategory   = errors.New("empty category")
	ErrZeroTarget      = errors.New("goal target must be greater than zero")
	ErrNameTooLong     = errors.New("name too long (max 200 characters)")
	ErrDescriptionLong = errors.New("description too long (max 500 characters)")
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 500
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar date.
func Today() Date {
	return DateOf(time.Now())
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// ParseDate parses a date cell. Cells written as text by older clients can
// carry a leading apostrophe or surrounding quotes; those are stripped first.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "'")
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// spreadsheetEpoch is day zero of the serial date system used by spreadsheets.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// DateFromSerial converts a spreadsheet serial day number into a Date.
func DateFromSerial(serial float64) (Date, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 1 {
		return Date{}, fmt.Errorf("%w: serial %v", ErrInvalidDate, serial)
	}
	days := int(math.Floor(serial))
	return DateOf(spreadsheetEpoch.AddDate(0, 0, days)), nil
}

// Serial returns the spreadsheet serial day number for d.
func (d Date) Serial() float64 {
	return float64((d.Unix() - spreadsheetEpoch.Unix()) / 86400)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthPeriod returns the "YYYY-MM" bucket of the date.
func (d Date) MonthPeriod() string {
	return MonthPeriod(d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (t Transaction) When() Date  { return t.Date }
func (s SavingsEntry) When() Date { return s.Date }

// IsIncome reports whether the transaction belongs to the income category.
func (t Transaction) IsIncome() bool {
	return t.Category == IncomeCategory
}

// MonthPeriod is the derived "YYYY-MM" field of a transaction.
func (t Transaction) MonthPeriod() string {
	return MonthPeriod(t.Date)
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLen {
		return ErrNameTooLong
	}
	if t.Amount < 0 {
		return ErrNegativeAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (s SavingsEntry) Validate() error {
	if err := s.Date.Validate(); err != nil {
		return err
	}
	if s.Amount < 0 {
		return ErrNegativeAmount
	}
	if len(s.Description) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

func (g SavingsGoal) Validate() error {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLen {
		return ErrNameTooLong
	}
	if g.TargetAmount <= 0 {
		return ErrZeroTarget
	}
	if err := g.TargetDate.Validate(); err != nil {
		return fmt.Errorf("target date: %w", err)
	}
	if len(g.Description) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}
