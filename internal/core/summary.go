package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name    string
	Amount  int64
	Percent decimal.Decimal // share of the breakdown total, 0-100
}

// CategoryBreakdown is the expense distribution of a transaction set.
// Defined is false when Total is zero; percentages are then all zero.
type CategoryBreakdown struct {
	Items   []CategoryAmount
	Total   int64
	Defined bool
}

// Balance nets income against expenses. Income and expenses are never
// summed together.
type Balance struct {
	Income  int64
	Expense int64
	Net     int64
}

// PivotRow is one month of a Pivot. Values follow Pivot.Columns without
// the trailing Total column.
type PivotRow struct {
	Month  string
	Values []int64
	Total  int64
}

// Pivot is a month by category table. Columns starts with IncomeCategory
// and ends with TotalColumn.
type Pivot struct {
	Columns []string
	Rows    []PivotRow
}

// TotalColumn is the name of the last pivot column.
const TotalColumn = "Total"

// SeriesPoint is one (month, category) cell of the expense evolution series.
type SeriesPoint struct {
	Month    string
	Category string
	Amount   int64
}

// SavingsPoint is one step of the cumulative savings curve.
type SavingsPoint struct {
	Date   Date
	Amount int64
	Total  int64
}

// GoalStatus is a goal measured against the global savings total.
type GoalStatus struct {
	Goal      SavingsGoal
	Percent   decimal.Decimal
	Remaining int64
	Reached   bool
}

// Dashboard bundles every derived view for one filter selection.
type Dashboard struct {
	Year       int
	Month      string // empty for the whole year
	Balance    Balance
	Categories CategoryBreakdown
	Pivot      Pivot
	Series     []SeriesPoint
	Savings    []SavingsPoint
	TotalSaved int64
	Goals      []GoalStatus
}

// SavingsProgress is the savings curve and every goal's status.
type SavingsProgress struct {
	Savings    []SavingsPoint
	TotalSaved int64
	Goals      []GoalStatus
}
