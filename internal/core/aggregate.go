package core

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MonthPeriod maps a date to its "YYYY-MM" bucket.
func MonthPeriod(d Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}

// ParsePeriod normalizes a month selection for year. month may be empty
// (whole year), a month number such as "3" or "03", or a full "YYYY-MM"
// period whose year must match.
func ParsePeriod(year int, month string) (string, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return "", nil
	}
	if y, m, ok := strings.Cut(month, "-"); ok {
		if y != fmt.Sprintf("%04d", year) {
			return "", fmt.Errorf("month %q is outside year %d", month, year)
		}
		month = m
	}
	n, err := strconv.Atoi(month)
	if err != nil || n < 1 || n > 12 {
		return "", fmt.Errorf("invalid month %q", month)
	}
	return fmt.Sprintf("%04d-%02d", year, n), nil
}

// FilterByYear keeps the records dated in year.
func FilterByYear[T Dated](records []T, year int) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if r.When().Year() == year {
			out = append(out, r)
		}
	}
	return out
}

// FilterByMonth keeps the records whose month period equals period.
func FilterByMonth[T Dated](records []T, period string) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if MonthPeriod(r.When()) == period {
			out = append(out, r)
		}
	}
	return out
}

// FilterByCategories keeps transactions in any of cats. No categories
// means no filtering.
func FilterByCategories(txs []Transaction, cats ...string) []Transaction {
	if len(cats) == 0 {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if slices.Contains(cats, t.Category) {
			out = append(out, t)
		}
	}
	return out
}

// SearchByName keeps transactions whose name contains query, ignoring case.
func SearchByName(txs []Transaction, query string) []Transaction {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if strings.Contains(strings.ToLower(t.Name), query) {
			out = append(out, t)
		}
	}
	return out
}

// Years returns the distinct years present, ascending.
func Years[T Dated](records []T) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0)
	for _, r := range records {
		y := r.When().Year()
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	slices.Sort(out)
	return out
}

// MonthPeriods returns the distinct month periods present, ascending.
func MonthPeriods[T Dated](records []T) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, r := range records {
		p := MonthPeriod(r.When())
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Categories returns the distinct categories present, sorted.
func Categories(txs []Transaction) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, t := range txs {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	slices.Sort(out)
	return out
}

// CategoryTotals sums non-income transactions per category, sorted by
// category name, with each category's share of the total.
func CategoryTotals(txs []Transaction) CategoryBreakdown {
	byCat := map[string]int64{}
	var total int64
	for _, t := range txs {
		if t.IsIncome() {
			continue
		}
		byCat[t.Category] += t.Amount
		total += t.Amount
	}

	items := make([]CategoryAmount, 0, len(byCat))
	for name, amt := range byCat {
		items = append(items, CategoryAmount{Name: name, Amount: amt, Percent: decimal.Zero})
	}
	slices.SortFunc(items, func(a, b CategoryAmount) int { return cmp.Compare(a.Name, b.Name) })

	defined := total != 0
	if defined {
		t := decimal.NewFromInt(total)
		for i := range items {
			items[i].Percent = decimal.NewFromInt(items[i].Amount).Mul(hundred).Div(t).Round(2)
		}
	}
	return CategoryBreakdown{Items: items, Total: total, Defined: defined}
}

// ByAmountDesc returns the items ordered by amount, largest first.
func (b CategoryBreakdown) ByAmountDesc() []CategoryAmount {
	out := slices.Clone(b.Items)
	slices.SortStableFunc(out, func(x, y CategoryAmount) int { return cmp.Compare(y.Amount, x.Amount) })
	return out
}

// IncomeVsExpense totals income and expenses separately and nets them.
func IncomeVsExpense(txs []Transaction) Balance {
	var b Balance
	for _, t := range txs {
		if t.IsIncome() {
			b.Income += t.Amount
		} else {
			b.Expense += t.Amount
		}
	}
	b.Net = b.Income - b.Expense
	return b
}

// MonthlyPivot builds the month by category table. Income comes first,
// the other categories follow in the order they are first seen, and each
// row's Total is income minus the other columns.
func MonthlyPivot(txs []Transaction) Pivot {
	columns := []string{IncomeCategory}
	colIndex := map[string]int{IncomeCategory: 0}
	for _, t := range txs {
		if _, ok := colIndex[t.Category]; ok {
			continue
		}
		colIndex[t.Category] = len(columns)
		columns = append(columns, t.Category)
	}

	rowsByMonth := map[string][]int64{}
	for _, t := range txs {
		m := t.MonthPeriod()
		vals, ok := rowsByMonth[m]
		if !ok {
			vals = make([]int64, len(columns))
			rowsByMonth[m] = vals
		}
		vals[colIndex[t.Category]] += t.Amount
	}

	months := make([]string, 0, len(rowsByMonth))
	for m := range rowsByMonth {
		months = append(months, m)
	}
	slices.Sort(months)

	rows := make([]PivotRow, 0, len(months))
	for _, m := range months {
		vals := rowsByMonth[m]
		var expenses int64
		for _, v := range vals[1:] {
			expenses += v
		}
		rows = append(rows, PivotRow{Month: m, Values: vals, Total: vals[0] - expenses})
	}
	return Pivot{Columns: append(columns, TotalColumn), Rows: rows}
}

// MonthlyExpenseSeries sums non-income transactions per month and category,
// ordered by month then category.
func MonthlyExpenseSeries(txs []Transaction) []SeriesPoint {
	type key struct{ month, cat string }
	sums := map[key]int64{}
	for _, t := range txs {
		if t.IsIncome() {
			continue
		}
		sums[key{t.MonthPeriod(), t.Category}] += t.Amount
	}
	out := make([]SeriesPoint, 0, len(sums))
	for k, v := range sums {
		out = append(out, SeriesPoint{Month: k.month, Category: k.cat, Amount: v})
	}
	slices.SortFunc(out, func(a, b SeriesPoint) int {
		if c := cmp.Compare(a.Month, b.Month); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// CumulativeSavings orders entries by date (stable for equal dates) and
// returns the running total after each one.
func CumulativeSavings(entries []SavingsEntry) []SavingsPoint {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b SavingsEntry) int { return a.Date.Compare(b.Date.Time) })

	out := make([]SavingsPoint, 0, len(sorted))
	var running int64
	for _, e := range sorted {
		running += e.Amount
		out = append(out, SavingsPoint{Date: e.Date, Amount: e.Amount, Total: running})
	}
	return out
}

// TotalSaved is the global savings total every goal is measured against.
func TotalSaved(entries []SavingsEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

// GoalProgress returns min(100, 100*totalSaved/target). A goal without a
// positive target, or no savings, reports 0.
func GoalProgress(goal SavingsGoal, totalSaved int64) decimal.Decimal {
	if goal.TargetAmount <= 0 || totalSaved <= 0 {
		return decimal.Zero
	}
	p := decimal.NewFromInt(totalSaved).Mul(hundred).Div(decimal.NewFromInt(goal.TargetAmount)).Round(2)
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// GoalStatuses measures every goal against the same global total.
func GoalStatuses(goals []SavingsGoal, totalSaved int64) []GoalStatus {
	out := make([]GoalStatus, 0, len(goals))
	for _, g := range goals {
		remaining := g.TargetAmount - totalSaved
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, GoalStatus{
			Goal:      g,
			Percent:   GoalProgress(g, totalSaved),
			Remaining: remaining,
			Reached:   g.TargetAmount > 0 && totalSaved >= g.TargetAmount,
		})
	}
	return out
}

// BuildSavingsProgress derives the savings views on their own.
func BuildSavingsProgress(savings []SavingsEntry, goals []SavingsGoal) SavingsProgress {
	total := TotalSaved(savings)
	return SavingsProgress{
		Savings:    CumulativeSavings(savings),
		TotalSaved: total,
		Goals:      GoalStatuses(goals, total),
	}
}

// BuildDashboard derives every view from freshly loaded collections. The
// balance, breakdown and pivot honour the year/month selection; the
// expense series and savings views always cover all records.
func BuildDashboard(txs []Transaction, savings []SavingsEntry, goals []SavingsGoal, year int, month string) Dashboard {
	filtered := FilterByYear(txs, year)
	if month != "" {
		filtered = FilterByMonth(filtered, month)
	}
	total := TotalSaved(savings)
	return Dashboard{
		Year:       year,
		Month:      month,
		Balance:    IncomeVsExpense(filtered),
		Categories: CategoryTotals(filtered),
		Pivot:      MonthlyPivot(filtered),
		Series:     MonthlyExpenseSeries(txs),
		Savings:    CumulativeSavings(savings),
		TotalSaved: total,
		Goals:      GoalStatuses(goals, total),
	}
}
