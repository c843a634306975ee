package http

import (
	"finanzas/internal/core"
)

type listResponse[T any] struct {
	Token string `json:"token"`
	Count int    `json:"count"`
	Items []T    `json:"items"`
}

type mutationResponse struct {
	Status string `json:"status"`
	Sheet  string `json:"sheet"`
	Index  *int   `json:"index,omitempty"`
}

type transactionJSON struct {
	Index         int    `json:"index"`
	Date          string `json:"date"`
	Month         string `json:"month"`
	Name          string `json:"name"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Category      string `json:"category"`
	Income        bool   `json:"income"`
}

func toTransactionJSON(i int, t core.Transaction) transactionJSON {
	return transactionJSON{
		Index:         i,
		Date:          t.Date.String(),
		Month:         t.MonthPeriod(),
		Name:          t.Name,
		Amount:        t.Amount,
		AmountDisplay: core.FormatAmount(t.Amount),
		Category:      t.Category,
		Income:        t.IsIncome(),
	}
}

type savingsJSON struct {
	Index         int    `json:"index"`
	Date          string `json:"date"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Description   string `json:"description"`
}

func toSavingsJSON(i int, s core.SavingsEntry) savingsJSON {
	return savingsJSON{
		Index:         i,
		Date:          s.Date.String(),
		Amount:        s.Amount,
		AmountDisplay: core.FormatAmount(s.Amount),
		Description:   s.Description,
	}
}

type goalJSON struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	TargetAmount int64  `json:"target_amount"`
	TargetDate   string `json:"target_date"`
	Description  string `json:"description"`
}

func toGoalJSON(i int, g core.SavingsGoal) goalJSON {
	return goalJSON{
		Index:        i,
		Name:         g.Name,
		TargetAmount: g.TargetAmount,
		TargetDate:   g.TargetDate.String(),
		Description:  g.Description,
	}
}

type summaryJSON struct {
	Year       int               `json:"year"`
	Month      string            `json:"month,omitempty"`
	Balance    balanceJSON       `json:"balance"`
	Categories breakdownJSON     `json:"categories"`
	Pivot      pivotJSON         `json:"pivot"`
	Series     []seriesPointJSON `json:"series"`
}

type balanceJSON struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Net     int64 `json:"net"`
}

type breakdownJSON struct {
	Total   int64          `json:"total"`
	Defined bool           `json:"defined"`
	Items   []categoryJSON `json:"items"`
}

type categoryJSON struct {
	Name    string `json:"name"`
	Amount  int64  `json:"amount"`
	Percent string `json:"percent"`
}

type pivotJSON struct {
	Columns []string       `json:"columns"`
	Rows    []pivotRowJSON `json:"rows"`
}

type pivotRowJSON struct {
	Month  string  `json:"month"`
	Values []int64 `json:"values"`
	Total  int64   `json:"total"`
}

type seriesPointJSON struct {
	Month    string `json:"month"`
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
}

func toSummaryJSON(d core.Dashboard) summaryJSON {
	out := summaryJSON{
		Year:  d.Year,
		Month: d.Month,
		Balance: balanceJSON{
			Income:  d.Balance.Income,
			Expense: d.Balance.Expense,
			Net:     d.Balance.Net,
		},
		Categories: breakdownJSON{
			Total:   d.Categories.Total,
			Defined: d.Categories.Defined,
			Items:   make([]categoryJSON, 0, len(d.Categories.Items)),
		},
		Pivot: pivotJSON{
			Columns: d.Pivot.Columns,
			Rows:    make([]pivotRowJSON, 0, len(d.Pivot.Rows)),
		},
		Series: make([]seriesPointJSON, 0, len(d.Series)),
	}
	for _, c := range d.Categories.Items {
		out.Categories.Items = append(out.Categories.Items, categoryJSON{Name: c.Name, Amount: c.Amount, Percent: percent(c.Percent)})
	}
	for _, r := range d.Pivot.Rows {
		out.Pivot.Rows = append(out.Pivot.Rows, pivotRowJSON{Month: r.Month, Values: r.Values, Total: r.Total})
	}
	for _, p := range d.Series {
		out.Series = append(out.Series, seriesPointJSON{Month: p.Month, Category: p.Category, Amount: p.Amount})
	}
	return out
}

type progressJSON struct {
	TotalSaved int64              `json:"total_saved"`
	Savings    []savingsPointJSON `json:"savings"`
	Goals      []goalStatusJSON   `json:"goals"`
}

type savingsPointJSON struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
	Total  int64  `json:"total"`
}

type goalStatusJSON struct {
	Name         string `json:"name"`
	TargetAmount int64  `json:"target_amount"`
	TargetDate   string `json:"target_date"`
	Percent      string `json:"percent"`
	Remaining    int64  `json:"remaining"`
	Reached      bool   `json:"reached"`
}

func toProgressJSON(d core.SavingsProgress) progressJSON {
	out := progressJSON{
		TotalSaved: d.TotalSaved,
		Savings:    make([]savingsPointJSON, 0, len(d.Savings)),
		Goals:      make([]goalStatusJSON, 0, len(d.Goals)),
	}
	for _, p := range d.Savings {
		out.Savings = append(out.Savings, savingsPointJSON{Date: p.Date.String(), Amount: p.Amount, Total: p.Total})
	}
	for _, g := range d.Goals {
		out.Goals = append(out.Goals, goalStatusJSON{
			Name:         g.Goal.Name,
			TargetAmount: g.Goal.TargetAmount,
			TargetDate:   g.Goal.TargetDate.String(),
			Percent:      percent(g.Percent),
			Remaining:    g.Remaining,
			Reached:      g.Reached,
		})
	}
	return out
}
