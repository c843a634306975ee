package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"finanzas/internal/core"
	"finanzas/internal/sheets/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	sheet, op string
	row       int
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event
	err    error
}

func (p *recordingPublisher) PublishSheetChanged(_ context.Context, sheet, op string, row int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{sheet, op, row})
	return p.err
}

func TestLedgerInitWritesHeaders(t *testing.T) {
	store := memory.New()
	l := NewLedger(store, SheetNames{}, nil, nil)
	require.NoError(t, l.Init(context.Background()))
	require.NoError(t, l.Init(context.Background()))

	for _, s := range l.Schemas() {
		rows, err := store.ReadRows(context.Background(), s)
		require.NoError(t, err, s.Sheet)
		assert.Empty(t, rows)
	}
	assert.Equal(t, []string{"Movimientos", "Ahorros", "Metas"},
		[]string{l.Schemas()[0].Sheet, l.Schemas()[1].Sheet, l.Schemas()[2].Sheet})
}

func TestLedgerInitJoinsErrors(t *testing.T) {
	store := memory.New()
	store.Fail = func(string) error { return errors.New("offline") }
	err := NewLedger(store, SheetNames{Goals: "Objetivos"}, nil, nil).Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet Objetivos")
}

func TestLedgerPublishesChanges(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l := NewLedger(memory.New(), DefaultSheetNames(), pub, nil)
	require.NoError(t, l.Init(ctx))

	require.NoError(t, l.Savings.Create(ctx, core.SavingsEntry{Date: core.NewDate(2024, 1, 1), Amount: 100}))
	snap, err := l.Savings.LoadAll(ctx)
	require.NoError(t, err)
	require.NoError(t, l.Savings.Update(ctx, snap.Token, 0, core.SavingsEntry{Date: core.NewDate(2024, 1, 2), Amount: 200}))
	snap, err = l.Savings.LoadAll(ctx)
	require.NoError(t, err)
	require.NoError(t, l.Savings.Delete(ctx, snap.Token, 0))

	assert.Equal(t, []event{
		{"Ahorros", "create", 0},
		{"Ahorros", "update", 2},
		{"Ahorros", "delete", 2},
	}, pub.events)
}

func TestLedgerPublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := NewLedger(memory.New(), DefaultSheetNames(), pub, nil)
	require.NoError(t, l.Init(context.Background()))
	err := l.Goals.Create(context.Background(), core.SavingsGoal{
		Name: "Viaje", TargetAmount: 1000, TargetDate: core.NewDate(2025, 6, 1),
	})
	assert.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestLedgerDashboard(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(memory.New(), DefaultSheetNames(), nil, nil)
	require.NoError(t, l.Init(ctx))

	for _, tx := range []core.Transaction{
		{Date: core.NewDate(2023, 5, 1), Name: "Old", Amount: 10, Category: "Otros"},
		{Date: core.NewDate(2024, 1, 5), Name: "Rent", Amount: 500000, Category: "Gastos fijos"},
		{Date: core.NewDate(2024, 1, 10), Name: "Salary", Amount: 2000000, Category: core.IncomeCategory},
	} {
		require.NoError(t, l.Transactions.Create(ctx, tx))
	}
	require.NoError(t, l.Savings.Create(ctx, core.SavingsEntry{Date: core.NewDate(2024, 1, 1), Amount: 250}))
	require.NoError(t, l.Goals.Create(ctx, core.SavingsGoal{Name: "Fondo", TargetAmount: 1000, TargetDate: core.NewDate(2025, 1, 1)}))

	d, err := l.Dashboard(ctx, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 2023, d.Year, "no year picks the earliest one")
	assert.Equal(t, core.Balance{Expense: 10, Net: -10}, d.Balance)

	d, err = l.Dashboard(ctx, 2024, "")
	require.NoError(t, err)
	assert.Equal(t, core.Balance{Income: 2000000, Expense: 500000, Net: 1500000}, d.Balance)
	require.Len(t, d.Goals, 1)
	assert.True(t, d.Goals[0].Percent.Equal(decimal.NewFromInt(25)))

	d, err = l.Dashboard(ctx, 2023, "2023-05")
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.Balance.Expense)
}

func TestLedgerDashboardPropagatesLoadError(t *testing.T) {
	store := memory.New()
	l := NewLedger(store, DefaultSheetNames(), nil, nil)
	require.NoError(t, l.Init(context.Background()))
	store.SetHeader(DefaultSavingsSheet, "x", "y", "z")

	_, err := l.Dashboard(context.Background(), 2024, "")
	var le *core.LoadError
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, core.ErrHeaderMismatch)
}

func TestLedgerSavingsProgress(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLedger(store, DefaultSheetNames(), nil, nil)
	require.NoError(t, l.Init(ctx))
	// A broken transactions sheet must not block the savings view.
	store.SetHeader(DefaultTransactionsSheet, "a", "b", "c", "d")

	require.NoError(t, l.Savings.Create(ctx, core.SavingsEntry{Date: core.NewDate(2024, 2, 1), Amount: 300}))
	require.NoError(t, l.Savings.Create(ctx, core.SavingsEntry{Date: core.NewDate(2024, 1, 1), Amount: 200}))
	require.NoError(t, l.Goals.Create(ctx, core.SavingsGoal{Name: "Viaje", TargetAmount: 400, TargetDate: core.NewDate(2025, 6, 1)}))

	p, err := l.SavingsProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.TotalSaved)
	require.Len(t, p.Savings, 2)
	assert.Equal(t, int64(200), p.Savings[0].Total)
	require.Len(t, p.Goals, 1)
	assert.True(t, p.Goals[0].Reached)
}
