package services

import (
	"context"
	"errors"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
)

// EventPublisher announces that a sheet changed, so mirrors can catch up.
type EventPublisher interface {
	PublishSheetChanged(ctx context.Context, sheet, operation string, rowOffset int) error
}

// SheetNames selects the tab used for each record kind.
type SheetNames struct {
	Transactions string
	Savings      string
	Goals        string
}

func DefaultSheetNames() SheetNames {
	return SheetNames{
		Transactions: DefaultTransactionsSheet,
		Savings:      DefaultSavingsSheet,
		Goals:        DefaultGoalsSheet,
	}
}

// Ledger bundles the three repositories over one table.
func (n SheetNames) withDefaults() SheetNames {
	def := DefaultSheetNames()
	if n.Transactions == "" {
		n.Transactions = def.Transactions
	}
	if n.Savings == "" {
		n.Savings = def.Savings
	}
	if n.Goals == "" {
		n.Goals = def.Goals
	}
	return n
}

// Schemas lists the sheet schemas for these names, in ledger order.
func (n SheetNames) Schemas() []sheets.Schema {
	n = n.withDefaults()
	return []sheets.Schema{TransactionSchema(n.Transactions), SavingsSchema(n.Savings), GoalSchema(n.Goals)}
}

type Ledger struct {
	Transactions *Repository[core.Transaction]
	Savings      *Repository[core.SavingsEntry]
	Goals        *Repository[core.SavingsGoal]

	table     sheets.Table
	publisher EventPublisher
	logger    *log.Logger
}

// NewLedger wires repositories for names over table. publisher may be nil.
func NewLedger(table sheets.Table, names SheetNames, publisher EventPublisher, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Discard()
	}
	names = names.withDefaults()
	l := &Ledger{
		Transactions: NewRepository[core.Transaction](table, TransactionSchema(names.Transactions), TransactionCodec{}, logger),
		Savings:      NewRepository[core.SavingsEntry](table, SavingsSchema(names.Savings), SavingsCodec{}, logger),
		Goals:        NewRepository[core.SavingsGoal](table, GoalSchema(names.Goals), GoalCodec{}, logger),
		table:        table,
		publisher:    publisher,
		logger:       logger.WithComponent(log.ComponentLedger),
	}
	l.Transactions.OnChange(l.publish)
	l.Savings.OnChange(l.publish)
	l.Goals.OnChange(l.publish)
	return l
}

// Schemas lists the sheets managed by the ledger.
func (l *Ledger) Schemas() []sheets.Schema {
	return []sheets.Schema{l.Transactions.Schema(), l.Savings.Schema(), l.Goals.Schema()}
}

// Init writes the header row of every empty sheet.
func (l *Ledger) Init(ctx context.Context) error {
	var errs []error
	for _, s := range l.Schemas() {
		if err := l.table.EnsureHeader(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("sheet %s: %w", s.Sheet, err))
		}
	}
	return errors.Join(errs...)
}

// Dashboard loads all three sheets and derives every view. A zero year
// selects the first year with transactions, the default of the year
// picker, or the current year when there are none. An empty month covers
// the whole year.
func (l *Ledger) Dashboard(ctx context.Context, year int, month string) (core.Dashboard, error) {
	txs, err := l.Transactions.LoadAll(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	savings, err := l.Savings.LoadAll(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	goals, err := l.Goals.LoadAll(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	if year == 0 {
		year = core.Today().Year()
		if years := core.Years(txs.Records); len(years) > 0 {
			year = years[0]
		}
	}
	return core.BuildDashboard(txs.Records, savings.Records, goals.Records, year, month), nil
}

// SavingsProgress loads savings and goals and measures every goal against
// the total saved.
func (l *Ledger) SavingsProgress(ctx context.Context) (core.SavingsProgress, error) {
	savings, err := l.Savings.LoadAll(ctx)
	if err != nil {
		return core.SavingsProgress{}, err
	}
	goals, err := l.Goals.LoadAll(ctx)
	if err != nil {
		return core.SavingsProgress{}, err
	}
	return core.BuildSavingsProgress(savings.Records, goals.Records), nil
}

func (l *Ledger) publish(ctx context.Context, sheet, op string, rowOffset int) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishSheetChanged(ctx, sheet, op, rowOffset); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish change event",
			log.FieldSheet, sheet,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}
