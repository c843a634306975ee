package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"finanzas/internal/core"
	"finanzas/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxRepo(t *testing.T) (*Repository[core.Transaction], *memory.Store) {
	t.Helper()
	store := memory.New()
	repo := NewRepository[core.Transaction](store, TransactionSchema(DefaultTransactionsSheet), TransactionCodec{}, nil)
	require.NoError(t, store.EnsureHeader(context.Background(), repo.Schema()))
	return repo, store
}

func seed(t *testing.T, repo *Repository[core.Transaction], n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), core.Transaction{
			Date:     core.NewDate(2024, 1, i+1),
			Name:     fmt.Sprintf("tx-%d", i),
			Amount:   int64(1000 * (i + 1)),
			Category: "Varios",
		}))
	}
}

func TestLoadAllEmptySheet(t *testing.T) {
	repo, _ := newTxRepo(t)
	snap, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
	assert.NotEmpty(t, snap.Token)
}

func TestCreateThenLoadRoundTrips(t *testing.T) {
	repo, store := newTxRepo(t)
	ctx := context.Background()
	want := core.Transaction{Date: core.NewDate(2024, 1, 5), Name: "Rent", Amount: 500000, Category: "Gastos fijos"}
	require.NoError(t, repo.Create(ctx, want))

	snap, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, want, snap.Records[0])

	f, ok := store.Format(DefaultTransactionsSheet, 0, 2)
	assert.True(t, ok)
	assert.Equal(t, memory.DateFormat, f)
}

func TestUpdateChangesOnlyTargetRecord(t *testing.T) {
	for i := 0; i < 4; i++ {
		t.Run(fmt.Sprintf("index %d", i), func(t *testing.T) {
			repo, _ := newTxRepo(t)
			ctx := context.Background()
			seed(t, repo, 4)

			before, err := repo.LoadAll(ctx)
			require.NoError(t, err)
			f := core.Transaction{Date: core.NewDate(2023, 12, 31), Name: "edited", Amount: 7, Category: core.IncomeCategory}
			require.NoError(t, repo.Update(ctx, before.Token, i, f))

			after, err := repo.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, after.Records, len(before.Records))
			for j := range after.Records {
				if j == i {
					assert.Equal(t, f, after.Records[j])
				} else {
					assert.Equal(t, before.Records[j], after.Records[j])
				}
			}
			assert.NotEqual(t, before.Token, after.Token)
		})
	}
}

func TestDeleteShiftsLaterRecords(t *testing.T) {
	for i := 0; i < 4; i++ {
		t.Run(fmt.Sprintf("index %d", i), func(t *testing.T) {
			repo, _ := newTxRepo(t)
			ctx := context.Background()
			seed(t, repo, 4)

			before, err := repo.LoadAll(ctx)
			require.NoError(t, err)
			require.NoError(t, repo.Delete(ctx, before.Token, i))

			after, err := repo.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, after.Records, len(before.Records)-1)
			assert.NotContains(t, after.Records, before.Records[i])
			for j := 0; j < i; j++ {
				assert.Equal(t, before.Records[j], after.Records[j])
			}
			for j := i + 1; j < len(before.Records); j++ {
				assert.Equal(t, before.Records[j], after.Records[j-1])
			}
		})
	}
}

func TestStaleTokenIsRejected(t *testing.T) {
	repo, store := newTxRepo(t)
	ctx := context.Background()
	seed(t, repo, 2)
	snap, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	// Another client appends a row behind our back.
	store.PutRow(DefaultTransactionsSheet, "2024-02-01", "foreign", "10", "Varios")

	err = repo.Update(ctx, snap.Token, 0, snap.Records[1])
	assert.ErrorIs(t, err, core.ErrStaleSnapshot)
	var se *core.SaveError
	assert.True(t, errors.As(err, &se))

	err = repo.Delete(ctx, snap.Token, 0)
	assert.ErrorIs(t, err, core.ErrStaleSnapshot)
	var de *core.DeleteError
	assert.True(t, errors.As(err, &de))

	fresh, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh.Records, 3)
	require.NoError(t, repo.Delete(ctx, fresh.Token, 2))
}

func TestIndexOutOfRange(t *testing.T) {
	repo, _ := newTxRepo(t)
	ctx := context.Background()
	seed(t, repo, 2)
	snap, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Delete(ctx, snap.Token, 2), core.ErrIndexOutOfRange)
	assert.ErrorIs(t, repo.Delete(ctx, snap.Token, -1), core.ErrIndexOutOfRange)
	assert.ErrorIs(t, repo.Update(ctx, snap.Token, 5, snap.Records[0]), core.ErrIndexOutOfRange)
}

func TestValidationHappensBeforeStore(t *testing.T) {
	repo, store := newTxRepo(t)
	calls := 0
	store.Fail = func(op string) error {
		calls++
		return nil
	}
	err := repo.Create(context.Background(), core.Transaction{Date: core.NewDate(2024, 1, 1), Amount: 1, Category: "X"})
	assert.True(t, core.IsValidation(err))
	assert.ErrorIs(t, err, core.ErrEmptyName)
	assert.Zero(t, calls)
}

func TestLoadFailureYieldsEmptySnapshot(t *testing.T) {
	repo, store := newTxRepo(t)
	seed(t, repo, 2)
	store.Fail = func(op string) error {
		if op == "read" {
			return errors.New("quota exceeded")
		}
		return nil
	}
	snap, err := repo.LoadAll(context.Background())
	var le *core.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, DefaultTransactionsSheet, le.Sheet)
	assert.Empty(t, snap.Records)
	assert.Empty(t, snap.Token)
}

func TestUnparseableRowReportsOffset(t *testing.T) {
	repo, store := newTxRepo(t)
	seed(t, repo, 1)
	store.PutRow(DefaultTransactionsSheet, "not a date", "x", "10", "Varios")

	snap, err := repo.LoadAll(context.Background())
	var le *core.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 3, le.Row)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
	assert.Empty(t, snap.Records)
}

func TestLoadAcceptsQuotedAndSerialDates(t *testing.T) {
	repo, store := newTxRepo(t)
	store.PutRow(DefaultTransactionsSheet, "'2024-01-05", "a", "$1.500", "X")
	store.PutRow(DefaultTransactionsSheet, `"2024-01-06"`, "b", float64(10), "X")
	store.PutRow(DefaultTransactionsSheet, float64(45296), "c", int64(5), "X")

	snap, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Records, 3)
	assert.Equal(t, core.NewDate(2024, 1, 5), snap.Records[0].Date)
	assert.Equal(t, int64(1500), snap.Records[0].Amount)
	assert.Equal(t, core.NewDate(2024, 1, 6), snap.Records[1].Date)
	assert.Equal(t, core.NewDate(2024, 1, 5), snap.Records[2].Date)
}

func TestFailedWritesAreWrapped(t *testing.T) {
	repo, store := newTxRepo(t)
	ctx := context.Background()
	seed(t, repo, 1)
	snap, err := repo.LoadAll(ctx)
	require.NoError(t, err)

	boom := errors.New("backend down")
	store.Fail = func(op string) error {
		if op == "read" {
			return nil
		}
		return boom
	}

	err = repo.Create(ctx, snap.Records[0])
	var se *core.SaveError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "create", se.Op)
	assert.ErrorIs(t, err, boom)

	err = repo.Update(ctx, snap.Token, 0, snap.Records[0])
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "update", se.Op)

	err = repo.Delete(ctx, snap.Token, 0)
	var de *core.DeleteError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.Row)

	store.Fail = nil
	after, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, after.Records, 1, "failed create must not leave a partial row")
	assert.Equal(t, snap.Token, after.Token)
}

func TestFingerprintIgnoresCellTypes(t *testing.T) {
	a := fingerprint([][]any{{"2024-01-05", "Rent", float64(500000), "X", nil}})
	b := fingerprint([][]any{{"2024-01-05", "Rent", int64(500000), "X"}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, fingerprint([][]any{{"2024-01-05", "Rent", int64(500001), "X"}}))
}
