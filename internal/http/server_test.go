package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finanzas/internal/services"
	"finanzas/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	ledger := services.NewLedger(store, services.DefaultSheetNames(), nil, nil)
	require.NoError(t, ledger.Init(context.Background()))
	s := NewServer(":0", ledger, opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, store
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

type listBody struct {
	Token string            `json:"token"`
	Count int               `json:"count"`
	Items []json.RawMessage `json:"items"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rec).Error.Code
}

func TestTransactionLifecycle(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	for _, body := range []string{
		`{"date":"2024-03-05","name":"Rent","amount":500000,"category":"Gastos fijos"}`,
		`{"date":"2024-03-10","name":"Salary","amount":"2.000.000","category":"Ingresos"}`,
		`{"date":"2024-04-02","name":"Groceries","amount":"80000","category":"Comida"}`,
	} {
		rec := do(t, s, http.MethodPost, "/api/transactions", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, s, http.MethodGet, "/api/transactions?year=2024&month=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listBody](t, rec)
	assert.Equal(t, 2, list.Count)
	assert.NotEmpty(t, list.Token)
	assert.Equal(t, list.Token, rec.Header().Get(TokenHeader))

	rec = do(t, s, http.MethodGet, "/api/transactions?month=2024-03&month=2024-04", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list = decode[listBody](t, rec)
	require.Equal(t, 3, list.Count)
	var names []string
	var indices []int
	for _, raw := range list.Items {
		var it transactionJSON
		require.NoError(t, json.Unmarshal(raw, &it))
		names = append(names, it.Name)
		indices = append(indices, it.Index)
	}
	assert.Equal(t, []string{"Groceries", "Salary", "Rent"}, names, "newest first")
	assert.Equal(t, []int{2, 1, 0}, indices)

	rec = do(t, s, http.MethodGet, "/api/transactions?year=2024&month=4&month=13", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/transactions?category=comida", "")
	list = decode[listBody](t, rec)
	require.Equal(t, 1, list.Count)
	var item transactionJSON
	require.NoError(t, json.Unmarshal(list.Items[0], &item))
	assert.Equal(t, 2, item.Index, "filtered items keep their snapshot index")
	assert.Equal(t, "2024-04", item.Month)

	token := list.Token
	rec = do(t, s, http.MethodPut, "/api/transactions/2?token="+token,
		`{"date":"2024-04-02","name":"Groceries","amount":"90000","category":"Comida"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The update changed the sheet, so the old token is stale.
	rec = do(t, s, http.MethodDelete, "/api/transactions/0?token="+token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeStale, errorCode(t, rec))

	rec = do(t, s, http.MethodGet, "/api/transactions", "")
	fresh := decode[listBody](t, rec).Token

	rec = do(t, s, http.MethodDelete, "/api/transactions/7?token="+fresh, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/transactions/0", nil)
	req.Header.Set(TokenHeader, fresh)
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rec = do(t, s, http.MethodGet, "/api/transactions", "")
	list = decode[listBody](t, rec)
	assert.Equal(t, 2, list.Count)
}

func TestMutationErrors(t *testing.T) {
	s, store := newTestServer(t, Options{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"malformed json", http.MethodPost, "/api/transactions", `{"date":`, http.StatusBadRequest, CodeBadRequest},
		{"bad date", http.MethodPost, "/api/transactions", `{"date":"yesterday","name":"x","amount":1,"category":"y"}`, http.StatusBadRequest, CodeBadRequest},
		{"fractional amount", http.MethodPost, "/api/savings", `{"date":"2024-01-01","amount":"12.5"}`, http.StatusBadRequest, CodeBadRequest},
		{"empty name", http.MethodPost, "/api/transactions", `{"date":"2024-01-01","name":" ","amount":1,"category":"y"}`, http.StatusUnprocessableEntity, CodeValidation},
		{"negative amount", http.MethodPost, "/api/savings", `{"date":"2024-01-01","amount":"-5"}`, http.StatusUnprocessableEntity, CodeValidation},
		{"zero goal target", http.MethodPost, "/api/goals", `{"name":"Trip","target_amount":0,"target_date":"2025-01-01"}`, http.StatusUnprocessableEntity, CodeValidation},
		{"missing token", http.MethodDelete, "/api/goals/0", ``, http.StatusBadRequest, CodeBadRequest},
		{"bad index", http.MethodDelete, "/api/goals/abc?token=x", ``, http.StatusBadRequest, CodeBadRequest},
		{"bad month", http.MethodGet, "/api/summary?year=2024&month=13", ``, http.StatusBadRequest, CodeBadRequest},
		{"unknown route", http.MethodGet, "/api/nope", ``, http.StatusNotFound, CodeUnknownRoute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}

	t.Run("store failure", func(t *testing.T) {
		store.Fail = func(op string) error {
			if op == "read" {
				return errors.New("quota exceeded")
			}
			return nil
		}
		defer func() { store.Fail = nil }()
		rec := do(t, s, http.MethodGet, "/api/savings", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, CodeUpstream, errorCode(t, rec))
	})
}

func TestSummaryAndProgress(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	for _, c := range []struct{ target, body string }{
		{"/api/transactions", `{"date":"2024-03-05","name":"Rent","amount":500,"category":"Gastos fijos"}`},
		{"/api/transactions", `{"date":"2024-03-10","name":"Salary","amount":2000,"category":"Ingresos"}`},
		{"/api/savings", `{"date":"2024-02-01","amount":300,"description":"first"}`},
		{"/api/savings", `{"date":"2024-01-01","amount":200}`},
		{"/api/goals", `{"name":"Trip","target_amount":1000,"target_date":"2025-06-01"}`},
	} {
		rec := do(t, s, http.MethodPost, c.target, c.body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, s, http.MethodGet, "/api/summary?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[summaryJSON](t, rec)
	assert.Equal(t, 2024, sum.Year)
	assert.Equal(t, "2024-03", sum.Month)
	assert.Equal(t, int64(2000), sum.Balance.Income)
	assert.Equal(t, int64(500), sum.Balance.Expense)
	assert.Equal(t, int64(1500), sum.Balance.Net)

	rec = do(t, s, http.MethodGet, "/api/savings/progress", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	progress := decode[progressJSON](t, rec)
	assert.Equal(t, int64(500), progress.TotalSaved)
	require.Len(t, progress.Savings, 2)
	assert.Equal(t, "2024-01-01", progress.Savings[0].Date)
	require.Len(t, progress.Goals, 1)
	assert.Equal(t, "50.00", progress.Goals[0].Percent)
	assert.Equal(t, int64(500), progress.Goals[0].Remaining)
	assert.False(t, progress.Goals[0].Reached)
}

func TestHealthReadyMetrics(t *testing.T) {
	s, store := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	store.Fail = func(string) error { return errors.New("offline") }
	rec = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	store.Fail = nil

	do(t, s, http.MethodPost, "/api/goals", `{"name":"Car","target_amount":10,"target_date":"2030-01-01"}`)
	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ledger_mutations_total{op="create"} 1`)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestReadyUsesProbe(t *testing.T) {
	s, _ := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("ping failed") }})
	rec := do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "ping failed")
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimit: 1})

	body := `{"name":"Car","target_amount":10,"target_date":"2030-01-01"}`
	rec := do(t, s, http.MethodPost, "/api/goals", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/goals", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimited, errorCode(t, rec))

	for range 3 {
		rec = do(t, s, http.MethodGet, "/api/goals", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
