package http

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

// recordFilter narrows a listing while keeping each record's index in the
// full snapshot, so edits can address it. Repeated month values select
// several months at once.
type recordFilter struct {
	Year       int
	Periods    []string
	Categories []string
	Query      string
}

func parseRecordFilter(q url.Values) (recordFilter, error) {
	year := q.Get("year")
	p, err := ParsePeriodParams(url.Values{"year": {year}})
	if err != nil {
		return recordFilter{}, err
	}
	f := recordFilter{Year: p.Year, Query: strings.ToLower(sanitizeInput(q.Get("q")))}
	for _, m := range q["month"] {
		if strings.TrimSpace(m) == "" {
			continue
		}
		mp, err := ParsePeriodParams(url.Values{"year": {year}, "month": {m}})
		if err != nil {
			return recordFilter{}, err
		}
		if !slices.Contains(f.Periods, mp.Period) {
			f.Periods = append(f.Periods, mp.Period)
		}
	}
	for _, c := range q["category"] {
		if c = sanitizeInput(c); c != "" {
			f.Categories = append(f.Categories, c)
		}
	}
	return f, nil
}

func (f recordFilter) matchDate(d core.Date) bool {
	if f.Year != 0 && d.Year() != f.Year {
		return false
	}
	return len(f.Periods) == 0 || slices.Contains(f.Periods, d.MonthPeriod())
}

func (f recordFilter) matchTransaction(t core.Transaction) bool {
	if !f.matchDate(t.Date) {
		return false
	}
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if strings.EqualFold(c, t.Category) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return f.Query == "" || strings.Contains(strings.ToLower(t.Name), f.Query)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	listRecords(s, w, r, s.ledger.Transactions, f.matchTransaction, newestFirst, toTransactionJSON)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	createRecord(s, w, r, s.ledger.Transactions, ParseTransaction)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	updateRecord(s, w, r, s.ledger.Transactions, ParseTransaction)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	deleteRecord(s, w, r, s.ledger.Transactions)
}

func (s *Server) handleListSavings(w http.ResponseWriter, r *http.Request) {
	f, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	match := func(e core.SavingsEntry) bool {
		return f.matchDate(e.Date) &&
			(f.Query == "" || strings.Contains(strings.ToLower(e.Description), f.Query))
	}
	listRecords(s, w, r, s.ledger.Savings, match, nil, toSavingsJSON)
}

func (s *Server) handleCreateSavings(w http.ResponseWriter, r *http.Request) {
	createRecord(s, w, r, s.ledger.Savings, ParseSavingsEntry)
}

func (s *Server) handleUpdateSavings(w http.ResponseWriter, r *http.Request) {
	updateRecord(s, w, r, s.ledger.Savings, ParseSavingsEntry)
}

func (s *Server) handleDeleteSavings(w http.ResponseWriter, r *http.Request) {
	deleteRecord(s, w, r, s.ledger.Savings)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	f, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	match := func(g core.SavingsGoal) bool {
		return f.Query == "" || strings.Contains(strings.ToLower(g.Name), f.Query)
	}
	listRecords(s, w, r, s.ledger.Goals, match, nil, toGoalJSON)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	createRecord(s, w, r, s.ledger.Goals, ParseGoal)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	updateRecord(s, w, r, s.ledger.Goals, ParseGoal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	deleteRecord(s, w, r, s.ledger.Goals)
}

// newestFirst orders transactions by date, latest first. Same-day rows
// keep store order.
func newestFirst(a, b core.Transaction) int {
	return b.Date.Compare(a.Date.Time)
}

// listRecords renders the matching records, sorted by order when given.
// Each item keeps its index in the snapshot.
func listRecords[T services.Record, J any](s *Server, w http.ResponseWriter, r *http.Request,
	repo *services.Repository[T], match func(T) bool, order func(a, b T) int, render func(int, T) J) {
	snap, err := repo.LoadAll(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	indices := make([]int, 0, len(snap.Records))
	for i, rec := range snap.Records {
		if match(rec) {
			indices = append(indices, i)
		}
	}
	if order != nil {
		slices.SortStableFunc(indices, func(a, b int) int {
			return order(snap.Records[a], snap.Records[b])
		})
	}
	items := make([]J, 0, len(indices))
	for _, i := range indices {
		items = append(items, render(i, snap.Records[i]))
	}
	NewResponse().
		Header(TokenHeader, snap.Token).
		JSON(listResponse[J]{Token: snap.Token, Count: len(items), Items: items}).
		Write(w)
}

func createRecord[T services.Record](s *Server, w http.ResponseWriter, r *http.Request,
	repo *services.Repository[T], parse func(*RequestBodyParser) (T, error)) {
	rec, ok := parseBody(w, r, parse)
	if !ok {
		return
	}
	if err := repo.Create(r.Context(), rec); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.countMutation(log.OpCreate)
	NewResponse().
		Status(http.StatusCreated).
		JSON(mutationResponse{Status: "created", Sheet: repo.Schema().Sheet}).
		Write(w)
}

func updateRecord[T services.Record](s *Server, w http.ResponseWriter, r *http.Request,
	repo *services.Repository[T], parse func(*RequestBodyParser) (T, error)) {
	index, token, ok := addressedRow(w, r)
	if !ok {
		return
	}
	rec, ok := parseBody(w, r, parse)
	if !ok {
		return
	}
	if err := repo.Update(r.Context(), token, index, rec); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.countMutation(log.OpUpdate)
	NewResponse().
		JSON(mutationResponse{Status: "updated", Sheet: repo.Schema().Sheet, Index: &index}).
		Write(w)
}

func deleteRecord[T services.Record](s *Server, w http.ResponseWriter, r *http.Request, repo *services.Repository[T]) {
	index, token, ok := addressedRow(w, r)
	if !ok {
		return
	}
	if err := repo.Delete(r.Context(), token, index); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.countMutation(log.OpDelete)
	NewResponse().
		JSON(mutationResponse{Status: "deleted", Sheet: repo.Schema().Sheet, Index: &index}).
		Write(w)
}

func addressedRow(w http.ResponseWriter, r *http.Request) (int, string, bool) {
	index, err := ParseIndex(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, "", false
	}
	token := SnapshotToken(r)
	if token == "" {
		BadRequestError("snapshot token required; list the records first").Write(w)
		return 0, "", false
	}
	return index, token, true
}

func parseBody[T any](w http.ResponseWriter, r *http.Request, parse func(*RequestBodyParser) (T, error)) (T, bool) {
	var zero T
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return zero, false
	}
	rec, err := parse(p)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return zero, false
	}
	return rec, true
}
