package http

import (
	"net/http"

	"finanzas/internal/log"
)

// handleSummary serves the dashboard for ?year= and optional ?month=.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriodParams(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	d, err := s.ledger.Dashboard(r.Context(), p.Year, p.Period)
	if err != nil {
		s.writeError(w, r, log.OpSummary, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Summary built",
		log.FieldYear, d.Year,
		log.FieldMonth, d.Month)
	NewResponse().JSON(toSummaryJSON(d)).Write(w)
}

func (s *Server) handleSavingsProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.ledger.SavingsProgress(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpSummary, err)
		return
	}
	NewResponse().JSON(toProgressJSON(progress)).Write(w)
}
