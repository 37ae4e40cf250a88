package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"cashflow/internal/auth"
	"cashflow/internal/core"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"success":false,"error":"database unavailable"}` + "\n"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, core.ErrNotFound)
}

// GET /api/budgets
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.ledger.Budgets(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

// GET /api/budgets/{year}/{month}?type=
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, r, badRequest("year must be a number"))
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		writeError(w, r, badRequest("month must be a number"))
		return
	}
	p, err := parsePeriod(r.URL.Query(), Period{Year: year, Month: month})
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := s.ledger.Budget(r.Context(), auth.UserFrom(r.Context()), p.Month, p.Year, p.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /api/overview?year=&month=&type=
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r.URL.Query(), currentPeriod(s.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := s.ledger.Overview(r.Context(), auth.UserFrom(r.Context()), p.Month, p.Year, p.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}
