package http

import (
	"net/http"

	"cashflow/internal/auth"
	"cashflow/internal/core"
)

type updateResponse struct {
	Updated int                `json:"updated"`
	Items   []core.Transaction `json:"items"`
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// GET /api/<kind>?year=&month=&type=
func (s *Server) handleListTransactions(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parsePeriod(r.URL.Query(), currentPeriod(s.now()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		listing, err := s.ledger.List(r.Context(), auth.UserFrom(r.Context()), kind, p.Month, p.Year, p.Type)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listing)
	}
}

// POST /api/<kind>?year=&month=&type=
//
// The period defaults to the one containing the entry's date.
func (s *Server) handleCreateTransaction(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in core.TransactionInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		def := currentPeriod(s.now())
		if !in.Date.IsZero() {
			def.Year, def.Month = in.Date.Year(), in.Date.Month()
		}
		p, err := parsePeriod(r.URL.Query(), def)
		if err != nil {
			writeError(w, r, err)
			return
		}

		res, err := s.ledger.Add(r.Context(), auth.UserFrom(r.Context()), kind, p.Month, p.Year, p.Type, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// PATCH /api/<kind>/{id}?mode=SINGLE|FUTURE
func (s *Server) handleUpdateTransaction(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := parseMode(r.URL.Query())
		if err != nil {
			writeError(w, r, err)
			return
		}
		var patch core.TransactionPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			writeError(w, r, err)
			return
		}

		rows, err := s.ledger.Update(r.Context(), auth.UserFrom(r.Context()), kind, r.PathValue("id"), patch, mode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updateResponse{Updated: len(rows), Items: rows})
	}
}

// DELETE /api/<kind>/{id}?mode=SINGLE|FUTURE
func (s *Server) handleDeleteTransaction(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := parseMode(r.URL.Query())
		if err != nil {
			writeError(w, r, err)
			return
		}
		n, err := s.ledger.Delete(r.Context(), auth.UserFrom(r.Context()), kind, r.PathValue("id"), mode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
	}
}
