package http

import (
	"net/http"
	"strconv"
	"strings"

	"cashflow/internal/auth"
	"cashflow/internal/core"
	"cashflow/internal/services"
)

type entityResponse struct {
	Entity core.Entity         `json:"entity"`
	Sync   services.SyncResult `json:"sync"`
}

func (s *Server) handleListEntities(role core.EntityRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.bridge.List(r.Context(), auth.UserFrom(r.Context()), role)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) handleGetEntity(role core.EntityRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := s.bridge.Get(r.Context(), auth.UserFrom(r.Context()), role, r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// POST /api/clients and /api/suppliers. The response carries the result
// of the subscription sync that follows the save.
func (s *Server) handleCreateEntity(role core.EntityRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in core.EntityInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		e, res, err := s.bridge.Create(r.Context(), auth.UserFrom(r.Context()), role, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, entityResponse{Entity: e, Sync: res})
	}
}

func (s *Server) handleUpdateEntity(role core.EntityRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in core.EntityInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		e, res, err := s.bridge.Update(r.Context(), auth.UserFrom(r.Context()), role, r.PathValue("id"), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entityResponse{Entity: e, Sync: res})
	}
}

// DELETE /api/<role>/{id}?detach=true unlinks ledger rows instead of
// refusing.
func (s *Server) handleDeleteEntity(role core.EntityRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detach, err := parseBool(r.URL.Query(), "detach")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.bridge.Delete(r.Context(), auth.UserFrom(r.Context()), role, r.PathValue("id"), detach); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func (s *Server) handleSyncEntity(role core.EntityRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.bridge.Sync(r.Context(), auth.UserFrom(r.Context()), role, r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /api/<role>/{id}/stats?year=
func (s *Server) handleEntityStats(role core.EntityRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year := s.now().Year()
		if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, r, badRequest("year must be a number"))
				return
			}
			year = y
		}
		stats, err := s.bridge.Stats(r.Context(), auth.UserFrom(r.Context()), role, r.PathValue("id"), year)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
