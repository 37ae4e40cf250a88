package http

import (
	"net/http"
	"strings"

	"cashflow/internal/auth"
	"cashflow/internal/core"
)

type renameRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// GET /api/categories?type=&scope=
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := core.CategoryType(strings.ToLower(strings.TrimSpace(q.Get("type"))))
	scope := core.BudgetType(strings.ToUpper(strings.TrimSpace(q.Get("scope"))))

	cats, err := s.categories.List(r.Context(), auth.UserFrom(r.Context()), typ, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// POST /api/categories
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in core.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.categories.Add(r.Context(), auth.UserFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// PATCH /api/categories/{id}
func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.categories.Rename(r.Context(), auth.UserFrom(r.Context()), r.PathValue("id"), req.Name, req.Color)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DELETE /api/categories/{id}?reassignTo=<name>
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("reassignTo"))
	moved, err := s.categories.Delete(r.Context(), auth.UserFrom(r.Context()), r.PathValue("id"), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"reassigned": moved})
}
