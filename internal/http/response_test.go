package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cashflow/internal/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unauthorized", fmt.Errorf("scope: %w", core.ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
		{"validation", core.Invalid("amount must be positive"), http.StatusBadRequest, "amount must be positive"},
		{"bad request", badRequest("year must be a number"), http.StatusBadRequest, "year must be a number"},
		{"not found", fmt.Errorf("get expense: %w", core.ErrNotFound), http.StatusNotFound, "not found"},
		{"conflict with message", core.Conflict("category \"Food\" already exists"), http.StatusConflict, "category \"Food\" already exists"},
		{"bare conflict", fmt.Errorf("insert: %w", core.ErrConflict), http.StatusConflict, "conflict"},
		{"conversion", &core.ConversionError{From: "EUR", To: "ILS", Err: errors.New("upstream 503")}, http.StatusUnprocessableEntity, "no exchange rate from EUR to ILS"},
		{"rate limited", errRateLimited, http.StatusTooManyRequests, errRateLimited.Error()},
		{"internal", errors.New("disk I/O error at page 7"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := classify(tt.err)
			if status != tt.status || msg != tt.msg {
				t.Errorf("classify() = %d %q, want %d %q", status, msg, tt.status, tt.msg)
			}
		})
	}
}

func TestWriteJSONAndError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]int{"n": 1})
	if rec.Code != http.StatusCreated || rec.Body.String() != `{"success":true,"data":{"n":1}}`+"\n" {
		t.Errorf("writeJSON() = %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	rec = httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("secret detail"))
	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusInternalServerError || env["success"] != false || env["error"] != "internal error" {
		t.Errorf("writeError() = %d %v", rec.Code, env)
	}
	if _, ok := env["data"]; ok {
		t.Error("error envelope carries data")
	}
}
