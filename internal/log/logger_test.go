package log

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_StampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})

	logger.Info("Transaction created", FieldKind, "expense")
	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "kind=expense") {
		t.Errorf("unexpected log line: %s", out)
	}

	buf.Reset()
	logger.WithComponent(ComponentBridge).Warn("skipped")
	if !strings.Contains(buf.String(), "component=subscription_bridge") {
		t.Errorf("WithComponent not applied: %s", buf.String())
	}
}

func TestMiddleware_InjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Output: &buf})

	handler := Middleware(logger, func(*http.Request) string { return "req_1" })(
		AccessLog(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
			w.WriteHeader(http.StatusNotFound)
		})),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/expenses", nil))

	out := buf.String()
	if !strings.Contains(out, "request_id=req_1") {
		t.Errorf("request id missing: %s", out)
	}
	if !strings.Contains(out, "status_code=404") || !strings.Contains(out, "level=WARN") {
		t.Errorf("access log missing status: %s", out)
	}
}

func TestFromContext_Fallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := FromContext(req.Context()); got == nil || got.Component() != "unknown" {
		t.Errorf("FromContext() = %+v, want fallback logger", got)
	}
}
