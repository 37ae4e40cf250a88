// Package http exposes the ledger services as a JSON API. Every response
// uses the {success, data, error} envelope.
package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"cashflow/internal/auth"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/services"
)

// Pinger reports storage health for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires the server to its services.
type Config struct {
	Addr       string
	Ledger     *services.Ledger
	Categories *services.Categories
	Bridge     *services.Bridge
	Tokens     auth.Verifier
	DB         Pinger
	Logger     *log.Logger
	RateLimit  ratelimit.Config
}

type Server struct {
	http.Server
	ledger     *services.Ledger
	categories *services.Categories
	bridge     *services.Bridge
	db         Pinger
	logger     *log.Logger
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	now        func() time.Time

	shutdownOnce sync.Once
}

// kindPaths maps each transaction kind to its collection path.
var kindPaths = map[core.Kind]string{
	core.KindExpense: "expenses",
	core.KindIncome:  "incomes",
	core.KindBill:    "bills",
	core.KindDebt:    "debts",
	core.KindSaving:  "savings",
}

var rolePaths = map[core.EntityRole]string{
	core.RoleClient:   "clients",
	core.RoleSupplier: "suppliers",
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		ledger:     cfg.Ledger,
		categories: cfg.Categories,
		bridge:     cfg.Bridge,
		db:         cfg.DB,
		logger:     logger,
		limiter:    ratelimit.NewLimiter(cfg.RateLimit),
		detector:   security.NewDetector(),
		now:        time.Now,
	}

	api := http.NewServeMux()
	for kind, path := range kindPaths {
		s.routeKind(api, kind, "/api/"+path)
	}
	for role, path := range rolePaths {
		s.routeEntity(api, role, "/api/"+path)
	}
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("PATCH /api/categories/{id}", s.handleRenameCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	api.HandleFunc("GET /api/budgets", s.handleListBudgets)
	api.HandleFunc("GET /api/budgets/{year}/{month}", s.handleGetBudget)
	api.HandleFunc("GET /api/overview", s.handleOverview)
	api.HandleFunc("/api/", s.handleNotFound)

	var protected http.Handler = api
	protected = s.limitWrites(protected)
	protected = auth.Middleware(cfg.Tokens, writeError)(protected)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/api/", protected)
	root.HandleFunc("/", s.handleNotFound)

	var h http.Handler = root
	h = s.recoverer(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = log.AccessLog(s.detector.ExtractClientIP)(h)
	h = log.Middleware(logger, trace.FromRequest)(h)
	h = trace.RequestID(h)
	s.Handler = h

	return s
}

func (s *Server) routeKind(mux *http.ServeMux, kind core.Kind, base string) {
	mux.HandleFunc("GET "+base, s.handleListTransactions(kind))
	mux.HandleFunc("POST "+base, s.handleCreateTransaction(kind))
	mux.HandleFunc("PATCH "+base+"/{id}", s.handleUpdateTransaction(kind))
	mux.HandleFunc("DELETE "+base+"/{id}", s.handleDeleteTransaction(kind))
}

func (s *Server) routeEntity(mux *http.ServeMux, role core.EntityRole, base string) {
	mux.HandleFunc("GET "+base, s.handleListEntities(role))
	mux.HandleFunc("POST "+base, s.handleCreateEntity(role))
	mux.HandleFunc("GET "+base+"/{id}", s.handleGetEntity(role))
	mux.HandleFunc("PUT "+base+"/{id}", s.handleUpdateEntity(role))
	mux.HandleFunc("DELETE "+base+"/{id}", s.handleDeleteEntity(role))
	mux.HandleFunc("POST "+base+"/{id}/sync", s.handleSyncEntity(role))
	mux.HandleFunc("GET "+base+"/{id}/stats", s.handleEntityStats(role))
}

// limitWrites rate-limits mutating requests per caller.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(
		func(r *http.Request) string {
			if id := auth.UserFrom(r.Context()); id != "" {
				return "user:" + id
			}
			return "ip:" + s.detector.ExtractClientIP(r)
		},
		func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
				"Rate limit exceeded",
				log.FieldErrorType, log.ErrorTypeRateLimited,
				log.FieldPath, r.URL.Path)
			writeError(w, r, errRateLimited)
		})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panicked",
					"panic", rec,
					"stack", string(debug.Stack()))
				writeError(w, r, errPanic)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
