// Package api wires the HTTP surface of the catalog onto a chi router.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/matiasleandrokruk/calcatalog/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/calcatalog/internal/api/middleware"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
	pkgauth "github.com/matiasleandrokruk/calcatalog/pkg/auth"
)

// Deps are the collaborators the router serves. Resolver and Executor are
// required. The admin surface (/auth/token and /api/v1/admin/*) is mounted
// only when Issuer is set; Reload and Journal may each be nil.
type Deps struct {
	Resolver          calculator.Resolver
	Executor          handlers.Executor
	Logger            *slog.Logger
	Issuer            *pkgauth.Issuer
	AdminPasswordHash string
	Reload            handlers.ReloadFunc
	Journal           handlers.JournalReader
}

// NewRouter creates the chi router with every route.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	catalog := handlers.NewCatalogHandler(deps.Resolver)
	execute := handlers.NewExecuteHandler(deps.Executor)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/calculators", func(r chi.Router) {
			r.Get("/", catalog.ListCalculators)         // GET /api/v1/calculators
			r.Get("/search", catalog.SearchCalculators) // GET /api/v1/calculators/search?q=
			r.Get("/{id}", catalog.GetCalculator)       // GET /api/v1/calculators/{id}
			r.Post("/{id}/execute", execute.Execute)    // POST /api/v1/calculators/{id}/execute
		})
		r.Get("/categories", catalog.ListCategories)  // GET /api/v1/categories
		r.Get("/catalog/audit", catalog.AuditCatalog) // GET /api/v1/catalog/audit

		if deps.Issuer == nil {
			return
		}
		admin := handlers.NewAdminHandler(deps.Reload, deps.Journal)
		r.Route("/admin", func(r chi.Router) {
			r.Use(apmiddleware.Auth(deps.Issuer, pkgauth.RoleAdmin))
			r.Use(apmiddleware.AdminAudit)

			r.Post("/reload", admin.Reload)             // POST /api/v1/admin/reload
			r.Get("/journal", admin.Journal)            // GET /api/v1/admin/journal
			r.Get("/journal/stats", admin.JournalStats) // GET /api/v1/admin/journal/stats
		})
	})

	if deps.Issuer != nil {
		token := handlers.NewTokenHandler(deps.Issuer, deps.AdminPasswordHash)
		r.Post("/auth/token", token.IssueToken) // POST /auth/token
	}

	return r
}
