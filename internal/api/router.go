// Package api assembles the HTTP router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/danangw/duitku/internal/api/handlers"
	"github.com/danangw/duitku/internal/api/middleware"
	"github.com/danangw/duitku/internal/jobs"
	"github.com/danangw/duitku/internal/telegram"
)

// Deps carries everything the router serves.
type Deps struct {
	Bot       *telegram.Client
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	Pipeline  handlers.Pipeline
	Ledger    handlers.LedgerReader
	Log       zerolog.Logger
}

// NewRouter builds the HTTP handler tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.Logger(d.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         3600,
	}))

	webhook := handlers.NewWebhookHandler(d.Bot, d.Publisher, d.Log)
	transactions := handlers.NewTransactionsHandler(d.Pipeline, d.Log)
	ledgerH := handlers.NewLedgerHandler(d.Ledger, d.Log)
	jobsH := handlers.NewJobsHandler(d.JobStore, d.Log)

	r.Get("/health", ledgerH.Health)
	r.Post("/webhook/telegram", webhook.HandleUpdate)
	r.Post("/test/transaction", transactions.Create)

	r.Route("/api", func(r chi.Router) {
		r.Get("/entries", ledgerH.ListEntries)
		r.Get("/positions", ledgerH.ListPositions)
		r.Get("/summary", ledgerH.Summary)
		r.Get("/jobs/{jobID}", jobsH.GetJob)
	})

	return r
}
