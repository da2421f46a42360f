// Package handlers implements the HTTP endpoints: the Telegram webhook,
// a synchronous test endpoint, and read access to the ledger.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/danangw/duitku/internal/api/middleware"
	"github.com/danangw/duitku/internal/domain"
	"github.com/danangw/duitku/internal/jobs"
	"github.com/danangw/duitku/internal/ledger"
	"github.com/danangw/duitku/internal/telegram"
	"github.com/danangw/duitku/internal/tracker"
)

// Pipeline processes one message synchronously.
type Pipeline interface {
	Process(ctx context.Context, in tracker.Input) (*tracker.Outcome, error)
}

// WebhookHandler accepts Telegram webhook deliveries and enqueues them.
type WebhookHandler struct {
	bot       *telegram.Client
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(bot *telegram.Client, publisher jobs.Publisher, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{bot: bot, publisher: publisher, log: log}
}

// HandleUpdate handles POST /webhook/telegram. It always answers 200 so
// Telegram does not redeliver; unauthorized chats are dropped silently.
func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	update, err := telegram.ParseUpdate(r.Body)
	if err != nil {
		h.log.Warn().Err(err).Msg("Malformed webhook payload")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid update")
		return
	}

	if update.Message == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	chatID := update.Message.Chat.ID
	if !h.bot.IsAuthorized(chatID) {
		h.log.Warn().Int64("chat_id", chatID).Msg("Dropping message from unauthorized chat")
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	job := &jobs.InterpretMessageJob{
		ChatID:      chatID,
		Text:        update.Message.Body(),
		PhotoFileID: update.Message.BestPhoto(),
	}
	if err := h.publisher.PublishInterpretMessage(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue message")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue message")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "queued",
		"job_id": job.JobID,
	})
}

// TransactionsHandler runs the pipeline synchronously, for manual testing
// without a Telegram round trip.
type TransactionsHandler struct {
	pipeline Pipeline
	log      zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(pipeline Pipeline, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{pipeline: pipeline, log: log}
}

// Create handles POST /test/transaction.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, err := h.pipeline.Process(r.Context(), tracker.Input{Text: req.Text})
	if err != nil {
		var partial *ledger.PartialWriteError
		switch {
		case errors.Is(err, ledger.ErrMissingContext):
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &partial):
			h.log.Error().Err(err).Msg("Partial ledger write")
			middleware.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error":   "partial write, manual reconciliation required",
				"written": partial.Written,
			})
		default:
			h.log.Error().Err(err).Msg("Failed to process transaction")
			middleware.WriteError(w, http.StatusBadGateway, "Failed to process transaction")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"record":    out.Record,
		"entries":   out.Applied.Entries,
		"recovered": out.Recovered,
	})
}

// LedgerReader is the read surface the ledger endpoints need.
type LedgerReader interface {
	Entries(ctx context.Context, year, month int) ([]domain.Entry, error)
	Positions(ctx context.Context) ([]domain.Position, error)
	Budgets(ctx context.Context) ([]domain.Budget, error)
	SpentByCategory(ctx context.Context, year, month int) (map[string]float64, error)
}

// LedgerHandler serves read access to entries, positions, and summaries.
type LedgerHandler struct {
	store LedgerReader
	log   zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(store LedgerReader, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{store: store, log: log}
}

func monthParams(r *http.Request) (int, int) {
	now := time.Now()
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year == 0 {
		year = now.Year()
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 0 || month > 12 {
		month = int(now.Month())
	}
	return year, month
}

// ListEntries handles GET /api/entries.
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	year, month := monthParams(r)

	entries, err := h.store.Entries(r.Context(), year, month)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list entries")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list entries")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"year":    year,
		"month":   month,
	})
}

// ListPositions handles GET /api/positions.
func (h *LedgerHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.Positions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list positions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list positions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
	})
}

// Summary handles GET /api/summary.
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	year, month := monthParams(r)

	s, err := tracker.Summarize(r.Context(), h.store, year, time.Month(month))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, s)
}

// JobsHandler reports interpretation job progress.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{jobID}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// Health handles GET /health, including a store liveness probe.
func (h *LedgerHandler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Budgets(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Health check failed")
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  "unreachable",
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
