// Package tracker orchestrates one message's journey: prompt assembly,
// model inference, normalization, currency resolution, and the ledger
// write, returning a user-facing outcome.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danangw/duitku/internal/domain"
	"github.com/danangw/duitku/internal/interpret"
	"github.com/danangw/duitku/internal/ledger"
)

// Inference produces raw model output for one request.
type Inference interface {
	Invoke(ctx context.Context, req interpret.Request) (string, error)
}

// Rates resolves the USD to local-currency exchange rate.
type Rates interface {
	Rate(ctx context.Context) float64
}

// ContextSource supplies the reference listings injected into the prompt.
type ContextSource interface {
	CategoryListing(ctx context.Context) (string, error)
	AccountListing(ctx context.Context) (string, error)
	PortfolioListing(ctx context.Context) (string, error)
}

// Applier executes the bookkeeping for one normalized record.
type Applier interface {
	Apply(ctx context.Context, rec domain.TransactionRecord, rate float64, date time.Time) (*ledger.ApplyResult, error)
}

// Input is one user message, text and/or photo.
type Input struct {
	Text      string
	Image     []byte
	ImageMIME string
}

// Outcome is the processed result handed back to the transport layer.
type Outcome struct {
	Record    domain.TransactionRecord
	Applied   *ledger.ApplyResult
	Recovered bool
	Reason    string
}

// Tracker wires the pipeline stages together.
type Tracker struct {
	source        ContextSource
	inference     Inference
	normalizer    *interpret.Normalizer
	rates         Rates
	engine        Applier
	localCurrency string
	log           zerolog.Logger
	now           func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the transaction-date clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker.
func New(source ContextSource, inference Inference, normalizer *interpret.Normalizer,
	rates Rates, engine Applier, localCurrency string, log zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		source:        source,
		inference:     inference,
		normalizer:    normalizer,
		rates:         rates,
		engine:        engine,
		localCurrency: localCurrency,
		log:           log,
		now:           time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Process runs the full pipeline for one message. Errors from Process mean
// nothing was written, with the one exception of *ledger.PartialWriteError,
// which reports exactly what was.
func (t *Tracker) Process(ctx context.Context, in Input) (*Outcome, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Image) == 0 {
		return nil, fmt.Errorf("%w: empty message", ledger.ErrMissingContext)
	}

	categories, err := t.source.CategoryListing(ctx)
	if err != nil {
		return nil, fmt.Errorf("load category listing: %w", err)
	}
	accounts, err := t.source.AccountListing(ctx)
	if err != nil {
		return nil, fmt.Errorf("load account listing: %w", err)
	}
	if categories == "" || accounts == "" {
		return nil, fmt.Errorf("%w: category and account listings must be seeded before use", ledger.ErrMissingContext)
	}
	portfolio, err := t.source.PortfolioListing(ctx)
	if err != nil {
		return nil, fmt.Errorf("load portfolio listing: %w", err)
	}

	date := t.now()
	prompt := interpret.BuildPrompt(interpret.PromptContext{
		UserMessage:      in.Text,
		CategoryListing:  categories,
		AccountListing:   accounts,
		PortfolioListing: portfolio,
		CurrentDate:      date.Format("2006-01-02"),
		LocalCurrency:    t.localCurrency,
	})

	raw, err := t.inference.Invoke(ctx, interpret.Request{
		Prompt:    prompt,
		Image:     in.Image,
		ImageMIME: in.ImageMIME,
	})
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	result := t.normalizer.Normalize(raw)
	rec := result.Record
	if result.Recovered {
		t.log.Warn().Str("reason", result.Reason).Msg("extraction unusable, recording flagged fallback")
	}

	rate := 0.0
	if rec.Kind.IsTrade() || !strings.EqualFold(rec.Currency, t.localCurrency) {
		rate = t.rates.Rate(ctx)
	}

	applied, err := t.engine.Apply(ctx, rec, rate, date)
	if err != nil {
		return nil, err
	}

	t.log.Info().
		Str("kind", string(rec.Kind)).
		Float64("amount", rec.Amount).
		Str("category", rec.Category).
		Bool("flagged", rec.IsFlagged).
		Msg("transaction recorded")

	return &Outcome{
		Record:    rec,
		Applied:   applied,
		Recovered: result.Recovered,
		Reason:    result.Reason,
	}, nil
}
