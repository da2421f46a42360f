// Package fx supplies the USD to local-currency exchange rate with a
// time-bounded cache and a provider fallback chain. Every failure path
// degrades to a usable value; callers never see an error.
package fx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long a fetched rate stays fresh.
const DefaultTTL = time.Hour

// DefaultFallbackRate approximates USD/IDR when no provider has ever
// answered. Override per deployment via SetFallback.
const DefaultFallbackRate = 16000.0

// Provider fetches the rate for one upstream endpoint.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, client *resty.Client, symbol string) (float64, error)
}

// Service caches the USD to local-currency rate. It is constructed
// explicitly and passed to callers that need it; there is no package-level
// cache state.
type Service struct {
	client    *resty.Client
	providers []Provider
	symbol    string
	ttl       time.Duration
	log       zerolog.Logger

	mu        sync.Mutex
	cached    float64
	fetchedAt time.Time
	fallback  float64

	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithProviders replaces the default provider chain.
func WithProviders(providers ...Provider) Option {
	return func(s *Service) { s.providers = providers }
}

// WithTTL overrides the cache time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a rate service for the given local currency symbol
// (e.g. "IDR").
func NewService(symbol string, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		client:    resty.New().SetTimeout(10 * time.Second),
		providers: []Provider{&exchangerateHost{}, &frankfurter{}},
		symbol:    symbol,
		ttl:       DefaultTTL,
		fallback:  DefaultFallbackRate,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rate returns a positive USD to local-currency rate. A cached value
// younger than the TTL is returned without network access. Otherwise the
// providers are tried in order; on success the cache is overwritten. When
// every provider fails, the previous cached value is returned if one
// exists, else the fallback constant.
func (s *Service) Rate(ctx context.Context) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached > 0 && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.cached
	}

	for _, p := range s.providers {
		rate, err := p.Fetch(ctx, s.client, s.symbol)
		if err != nil {
			s.log.Debug().Err(err).Str("provider", p.Name()).Msg("rate provider failed")
			continue
		}
		if rate <= 0 {
			s.log.Debug().Str("provider", p.Name()).Float64("rate", rate).Msg("rate provider returned unusable value")
			continue
		}
		s.cached = rate
		s.fetchedAt = s.now()
		s.log.Info().Str("provider", p.Name()).Float64("rate", rate).Msg("exchange rate refreshed")
		return rate
	}

	if s.cached > 0 {
		s.log.Warn().Float64("rate", s.cached).Msg("all rate providers failed, using stale cached rate")
		return s.cached
	}

	s.log.Warn().Float64("rate", s.fallback).Msg("all rate providers failed, using fallback rate")
	return s.fallback
}

// SetFallback overrides the fallback constant, e.g. for deterministic
// testing or manual rate pinning.
func (s *Service) SetFallback(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = rate
}

// Convert turns a USD amount into the local currency at the given rate.
func Convert(usdAmount, rate float64) float64 {
	return usdAmount * rate
}

// exchangerateHost is the primary provider (free tier, no key).
type exchangerateHost struct {
	baseURL string
}

func (p *exchangerateHost) Name() string { return "exchangerate.host" }

func (p *exchangerateHost) Fetch(ctx context.Context, client *resty.Client, symbol string) (float64, error) {
	base := p.baseURL
	if base == "" {
		base = "https://api.exchangerate.host"
	}

	var body struct {
		Success bool               `json:"success"`
		Rates   map[string]float64 `json:"rates"`
	}

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"base": "USD", "symbols": symbol}).
		SetResult(&body).
		ForceContentType("application/json").
		Get(base + "/latest")
	if err != nil {
		return 0, fmt.Errorf("exchangerate.host: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("exchangerate.host: status %s", resp.Status())
	}
	if !body.Success {
		return 0, fmt.Errorf("exchangerate.host: unsuccessful response")
	}
	rate, ok := body.Rates[symbol]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("exchangerate.host: no %s rate in response", symbol)
	}
	return rate, nil
}

// frankfurter is the secondary provider, tried only when the primary fails.
type frankfurter struct {
	baseURL string
}

func (p *frankfurter) Name() string { return "frankfurter.app" }

func (p *frankfurter) Fetch(ctx context.Context, client *resty.Client, symbol string) (float64, error) {
	base := p.baseURL
	if base == "" {
		base = "https://api.frankfurter.app"
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"from": "USD", "to": symbol}).
		SetResult(&body).
		ForceContentType("application/json").
		Get(base + "/latest")
	if err != nil {
		return 0, fmt.Errorf("frankfurter.app: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("frankfurter.app: status %s", resp.Status())
	}
	rate, ok := body.Rates[symbol]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("frankfurter.app: no %s rate in response", symbol)
	}
	return rate, nil
}
