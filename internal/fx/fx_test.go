package fx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// stubProvider records how often it is called and returns a fixed result.
type stubProvider struct {
	name  string
	rate  float64
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, client *resty.Client, symbol string) (float64, error) {
	s.calls++
	return s.rate, s.err
}

func TestService_FallbackWhenAllProvidersFail(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("unreachable")}
	secondary := &stubProvider{name: "secondary", err: errors.New("unreachable")}

	svc := NewService("IDR", zerolog.Nop(), WithProviders(primary, secondary))

	got := svc.Rate(context.Background())
	assert.Equal(t, DefaultFallbackRate, got)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestService_SetFallback(t *testing.T) {
	failing := &stubProvider{name: "p", err: errors.New("down")}
	svc := NewService("IDR", zerolog.Nop(), WithProviders(failing))
	svc.SetFallback(15500)

	assert.Equal(t, 15500.0, svc.Rate(context.Background()))
}

func TestService_CacheWithinTTLSkipsProviders(t *testing.T) {
	provider := &stubProvider{name: "p", rate: 16123}

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService("IDR", zerolog.Nop(),
		WithProviders(provider),
		WithClock(func() time.Time { return now }),
	)

	assert.Equal(t, 16123.0, svc.Rate(context.Background()))
	assert.Equal(t, 1, provider.calls)

	// Still inside the TTL: no further provider calls.
	now = now.Add(30 * time.Minute)
	assert.Equal(t, 16123.0, svc.Rate(context.Background()))
	assert.Equal(t, 1, provider.calls)

	// Past the TTL: refetched.
	now = now.Add(45 * time.Minute)
	assert.Equal(t, 16123.0, svc.Rate(context.Background()))
	assert.Equal(t, 2, provider.calls)
}

func TestService_StaleCacheBeatsFallback(t *testing.T) {
	provider := &stubProvider{name: "p", rate: 16200}

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService("IDR", zerolog.Nop(),
		WithProviders(provider),
		WithClock(func() time.Time { return now }),
	)

	assert.Equal(t, 16200.0, svc.Rate(context.Background()))

	// Expire the cache and break the provider: the stale value survives.
	now = now.Add(2 * time.Hour)
	provider.err = errors.New("down")
	provider.rate = 0

	assert.Equal(t, 16200.0, svc.Rate(context.Background()))
}

func TestService_SecondaryProviderOnlyAfterPrimaryFails(t *testing.T) {
	primary := &stubProvider{name: "primary", rate: 16001}
	secondary := &stubProvider{name: "secondary", rate: 17000}

	svc := NewService("IDR", zerolog.Nop(), WithProviders(primary, secondary))

	assert.Equal(t, 16001.0, svc.Rate(context.Background()))
	assert.Equal(t, 0, secondary.calls)
}

func TestExchangerateHostProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD", r.URL.Query().Get("base"))
		assert.Equal(t, "IDR", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"success":true,"rates":{"IDR":16250.5}}`)
	}))
	defer srv.Close()

	p := &exchangerateHost{baseURL: srv.URL}
	rate, err := p.Fetch(context.Background(), resty.New(), "IDR")
	assert.NoError(t, err)
	assert.Equal(t, 16250.5, rate)
}

func TestFrankfurterProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates":{"IDR":16100}}`)
	}))
	defer srv.Close()

	p := &frankfurter{baseURL: srv.URL}
	rate, err := p.Fetch(context.Background(), resty.New(), "IDR")
	assert.NoError(t, err)
	assert.Equal(t, 16100.0, rate)
}

func TestExchangerateHostProvider_Unsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer srv.Close()

	p := &exchangerateHost{baseURL: srv.URL}
	_, err := p.Fetch(context.Background(), resty.New(), "IDR")
	assert.Error(t, err)
}
