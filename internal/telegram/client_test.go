package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danangw/duitku/internal/domain"
	"github.com/danangw/duitku/internal/ledger"
	"github.com/danangw/duitku/internal/tracker"
)

func TestParseUpdate(t *testing.T) {
	body := `{
		"update_id": 7,
		"message": {
			"message_id": 1,
			"chat": {"id": 42},
			"caption": "receipt",
			"photo": [
				{"file_id": "small", "width": 90, "height": 90},
				{"file_id": "big", "width": 800, "height": 600}
			]
		}
	}`

	u, err := ParseUpdate(strings.NewReader(body))
	require.NoError(t, err)
	require.NotNil(t, u.Message)
	assert.Equal(t, int64(42), u.Message.Chat.ID)
	assert.Equal(t, "big", u.Message.BestPhoto())
	assert.Equal(t, "receipt", u.Message.Body())
}

func TestParseUpdate_Garbage(t *testing.T) {
	_, err := ParseUpdate(strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestIsAuthorized(t *testing.T) {
	c := NewClient("tok", 42, zerolog.Nop())
	assert.True(t, c.IsAuthorized(42))
	assert.False(t, c.IsAuthorized(43))
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true, "result": {}}`))
	}))
	defer server.Close()

	c := NewClient("tok", 42, zerolog.Nop())
	c.SetBaseURL(server.URL)

	require.NoError(t, c.SendMessage(context.Background(), 42, "hello"))
	assert.Equal(t, "/bottok/sendMessage", gotPath)
	assert.Equal(t, float64(42), gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestSendMessage_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok": false, "description": "bot was blocked"}`))
	}))
	defer server.Close()

	c := NewClient("tok", 42, zerolog.Nop())
	c.SetBaseURL(server.URL)

	err := c.SendMessage(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot was blocked")
}

func TestDownloadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			assert.Equal(t, "photo123", r.URL.Query().Get("file_id"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok": true, "result": {"file_path": "photos/img.jpg"}}`))
		case strings.HasSuffix(r.URL.Path, "/photos/img.jpg"):
			w.Write([]byte("jpegbytes"))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewClient("tok", 42, zerolog.Nop())
	c.SetBaseURL(server.URL)

	data, err := c.DownloadFile(context.Background(), "photo123")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegbytes"), data)
}

func TestFormatAmount(t *testing.T) {
	f := Formatter{LocalCurrency: "IDR", LocalPrefix: "Rp"}

	assert.Equal(t, "Rp 20.000", f.FormatAmount("IDR", 20000))
	assert.Equal(t, "Rp 1.500.000", f.FormatAmount("", 1500000))
	assert.Equal(t, "Rp 950", f.FormatAmount("idr", 950))
	assert.Equal(t, "Rp -20.000", f.FormatAmount("IDR", -20000))
	assert.Equal(t, "USD 100.50", f.FormatAmount("USD", 100.5))
}

func TestConfirmation_Expense(t *testing.T) {
	f := Formatter{LocalCurrency: "IDR", LocalPrefix: "Rp"}
	out := &tracker.Outcome{
		Record: domain.TransactionRecord{
			Amount: 20000, Category: "Food", Subcategory: "Coffee",
			Account: "Wallet", Kind: domain.KindExpense, Currency: "IDR",
		},
		Applied: &ledger.ApplyResult{},
	}

	text := f.Confirmation(out)
	assert.Contains(t, text, "Recorded expense of Rp 20.000 from Wallet (Food > Coffee)")
}

func TestConfirmation_SellMentionsGain(t *testing.T) {
	f := Formatter{LocalCurrency: "IDR", LocalPrefix: "Rp"}
	out := &tracker.Outcome{
		Record: domain.TransactionRecord{
			Amount: 450000, Account: "Brokerage",
			Kind: domain.KindTradeSell, Currency: "IDR", InvestmentSymbol: "BBCA",
		},
		Applied: &ledger.ApplyResult{Shares: 50, PricePerShare: 9000, CapitalGain: 50000},
	}

	text := f.Confirmation(out)
	assert.Contains(t, text, "Recorded sell: 50 BBCA")
	assert.Contains(t, text, "Realized gain: Rp 50.000")
}

func TestConfirmation_RecoveredMentionsPlaceholder(t *testing.T) {
	f := Formatter{LocalCurrency: "IDR", LocalPrefix: "Rp"}
	out := &tracker.Outcome{
		Record: domain.TransactionRecord{
			Kind: domain.KindExpense, IsFlagged: true, Currency: "IDR",
		},
		Applied:   &ledger.ApplyResult{},
		Recovered: true,
		Reason:    "invalid JSON",
	}

	text := f.Confirmation(out)
	assert.Contains(t, text, "flagged placeholder")
	assert.Contains(t, text, "invalid JSON")
}
