package interpret

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danangw/duitku/internal/amount"
	"github.com/danangw/duitku/internal/domain"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(amount.NewParser("Rp"), "IDR")
}

func TestNormalize_PlainJSON(t *testing.T) {
	n := newTestNormalizer()

	res := n.Normalize(`{
		"amount": 20000,
		"category": "Food",
		"subcategory": "Coffee",
		"account": "Wallet",
		"note": "coffee",
		"transaction_kind": "Expense",
		"currency": "IDR",
		"is_flagged": false,
		"confidence": 0.95
	}`)

	assert.False(t, res.Recovered)
	assert.Equal(t, 20000.0, res.Record.Amount)
	assert.Equal(t, "Food", res.Record.Category)
	assert.Equal(t, "Coffee", res.Record.Subcategory)
	assert.Equal(t, domain.KindExpense, res.Record.Kind)
	assert.False(t, res.Record.IsFlagged)
	assert.Equal(t, 0.95, res.Record.Confidence)
}

func TestNormalize_FencedJSON(t *testing.T) {
	n := newTestNormalizer()

	res := n.Normalize("```json\n{\"amount\": 500, \"transaction_kind\": \"Income\"}\n```")

	assert.False(t, res.Recovered)
	assert.Equal(t, 500.0, res.Record.Amount)
	assert.Equal(t, domain.KindIncome, res.Record.Kind)
}

func TestNormalize_Defaults(t *testing.T) {
	n := newTestNormalizer()

	res := n.Normalize(`{}`)

	assert.False(t, res.Recovered)
	assert.Equal(t, 0.0, res.Record.Amount)
	assert.Equal(t, "Miscellaneous", res.Record.Category)
	assert.Equal(t, "Other", res.Record.Subcategory)
	assert.Equal(t, "Wallet", res.Record.Account)
	assert.Equal(t, domain.KindExpense, res.Record.Kind)
	assert.Equal(t, "IDR", res.Record.Currency)
	assert.False(t, res.Record.IsFlagged)
	assert.Equal(t, 0.5, res.Record.Confidence)
	assert.Nil(t, res.Record.Shares)
	assert.Nil(t, res.Record.PricePerShare)
}

func TestNormalize_StringAmounts(t *testing.T) {
	n := newTestNormalizer()

	res := n.Normalize(`{"amount": "20k", "shares": "1.5", "price_per_share": "$400"}`)

	assert.Equal(t, 20000.0, res.Record.Amount)
	require.NotNil(t, res.Record.Shares)
	assert.Equal(t, 1.5, *res.Record.Shares)
	require.NotNil(t, res.Record.PricePerShare)
	assert.Equal(t, 400.0, *res.Record.PricePerShare)
}

func TestNormalize_GarbageRecovers(t *testing.T) {
	n := newTestNormalizer()

	res := n.Normalize("sorry, I could not parse that")

	assert.True(t, res.Recovered)
	assert.True(t, res.Record.IsFlagged)
	assert.Equal(t, 0.0, res.Record.Confidence)
	assert.Equal(t, 0.0, res.Record.Amount)
	assert.Equal(t, domain.KindExpense, res.Record.Kind)
	assert.NotEmpty(t, res.Record.FlagReason)
}

func TestNormalize_UnknownKindRecovers(t *testing.T) {
	n := newTestNormalizer()

	res := n.Normalize(`{"transaction_kind": "Donation"}`)

	assert.True(t, res.Recovered)
	assert.True(t, res.Record.IsFlagged)
	assert.Equal(t, domain.KindExpense, res.Record.Kind)
}

func TestNormalize_TradeWithoutSymbolFlagged(t *testing.T) {
	n := newTestNormalizer()

	res := n.Normalize(`{"amount": 350000, "transaction_kind": "Trade_Buy"}`)

	assert.False(t, res.Recovered)
	assert.True(t, res.Record.IsFlagged)
	assert.Equal(t, domain.KindTradeBuy, res.Record.Kind)
}

// Feeding the normalizer its own fallback record, re-serialized, must
// reproduce the same flagged record.
func TestNormalize_DegradedPathRoundTrip(t *testing.T) {
	n := newTestNormalizer()

	first := n.Normalize("complete garbage")
	require.True(t, first.Recovered)

	serialized, err := json.Marshal(first.Record)
	require.NoError(t, err)

	second := n.Normalize(string(serialized))
	assert.Equal(t, first.Record, second.Record)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no fence", input: `{"a":1}`, want: `{"a":1}`},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "opener only", input: "```json\n{\"a\":1}", want: `{"a":1}`},
		{name: "surrounding whitespace", input: "  ```\n{\"a\":1}\n```  ", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.input))
		})
	}
}
