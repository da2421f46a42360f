package interpret

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danangw/duitku/internal/amount"
	"github.com/danangw/duitku/internal/domain"
)

// Result is the outcome of normalizing raw model output. Recovered marks a
// record rebuilt from defaults after a parse failure; such records are
// flagged for human review but still usable downstream.
type Result struct {
	Record    domain.TransactionRecord
	Recovered bool
	Reason    string
}

// Normalizer turns raw inference text into a validated TransactionRecord.
// It never fails: any parse or coercion error degrades to a flagged,
// zero-confidence record.
type Normalizer struct {
	amounts       *amount.Parser
	localCurrency string
}

// NewNormalizer creates a Normalizer for the given local currency.
func NewNormalizer(amounts *amount.Parser, localCurrency string) *Normalizer {
	return &Normalizer{amounts: amounts, localCurrency: localCurrency}
}

// Normalize extracts the JSON object from raw response text, coerces and
// defaults its fields, and produces a TransactionRecord.
func (n *Normalizer) Normalize(raw string) Result {
	cleaned := stripFences(raw)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return n.recovered(fmt.Sprintf("response parsing error: %v", err))
	}

	rec := domain.TransactionRecord{
		Category:    stringField(obj, "category", "Miscellaneous"),
		Subcategory: stringField(obj, "subcategory", "Other"),
		Account:     stringField(obj, "account", "Wallet"),

		DestinationAccount: stringField(obj, "destination_account", ""),
		SourceAccount:      stringField(obj, "source_account", ""),

		Note:             stringField(obj, "note", ""),
		Kind:             domain.Kind(stringField(obj, "transaction_kind", string(domain.KindExpense))),
		Currency:         stringField(obj, "currency", n.localCurrency),
		InvestmentSymbol: stringField(obj, "investment_symbol", ""),

		IsFlagged:  boolField(obj, "is_flagged", false),
		FlagReason: stringField(obj, "flag_reason", ""),
		Confidence: floatField(obj, "confidence", 0.5),
	}

	if v, err := n.amounts.ParseValue(obj["amount"]); err == nil {
		rec.Amount = v
	}
	if v, err := n.amounts.ParseValue(obj["shares"]); err == nil {
		rec.Shares = &v
	}
	if v, err := n.amounts.ParseValue(obj["price_per_share"]); err == nil {
		rec.PricePerShare = &v
	}

	if !rec.Kind.Valid() {
		return n.recovered(fmt.Sprintf("unrecognized transaction kind %q", rec.Kind))
	}

	if rec.Kind.IsTrade() && rec.InvestmentSymbol == "" && !rec.IsFlagged {
		rec.IsFlagged = true
		rec.FlagReason = "trade without an investment symbol"
	}
	if rec.IsFlagged && rec.FlagReason == "" {
		rec.FlagReason = "flagged by model without a reason"
	}

	return Result{Record: rec}
}

// recovered builds the degraded fallback record. The pipeline always yields
// a record instead of propagating an error to the orchestrator; the flag
// routes it to human review.
func (n *Normalizer) recovered(reason string) Result {
	return Result{
		Record: domain.TransactionRecord{
			Amount:      0,
			Category:    "Miscellaneous",
			Subcategory: "Other",
			Account:     "Wallet",
			Note:        "Failed to parse extraction",
			Kind:        domain.KindExpense,
			Currency:    n.localCurrency,
			IsFlagged:   true,
			FlagReason:  reason,
			Confidence:  0,
		},
		Recovered: true,
		Reason:    reason,
	}
}

// stripFences removes an enclosing Markdown code fence: the first line when
// it opens a fence and the last line when it closes one.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stringField(m map[string]interface{}, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func boolField(m map[string]interface{}, key string, fallback bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return fallback
}

func floatField(m map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return fallback
}
