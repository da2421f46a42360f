// Package amount parses locale-flavored numeric text into float values.
// It understands the shorthand suffixes "k" (thousands) and "jt" (millions)
// commonly used in Indonesian money amounts, and strips currency symbols
// before parsing.
package amount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparseable is returned when the input cannot be interpreted as a
// number. Callers are expected to apply a default rather than fail.
var ErrUnparseable = errors.New("unparseable amount")

// Parser normalizes amount text for one local currency. PrefixToken is the
// local-currency symbol stripped before parsing (e.g. "Rp").
type Parser struct {
	PrefixToken string
}

// NewParser returns a Parser that strips the given local-currency prefix.
func NewParser(prefixToken string) *Parser {
	return &Parser{PrefixToken: prefixToken}
}

// Parse converts a string like "20k", "1.5jt", "$100" or "Rp 20.000" into a
// float64. Suffix detection is mutually exclusive, tested "k" before "jt";
// the first match wins. It never panics on malformed input.
func (p *Parser) Parse(s string) (float64, error) {
	cleaned := strings.ToLower(strings.TrimSpace(s))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	if p.PrefixToken != "" {
		cleaned = strings.ReplaceAll(cleaned, strings.ToLower(p.PrefixToken), "")
	}
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}

	multiplier := decimal.NewFromInt(1)
	switch {
	case strings.Contains(cleaned, "k"):
		multiplier = decimal.NewFromInt(1_000)
		cleaned = strings.ReplaceAll(cleaned, "k", "")
	case strings.Contains(cleaned, "jt"):
		multiplier = decimal.NewFromInt(1_000_000)
		cleaned = strings.ReplaceAll(cleaned, "jt", "")
	}

	d, err := decimal.NewFromString(strings.TrimSpace(cleaned))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}

	return d.Mul(multiplier).InexactFloat64(), nil
}

// ParseValue accepts a value that is either already numeric or a string in
// any format Parse understands. A nil value yields ErrUnparseable so the
// caller can keep its default.
func (p *Parser) ParseValue(v interface{}) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, ErrUnparseable
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		return p.Parse(val)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrUnparseable, v)
	}
}
