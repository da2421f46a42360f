package telegram

import (
	"fmt"
	"strings"

	"github.com/danangw/duitku/internal/domain"
	"github.com/danangw/duitku/internal/tracker"
)

// Formatter renders pipeline outcomes as chat replies. Local-currency
// amounts use the configured prefix with "." thousands separators, the way
// Indonesian amounts are conventionally written.
type Formatter struct {
	LocalCurrency string
	LocalPrefix   string
}

// FormatAmount renders one amount in the given currency.
func (f Formatter) FormatAmount(currency string, amount float64) string {
	if currency == "" || strings.EqualFold(currency, f.LocalCurrency) {
		return fmt.Sprintf("%s %s", f.LocalPrefix, groupThousands(amount))
	}
	return fmt.Sprintf("%s %.2f", strings.ToUpper(currency), amount)
}

func groupThousands(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%.0f", amount)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
		if len(s) > lead {
			b.WriteByte('.')
		}
	}
	for i := lead; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Confirmation renders the reply for one recorded transaction.
func (f Formatter) Confirmation(out *tracker.Outcome) string {
	rec := out.Record

	var b strings.Builder
	switch rec.Kind {
	case domain.KindTransfer:
		fmt.Fprintf(&b, "Recorded transfer of %s from %s to %s",
			f.FormatAmount(rec.Currency, rec.Amount), rec.Account, rec.DestinationAccount)
	case domain.KindTradeBuy:
		fmt.Fprintf(&b, "Recorded buy: %g %s @ %s from %s",
			out.Applied.Shares, rec.InvestmentSymbol,
			f.FormatAmount(rec.Currency, out.Applied.PricePerShare), rec.Account)
		if out.Applied.DegradedTrade {
			b.WriteString("\nShares and price were missing; recorded as a single lot for review.")
		}
	case domain.KindTradeSell:
		fmt.Fprintf(&b, "Recorded sell: %g %s for %s",
			out.Applied.Shares, rec.InvestmentSymbol,
			f.FormatAmount(rec.Currency, rec.Amount))
		fmt.Fprintf(&b, "\nRealized gain: %s", f.FormatAmount(rec.Currency, out.Applied.CapitalGain))
	case domain.KindIncome:
		fmt.Fprintf(&b, "Recorded income of %s to %s (%s > %s)",
			f.FormatAmount(rec.Currency, rec.Amount), rec.Account, rec.Category, rec.Subcategory)
	default:
		fmt.Fprintf(&b, "Recorded %s of %s from %s (%s > %s)",
			strings.ToLower(string(rec.Kind)), f.FormatAmount(rec.Currency, rec.Amount),
			rec.Account, rec.Category, rec.Subcategory)
	}

	if out.Applied != nil && out.Applied.Converted && !rec.Kind.IsTrade() {
		fmt.Fprintf(&b, "\nConverted at %s per USD.", groupThousands(out.Applied.Rate))
	}
	if out.Recovered {
		fmt.Fprintf(&b, "\nI could not read that message reliably; a flagged placeholder was saved (%s).", out.Reason)
	} else if rec.IsFlagged {
		fmt.Fprintf(&b, "\nFlagged for review: %s", rec.FlagReason)
	}

	return b.String()
}
