package sqlite

import (
	"context"
	"fmt"
	"strings"
)

// CategoryListing renders the taxonomy as prompt context, one
// "Category > Subcategory (Type)" line per row.
func (s *Store) CategoryListing(ctx context.Context) (string, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s > %s (%s)\n", c.Name, c.Subcategory, c.Type)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// AccountListing renders the known accounts as prompt context.
func (s *Store) AccountListing(ctx context.Context) (string, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, a := range accounts {
		fmt.Fprintf(&b, "- %s (%s, %s)\n", a.Name, a.Type, a.Currency)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// PortfolioListing renders open positions as prompt context so the model
// can resolve loose symbol mentions ("sold my index fund") to held symbols.
func (s *Store) PortfolioListing(ctx context.Context) (string, error) {
	positions, err := s.Positions(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range positions {
		if p.Shares <= 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %g shares @ %.2f %s in %s\n",
			p.Symbol, p.Shares, p.AvgCost, p.Currency, p.Account)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
