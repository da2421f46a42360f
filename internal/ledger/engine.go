// Package ledger maintains the running portfolio ledger: entry appends for
// the five transaction kinds, weighted-average cost basis, and the split of
// sale proceeds into return of capital and realized gain.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/danangw/duitku/internal/domain"
)

// ApplyResult summarizes what one transaction did to the ledger.
type ApplyResult struct {
	Entries []domain.Entry

	// Converted is set when a foreign amount was converted to the local
	// currency for ledger purposes, at Rate.
	Converted bool
	Rate      float64

	// Trade details, populated for Trade_Buy/Trade_Sell after
	// reconciliation of missing shares/price.
	Shares        float64
	PricePerShare float64
	BaseCost      float64
	CapitalGain   float64

	// DegradedTrade marks the shares=1, price=amount placeholder used when
	// both shares and price were missing on a buy.
	DegradedTrade bool
}

// Engine executes the bookkeeping sequence for one validated transaction
// record. It performs no network I/O; the exchange rate is resolved by the
// caller beforehand. Position read-modify-write is serialized per symbol.
type Engine struct {
	store         Store
	localCurrency string
	log           zerolog.Logger

	mu       sync.Mutex
	symLocks map[string]*sync.Mutex
}

// NewEngine creates an Engine writing to the given store.
func NewEngine(store Store, localCurrency string, log zerolog.Logger) *Engine {
	return &Engine{
		store:         store,
		localCurrency: localCurrency,
		log:           log,
		symLocks:      make(map[string]*sync.Mutex),
	}
}

// Apply runs the bookkeeping for rec dated date, using rate for any
// foreign-to-local conversion. The record is consumed exactly once; Apply
// does not mutate it.
func (e *Engine) Apply(ctx context.Context, rec domain.TransactionRecord, rate float64, date time.Time) (*ApplyResult, error) {
	switch rec.Kind {
	case domain.KindExpense, domain.KindIncome:
		return e.applyRegular(ctx, rec, rate, date)
	case domain.KindTransfer:
		return e.applyTransfer(ctx, rec, date)
	case domain.KindTradeBuy:
		return e.applyBuy(ctx, rec, rate, date)
	case domain.KindTradeSell:
		return e.applySell(ctx, rec, rate, date)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, rec.Kind)
	}
}

func (e *Engine) applyRegular(ctx context.Context, rec domain.TransactionRecord, rate float64, date time.Time) (*ApplyResult, error) {
	res := &ApplyResult{}

	amount := rec.Amount
	note := rec.Note
	if e.isForeign(rec.Currency) {
		amount = convert(rec.Amount, rate)
		note = annotateConversion(note, rec.Currency, rec.Amount, rate)
		res.Converted = true
		res.Rate = rate
	}

	kind := domain.EntryExpense
	if rec.Kind == domain.KindIncome {
		kind = domain.EntryIncome
	}

	entry := domain.Entry{
		ID:          uuid.NewString(),
		Date:        date,
		Account:     rec.Account,
		Category:    rec.Category,
		Subcategory: rec.Subcategory,
		Note:        note,
		Amount:      amount,
		Kind:        kind,
		Status:      statusFor(rec.IsFlagged),
	}

	if err := e.store.AppendEntry(ctx, &entry); err != nil {
		return nil, fmt.Errorf("append %s entry: %w", kind, err)
	}

	res.Entries = []domain.Entry{entry}
	return res, nil
}

// applyTransfer writes the double-entry pair: money out of the source, money
// into the destination, same date and magnitude, so aggregate totals are
// unchanged.
func (e *Engine) applyTransfer(ctx context.Context, rec domain.TransactionRecord, date time.Time) (*ApplyResult, error) {
	if rec.Account == "" || rec.DestinationAccount == "" {
		return nil, fmt.Errorf("%w: transfer requires source and destination accounts", ErrMissingContext)
	}
	if err := e.resolveAccounts(ctx, rec.Account, rec.DestinationAccount); err != nil {
		return nil, err
	}

	status := statusFor(rec.IsFlagged)

	out := domain.Entry{
		ID:          uuid.NewString(),
		Date:        date,
		Account:     rec.Account,
		Category:    rec.Category,
		Subcategory: rec.Subcategory,
		Note:        joinNote(fmt.Sprintf("Transfer to %s", rec.DestinationAccount), rec.Note),
		Amount:      -rec.Amount,
		Kind:        domain.EntryTransfer,
		Status:      status,
	}
	in := domain.Entry{
		ID:          uuid.NewString(),
		Date:        date,
		Account:     rec.DestinationAccount,
		Category:    rec.Category,
		Subcategory: rec.Subcategory,
		Note:        joinNote(fmt.Sprintf("Transfer from %s", rec.Account), rec.Note),
		Amount:      rec.Amount,
		Kind:        domain.EntryTransfer,
		Status:      status,
	}

	if err := e.store.AppendEntry(ctx, &out); err != nil {
		return nil, fmt.Errorf("append transfer-out entry: %w", err)
	}
	if err := e.store.AppendEntry(ctx, &in); err != nil {
		return nil, &PartialWriteError{Written: []domain.Entry{out}, Err: err}
	}

	return &ApplyResult{Entries: []domain.Entry{out, in}}, nil
}

func (e *Engine) applyBuy(ctx context.Context, rec domain.TransactionRecord, rate float64, date time.Time) (*ApplyResult, error) {
	if rec.InvestmentSymbol == "" {
		return nil, fmt.Errorf("%w: trade requires an investment symbol", ErrMissingContext)
	}

	unlock := e.lockSymbol(rec.InvestmentSymbol)
	defer unlock()

	pos, err := e.findPosition(ctx, rec.InvestmentSymbol)
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{}

	shares, price, degraded := reconcileBuy(rec)
	res.Shares, res.PricePerShare, res.DegradedTrade = shares, price, degraded
	if degraded {
		e.log.Warn().
			Str("symbol", rec.InvestmentSymbol).
			Float64("amount", rec.Amount).
			Msg("buy with no shares or price, recording placeholder lot for review")
	}

	// The position's currency is fixed at first purchase; once it exists,
	// conversion follows the position rather than the record.
	currency := rec.Currency
	if pos != nil {
		currency = pos.Currency
	}

	amount := rec.Amount
	note := joinNote(fmt.Sprintf("Buy %s", rec.InvestmentSymbol), rec.Note)
	if e.isForeign(currency) {
		amount = convert(rec.Amount, rate)
		note = annotateConversion(note, currency, rec.Amount, rate)
		res.Converted = true
		res.Rate = rate
	}

	// Money leaves the funding account when one is named; the position
	// itself is held in rec.Account.
	fundingAccount := rec.Account
	if rec.SourceAccount != "" {
		fundingAccount = rec.SourceAccount
	}

	flagged := rec.IsFlagged || degraded
	entry := domain.Entry{
		ID:          uuid.NewString(),
		Date:        date,
		Account:     fundingAccount,
		Category:    rec.Category,
		Subcategory: rec.Subcategory,
		Note:        note,
		Amount:      amount,
		Kind:        domain.EntryAsset,
		Status:      statusFor(flagged),
	}

	if err := e.store.AppendEntry(ctx, &entry); err != nil {
		return nil, fmt.Errorf("append acquisition entry: %w", err)
	}
	res.Entries = []domain.Entry{entry}

	err = e.store.UpsertPosition(ctx, PositionUpdate{
		Symbol:      rec.InvestmentSymbol,
		SharesDelta: shares,
		Price:       price,
		Account:     rec.Account,
		Date:        date,
		Currency:    currency,
		Rate:        rate,
	})
	if err != nil {
		return nil, &PartialWriteError{Written: res.Entries, Err: fmt.Errorf("update position: %w", err)}
	}

	return res, nil
}

// applySell splits sale proceeds into return of capital (at the position's
// weighted-average cost, not the sale price) and realized gain, so income
// reporting is not distorted by the full proceeds.
func (e *Engine) applySell(ctx context.Context, rec domain.TransactionRecord, rate float64, date time.Time) (*ApplyResult, error) {
	if rec.InvestmentSymbol == "" {
		return nil, fmt.Errorf("%w: trade requires an investment symbol", ErrMissingContext)
	}

	unlock := e.lockSymbol(rec.InvestmentSymbol)
	defer unlock()

	pos, err := e.findPosition(ctx, rec.InvestmentSymbol)
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{}

	shares, price, err := reconcileSell(rec, pos)
	if err != nil {
		return nil, err
	}
	res.Shares, res.PricePerShare = shares, price

	// Cost basis comes from the position's average cost. Selling a symbol
	// never held books zero gain at the sale price.
	avgCost := price
	currency := rec.Currency
	if pos != nil {
		avgCost = pos.AvgCost
		currency = pos.Currency
	} else {
		e.log.Warn().Str("symbol", rec.InvestmentSymbol).Msg("sell for unknown position, booking zero gain")
	}

	baseCost := decimal.NewFromFloat(shares).Mul(decimal.NewFromFloat(avgCost))
	gain := decimal.NewFromFloat(rec.Amount).Sub(baseCost)
	res.BaseCost = baseCost.InexactFloat64()
	res.CapitalGain = gain.InexactFloat64()

	baseCostLocal := res.BaseCost
	gainLocal := res.CapitalGain
	if e.isForeign(currency) {
		baseCostLocal = convert(res.BaseCost, rate)
		gainLocal = convert(res.CapitalGain, rate)
		res.Converted = true
		res.Rate = rate
	}

	status := statusFor(rec.IsFlagged)

	disposal := domain.Entry{
		ID:          uuid.NewString(),
		Date:        date,
		Account:     rec.Account,
		Category:    rec.Category,
		Subcategory: rec.Subcategory,
		Note:        fmt.Sprintf("Sell %s (return of capital)", rec.InvestmentSymbol),
		Amount:      baseCostLocal,
		Kind:        domain.EntryAsset,
		Status:      status,
	}
	gainEntry := domain.Entry{
		ID:          uuid.NewString(),
		Date:        date,
		Account:     rec.Account,
		Category:    "Income",
		Subcategory: "Capital Gains",
		Note:        fmt.Sprintf("Sell %s (gain)", rec.InvestmentSymbol),
		Amount:      gainLocal,
		Kind:        domain.EntryIncome,
		Status:      status,
	}

	if err := e.store.AppendEntry(ctx, &disposal); err != nil {
		return nil, fmt.Errorf("append disposal entry: %w", err)
	}
	if err := e.store.AppendEntry(ctx, &gainEntry); err != nil {
		return nil, &PartialWriteError{Written: []domain.Entry{disposal}, Err: err}
	}
	res.Entries = []domain.Entry{disposal, gainEntry}

	err = e.store.UpsertPosition(ctx, PositionUpdate{
		Symbol:          rec.InvestmentSymbol,
		SharesDelta:     -shares,
		Price:           price,
		RealizedPLDelta: res.CapitalGain, // native currency, not converted
		Account:         rec.Account,
		Date:            date,
		Currency:        currency,
		Rate:            rate,
	})
	if err != nil {
		return nil, &PartialWriteError{Written: res.Entries, Err: fmt.Errorf("update position: %w", err)}
	}

	return res, nil
}

// reconcileBuy derives whichever of shares/price is missing from the total
// amount. When both are missing, the amount itself becomes the price with a
// single placeholder share; the flagged state surfaces this to a reviewer.
func reconcileBuy(rec domain.TransactionRecord) (shares, price float64, degraded bool) {
	hasShares := rec.Shares != nil && *rec.Shares > 0
	hasPrice := rec.PricePerShare != nil && *rec.PricePerShare > 0

	switch {
	case hasShares && hasPrice:
		return *rec.Shares, *rec.PricePerShare, false
	case !hasShares && hasPrice:
		return rec.Amount / *rec.PricePerShare, *rec.PricePerShare, false
	case hasShares && !hasPrice:
		return *rec.Shares, rec.Amount / *rec.Shares, false
	default:
		return 1, rec.Amount, true
	}
}

// reconcileSell mirrors reconcileBuy, except that when both shares and
// price are missing the position's average cost derives the share count.
func reconcileSell(rec domain.TransactionRecord, pos *domain.Position) (shares, price float64, err error) {
	hasShares := rec.Shares != nil && *rec.Shares > 0
	hasPrice := rec.PricePerShare != nil && *rec.PricePerShare > 0

	switch {
	case hasShares && hasPrice:
		return *rec.Shares, *rec.PricePerShare, nil
	case !hasShares && hasPrice:
		return rec.Amount / *rec.PricePerShare, *rec.PricePerShare, nil
	case hasShares && !hasPrice:
		return *rec.Shares, rec.Amount / *rec.Shares, nil
	default:
		if pos == nil || pos.AvgCost <= 0 {
			return 0, 0, fmt.Errorf("%w: sell without shares, price, or a known position", ErrMissingContext)
		}
		return rec.Amount / pos.AvgCost, pos.AvgCost, nil
	}
}

func (e *Engine) findPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	positions, err := e.store.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	for i := range positions {
		if strings.EqualFold(positions[i].Symbol, symbol) {
			return &positions[i], nil
		}
	}
	return nil, nil
}

// resolveAccounts verifies that every named account exists in the store.
func (e *Engine) resolveAccounts(ctx context.Context, names ...string) error {
	accounts, err := e.store.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("read accounts: %w", err)
	}

	for _, name := range names {
		found := false
		for _, a := range accounts {
			if strings.EqualFold(a.Name, name) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown account %q", ErrMissingContext, name)
		}
	}
	return nil
}

// lockSymbol serializes position read-modify-write for one symbol.
func (e *Engine) lockSymbol(symbol string) func() {
	key := strings.ToUpper(symbol)

	e.mu.Lock()
	m, ok := e.symLocks[key]
	if !ok {
		m = &sync.Mutex{}
		e.symLocks[key] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (e *Engine) isForeign(currency string) bool {
	return currency != "" && !strings.EqualFold(currency, e.localCurrency)
}

func statusFor(flagged bool) domain.EntryStatus {
	if flagged {
		return domain.StatusFlagged
	}
	return domain.StatusNormal
}

func convert(amount, rate float64) float64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate)).InexactFloat64()
}

func annotateConversion(note, currency string, original, rate float64) string {
	return fmt.Sprintf("%s (originally %s %.2f @ %.2f)", note, currency, original, rate)
}

func joinNote(prefix, note string) string {
	if strings.TrimSpace(note) == "" {
		return prefix
	}
	return prefix + ": " + note
}
