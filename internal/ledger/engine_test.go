package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danangw/duitku/internal/domain"
)

type fakeStore struct {
	entries   []domain.Entry
	positions []domain.Position
	updates   []PositionUpdate
	accounts  []domain.Account

	failAppendAfter int // fail the Nth append (1-based); 0 disables
	failUpsert      bool
}

func (s *fakeStore) AppendEntry(_ context.Context, e *domain.Entry) error {
	if s.failAppendAfter > 0 && len(s.entries)+1 >= s.failAppendAfter {
		return errors.New("backend unavailable")
	}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *fakeStore) Entries(context.Context, int, int) ([]domain.Entry, error) {
	return s.entries, nil
}

func (s *fakeStore) UpdateEntry(context.Context, string, *domain.Entry) error { return nil }
func (s *fakeStore) DeleteEntry(context.Context, string) error                { return nil }

func (s *fakeStore) Positions(context.Context) ([]domain.Position, error) {
	return s.positions, nil
}

func (s *fakeStore) UpsertPosition(_ context.Context, u PositionUpdate) error {
	if s.failUpsert {
		return errors.New("backend unavailable")
	}
	s.updates = append(s.updates, u)
	return nil
}

func (s *fakeStore) Accounts(context.Context) ([]domain.Account, error) {
	return s.accounts, nil
}

func (s *fakeStore) Categories(context.Context) ([]domain.Category, error) {
	return nil, nil
}

func newTestEngine(store *fakeStore) *Engine {
	return NewEngine(store, "IDR", zerolog.Nop())
}

func ptr(f float64) *float64 { return &f }

var testDate = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func TestApply_ExpenseLocalCurrency(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:   20000,
		Category: "Food",
		Account:  "Wallet",
		Note:     "coffee",
		Kind:     domain.KindExpense,
		Currency: "IDR",
	}, 16000, testDate)
	require.NoError(t, err)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, domain.EntryExpense, entry.Kind)
	assert.Equal(t, 20000.0, entry.Amount)
	assert.Equal(t, "coffee", entry.Note)
	assert.Equal(t, domain.StatusNormal, entry.Status)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, res.Converted)
}

func TestApply_ExpenseForeignConverted(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:   10,
		Account:  "Wallet",
		Note:     "lunch",
		Kind:     domain.KindExpense,
		Currency: "USD",
	}, 16000, testDate)
	require.NoError(t, err)

	require.Len(t, store.entries, 1)
	assert.Equal(t, 160000.0, store.entries[0].Amount)
	assert.Contains(t, store.entries[0].Note, "originally USD 10.00")
	assert.True(t, res.Converted)
	assert.Equal(t, 16000.0, res.Rate)
}

func TestApply_FlaggedRecordPropagatesStatus(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	_, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:    0,
		Account:   "Wallet",
		Kind:      domain.KindExpense,
		Currency:  "IDR",
		IsFlagged: true,
	}, 16000, testDate)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFlagged, store.entries[0].Status)
}

func TestApply_TransferZeroSum(t *testing.T) {
	store := &fakeStore{
		accounts: []domain.Account{{Name: "Wallet"}, {Name: "Savings"}},
	}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:             500000,
		Account:            "Wallet",
		DestinationAccount: "Savings",
		Kind:               domain.KindTransfer,
		Currency:           "IDR",
	}, 16000, testDate)
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	out, in := res.Entries[0], res.Entries[1]
	assert.Equal(t, -500000.0, out.Amount)
	assert.Equal(t, 500000.0, in.Amount)
	assert.Equal(t, 0.0, out.Amount+in.Amount)
	assert.Equal(t, "Wallet", out.Account)
	assert.Equal(t, "Savings", in.Account)
	assert.Equal(t, out.Date, in.Date)
	assert.Contains(t, out.Note, "Transfer to Savings")
	assert.Contains(t, in.Note, "Transfer from Wallet")
}

func TestApply_TransferUnknownAccountRejected(t *testing.T) {
	store := &fakeStore{accounts: []domain.Account{{Name: "Wallet"}}}
	eng := newTestEngine(store)

	_, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:             100,
		Account:            "Wallet",
		DestinationAccount: "Offshore",
		Kind:               domain.KindTransfer,
	}, 16000, testDate)
	require.ErrorIs(t, err, ErrMissingContext)
	assert.Empty(t, store.entries, "no entry may be written when validation fails")
}

func TestApply_TransferSecondAppendFails(t *testing.T) {
	store := &fakeStore{
		accounts:        []domain.Account{{Name: "Wallet"}, {Name: "Savings"}},
		failAppendAfter: 2,
	}
	eng := newTestEngine(store)

	_, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:             100,
		Account:            "Wallet",
		DestinationAccount: "Savings",
		Kind:               domain.KindTransfer,
	}, 16000, testDate)

	var pw *PartialWriteError
	require.ErrorAs(t, err, &pw)
	require.Len(t, pw.Written, 1)
	assert.Equal(t, -100.0, pw.Written[0].Amount)
}

func TestApply_BuyDerivesShares(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           1000,
		Account:          "Brokerage",
		Kind:             domain.KindTradeBuy,
		Currency:         "USD",
		InvestmentSymbol: "VOO",
		PricePerShare:    ptr(500),
	}, 16000, testDate)
	require.NoError(t, err)

	assert.Equal(t, 2.0, res.Shares)
	assert.Equal(t, 500.0, res.PricePerShare)
	assert.False(t, res.DegradedTrade)

	require.Len(t, store.updates, 1)
	u := store.updates[0]
	assert.Equal(t, "VOO", u.Symbol)
	assert.Equal(t, 2.0, u.SharesDelta)
	assert.Equal(t, 500.0, u.Price)
	assert.Equal(t, 0.0, u.RealizedPLDelta)

	require.Len(t, store.entries, 1)
	assert.Equal(t, domain.EntryAsset, store.entries[0].Kind)
	assert.Equal(t, 16000000.0, store.entries[0].Amount)
}

func TestApply_BuyDerivesPrice(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           1000000,
		Account:          "Brokerage",
		Kind:             domain.KindTradeBuy,
		Currency:         "IDR",
		InvestmentSymbol: "BBCA",
		Shares:           ptr(100),
	}, 16000, testDate)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Shares)
	assert.Equal(t, 10000.0, res.PricePerShare)
}

func TestApply_BuyNoSharesNoPriceDegraded(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           250000,
		Account:          "Brokerage",
		Kind:             domain.KindTradeBuy,
		Currency:         "IDR",
		InvestmentSymbol: "GOTO",
	}, 16000, testDate)
	require.NoError(t, err)

	assert.True(t, res.DegradedTrade)
	assert.Equal(t, 1.0, res.Shares)
	assert.Equal(t, 250000.0, res.PricePerShare)
	assert.Equal(t, domain.StatusFlagged, store.entries[0].Status,
		"placeholder lot must be flagged for review")
}

func TestApply_BuyFundingAccountUsedForEntry(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	_, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           1000000,
		Account:          "Brokerage",
		SourceAccount:    "Bank",
		Kind:             domain.KindTradeBuy,
		Currency:         "IDR",
		InvestmentSymbol: "BBCA",
		Shares:           ptr(100),
	}, 16000, testDate)
	require.NoError(t, err)

	assert.Equal(t, "Bank", store.entries[0].Account, "cash leaves the funding account")
	assert.Equal(t, "Brokerage", store.updates[0].Account, "the position is held in the trade account")
}

func TestApply_BuyConversionFollowsPositionCurrency(t *testing.T) {
	store := &fakeStore{
		positions: []domain.Position{{
			Symbol: "VOO", Account: "Brokerage", Shares: 10,
			AvgCost: 400, Currency: "USD",
		}},
	}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           450,
		Account:          "Brokerage",
		Kind:             domain.KindTradeBuy,
		InvestmentSymbol: "VOO",
		Shares:           ptr(1),
	}, 16000, testDate)
	require.NoError(t, err)

	// The position was opened in USD; the record carries no currency, but
	// the entry still converts at the position's currency.
	assert.True(t, res.Converted)
	assert.Equal(t, 7200000.0, store.entries[0].Amount)
	assert.Contains(t, store.entries[0].Note, "originally USD 450.00")
	assert.Equal(t, "USD", store.updates[0].Currency)
}

func TestApply_BuyRecordCurrencyIgnoredForLocalPosition(t *testing.T) {
	store := &fakeStore{
		positions: []domain.Position{{
			Symbol: "BBCA", Account: "Brokerage", Shares: 100,
			AvgCost: 10000, Currency: "IDR",
		}},
	}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           1000000,
		Account:          "Brokerage",
		Kind:             domain.KindTradeBuy,
		Currency:         "USD",
		InvestmentSymbol: "BBCA",
		Shares:           ptr(100),
	}, 16000, testDate)
	require.NoError(t, err)

	assert.False(t, res.Converted)
	assert.Equal(t, 1000000.0, store.entries[0].Amount)
	assert.Equal(t, "IDR", store.updates[0].Currency)
}

func TestApply_BuyWithoutSymbolRejected(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	_, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount: 100,
		Kind:   domain.KindTradeBuy,
	}, 16000, testDate)
	require.ErrorIs(t, err, ErrMissingContext)
}

func TestApply_SellSplitsGain(t *testing.T) {
	store := &fakeStore{
		positions: []domain.Position{{
			Symbol: "VOO", Account: "Brokerage", Shares: 10,
			AvgCost: 400, Currency: "IDR",
		}},
	}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           450000,
		Account:          "Brokerage",
		Kind:             domain.KindTradeSell,
		Currency:         "IDR",
		InvestmentSymbol: "VOO",
		Shares:           ptr(1000),
		PricePerShare:    ptr(450),
	}, 16000, testDate)
	require.NoError(t, err)

	// 1000 shares at avg cost 400: base cost 400000, gain 50000.
	assert.Equal(t, 400000.0, res.BaseCost)
	assert.Equal(t, 50000.0, res.CapitalGain)

	require.Len(t, store.entries, 2)
	disposal, gain := store.entries[0], store.entries[1]
	assert.Equal(t, domain.EntryAsset, disposal.Kind)
	assert.Equal(t, 400000.0, disposal.Amount)
	assert.Equal(t, domain.EntryIncome, gain.Kind)
	assert.Equal(t, "Capital Gains", gain.Subcategory)
	assert.Equal(t, 50000.0, gain.Amount)

	require.Len(t, store.updates, 1)
	u := store.updates[0]
	assert.Equal(t, -1000.0, u.SharesDelta)
	assert.Equal(t, 50000.0, u.RealizedPLDelta)
}

func TestApply_SellForeignConvertsEntriesKeepsNativePL(t *testing.T) {
	store := &fakeStore{
		positions: []domain.Position{{
			Symbol: "VOO", Shares: 10, AvgCost: 400, Currency: "USD",
		}},
	}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           450,
		Account:          "Brokerage",
		Kind:             domain.KindTradeSell,
		Currency:         "USD",
		InvestmentSymbol: "VOO",
		Shares:           ptr(1),
	}, 16000, testDate)
	require.NoError(t, err)

	// Native: base 400, gain 50. Ledger rows carry local-currency values.
	assert.Equal(t, 400.0, res.BaseCost)
	assert.Equal(t, 50.0, res.CapitalGain)
	assert.Equal(t, 6400000.0, store.entries[0].Amount)
	assert.Equal(t, 800000.0, store.entries[1].Amount)
	assert.Equal(t, 50.0, store.updates[0].RealizedPLDelta,
		"realized P/L accumulates in the position's native currency")
}

func TestApply_SellUnknownPositionBooksZeroGain(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           90000,
		Account:          "Brokerage",
		Kind:             domain.KindTradeSell,
		Currency:         "IDR",
		InvestmentSymbol: "ARKK",
		Shares:           ptr(10),
		PricePerShare:    ptr(9000),
	}, 16000, testDate)
	require.NoError(t, err)

	assert.Equal(t, 90000.0, res.BaseCost)
	assert.Equal(t, 0.0, res.CapitalGain)
}

func TestApply_SellNoSharesNoPriceUsesAvgCost(t *testing.T) {
	store := &fakeStore{
		positions: []domain.Position{{
			Symbol: "BBCA", Shares: 500, AvgCost: 10000, Currency: "IDR",
		}},
	}
	eng := newTestEngine(store)

	res, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           1000000,
		Account:          "Brokerage",
		Kind:             domain.KindTradeSell,
		Currency:         "IDR",
		InvestmentSymbol: "BBCA",
	}, 16000, testDate)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Shares)
	assert.Equal(t, 10000.0, res.PricePerShare)
	assert.Equal(t, 0.0, res.CapitalGain)
}

func TestApply_SellNoContextAtAllRejected(t *testing.T) {
	store := &fakeStore{}
	eng := newTestEngine(store)

	_, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           1000,
		Kind:             domain.KindTradeSell,
		InvestmentSymbol: "ZZZ",
	}, 16000, testDate)
	require.ErrorIs(t, err, ErrMissingContext)
}

func TestApply_UpsertFailureReportsWrittenEntries(t *testing.T) {
	store := &fakeStore{failUpsert: true}
	eng := newTestEngine(store)

	_, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Amount:           1000,
		Account:          "Brokerage",
		Kind:             domain.KindTradeBuy,
		Currency:         "IDR",
		InvestmentSymbol: "VOO",
		Shares:           ptr(2),
		PricePerShare:    ptr(500),
	}, 16000, testDate)

	var pw *PartialWriteError
	require.ErrorAs(t, err, &pw)
	assert.Len(t, pw.Written, 1)
}

func TestApply_UnknownKind(t *testing.T) {
	eng := newTestEngine(&fakeStore{})

	_, err := eng.Apply(context.Background(), domain.TransactionRecord{
		Kind: domain.Kind("Loan"),
	}, 16000, testDate)
	require.ErrorIs(t, err, ErrUnknownKind)
}
