package domain

import (
	"time"
)

// EntryKind is the bookkeeping classification of a ledger row. Trades are
// recorded as asset movements, with sale gains split into a separate
// income row.
type EntryKind string

const (
	EntryExpense  EntryKind = "Expense"
	EntryIncome   EntryKind = "Income"
	EntryTransfer EntryKind = "Transfer"
	EntryAsset    EntryKind = "Asset"
)

// EntryStatus marks whether a row needs human review.
type EntryStatus string

const (
	StatusNormal  EntryStatus = "Normal"
	StatusFlagged EntryStatus = "Flagged"
)

// Entry is one row in the ledger. Amounts are always in the local currency;
// foreign-denominated transactions are converted on write with the original
// amount preserved in the note.
type Entry struct {
	ID          string      `json:"id"`
	Date        time.Time   `json:"date"`
	Account     string      `json:"account"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Note        string      `json:"note"`
	Amount      float64     `json:"amount"`
	Kind        EntryKind   `json:"kind"`
	Status      EntryStatus `json:"status"`
}

// Position is the aggregate holding of one traded symbol, tracked with
// weighted-average cost in its native currency. The currency is fixed at
// first creation and never changed by later trades. Zero-share positions
// persist as closed-lot records.
type Position struct {
	Symbol       string    `json:"symbol"`
	Account      string    `json:"account"`
	Shares       float64   `json:"shares"`
	AvgCost      float64   `json:"avg_cost"`
	Currency     string    `json:"currency"`
	RealizedPL   float64   `json:"realized_pl"`
	PurchaseDate time.Time `json:"purchase_date"`
}

// MarketValue returns the position value at its average cost, in the
// position's native currency.
func (p Position) MarketValue() float64 {
	return p.Shares * p.AvgCost
}

// Category is one row of the spending taxonomy.
type Category struct {
	Name        string `json:"name"`
	Subcategory string `json:"subcategory"`
	Type        string `json:"type"`
}

// Account is a money holding known to the tracker. The interpretation
// prompt restricts extracted account names to this set.
type Account struct {
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Type     string  `json:"type"`
	Balance  float64 `json:"balance"`
}

// Budget is a monthly spending cap for one category.
type Budget struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}
