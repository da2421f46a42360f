package domain

// Kind classifies an interpreted transaction.
type Kind string

const (
	KindExpense   Kind = "Expense"
	KindIncome    Kind = "Income"
	KindTransfer  Kind = "Transfer"
	KindTradeBuy  Kind = "Trade_Buy"
	KindTradeSell Kind = "Trade_Sell"
)

// Valid reports whether k is one of the five recognized kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindTransfer, KindTradeBuy, KindTradeSell:
		return true
	}
	return false
}

// IsTrade reports whether k adds to or removes from an investment position.
func (k Kind) IsTrade() bool {
	return k == KindTradeBuy || k == KindTradeSell
}

// TransactionRecord is the canonical output of interpretation.
// It is constructed once per interpretation call, is immutable thereafter,
// and is consumed exactly once by the ledger engine.
//
// Amount is denominated in Currency. Shares and PricePerShare are present
// only for trade kinds and may each be independently absent; the ledger
// engine reconciles a missing one from Amount.
type TransactionRecord struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`

	// Account is the source account. DestinationAccount is required for
	// transfers. SourceAccount names the funding account for Trade_Buy.
	Account            string `json:"account"`
	DestinationAccount string `json:"destination_account,omitempty"`
	SourceAccount      string `json:"source_account,omitempty"`

	Note     string `json:"note"`
	Kind     Kind   `json:"transaction_kind"`
	Currency string `json:"currency"`

	InvestmentSymbol string   `json:"investment_symbol,omitempty"`
	Shares           *float64 `json:"shares,omitempty"`
	PricePerShare    *float64 `json:"price_per_share,omitempty"`

	IsFlagged  bool    `json:"is_flagged"`
	FlagReason string  `json:"flag_reason,omitempty"`
	Confidence float64 `json:"confidence"`
}
