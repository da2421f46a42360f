package ledger

import (
	"context"
	"time"

	"github.com/danangw/duitku/internal/domain"
)

// PositionUpdate describes one delta against a symbol's aggregate holding.
// Rate is the USD to local-currency rate used for reporting columns when
// the position is foreign-denominated.
type PositionUpdate struct {
	Symbol          string
	SharesDelta     float64
	Price           float64
	RealizedPLDelta float64
	Account         string
	Date            time.Time
	Currency        string
	Rate            float64
}

// Store is the row-oriented datastore the engine writes to. Each call is
// individually atomic; there is no cross-call atomicity, so multi-entry
// sequences surface partial failures instead of rolling back.
type Store interface {
	AppendEntry(ctx context.Context, e *domain.Entry) error
	Entries(ctx context.Context, year, month int) ([]domain.Entry, error)
	UpdateEntry(ctx context.Context, id string, e *domain.Entry) error
	DeleteEntry(ctx context.Context, id string) error

	Positions(ctx context.Context) ([]domain.Position, error)
	// UpsertPosition creates the position on a first buy and otherwise
	// applies the delta, maintaining the weighted-average cost rule:
	// buys reprice the average, sells leave it untouched.
	UpsertPosition(ctx context.Context, u PositionUpdate) error

	Accounts(ctx context.Context) ([]domain.Account, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}
