package sqlite

import (
	"time"

	"gorm.io/gorm"

	"github.com/danangw/duitku/internal/domain"
)

// EntryRow is the persisted form of a ledger entry. The ID is assigned by
// the engine, not the database, so rows stay addressable across mirrors.
type EntryRow struct {
	ID          string `gorm:"primaryKey"`
	Date        time.Time
	Account     string `gorm:"index"`
	Category    string `gorm:"index"`
	Subcategory string
	Note        string
	Amount      float64
	Kind        string `gorm:"index"`
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PositionRow is one symbol's aggregate holding.
type PositionRow struct {
	gorm.Model
	Symbol       string `gorm:"uniqueIndex"`
	Account      string
	Shares       float64
	AvgCost      float64
	Currency     string
	RealizedPL   float64
	PurchaseDate time.Time
}

// CategoryRow is one row of the spending taxonomy.
type CategoryRow struct {
	gorm.Model
	Name        string `gorm:"index:idx_cat_sub,unique"`
	Subcategory string `gorm:"index:idx_cat_sub,unique"`
	Type        string
}

// AccountRow is one known money holding.
type AccountRow struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex"`
	Currency string
	Type     string
	Balance  float64
}

// BudgetRow is a monthly cap for one category.
type BudgetRow struct {
	gorm.Model
	Category string `gorm:"uniqueIndex"`
	Amount   float64
}

func (r EntryRow) toDomain() domain.Entry {
	return domain.Entry{
		ID:          r.ID,
		Date:        r.Date,
		Account:     r.Account,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Note:        r.Note,
		Amount:      r.Amount,
		Kind:        domain.EntryKind(r.Kind),
		Status:      domain.EntryStatus(r.Status),
	}
}

func entryRow(e *domain.Entry) EntryRow {
	return EntryRow{
		ID:          e.ID,
		Date:        e.Date,
		Account:     e.Account,
		Category:    e.Category,
		Subcategory: e.Subcategory,
		Note:        e.Note,
		Amount:      e.Amount,
		Kind:        string(e.Kind),
		Status:      string(e.Status),
	}
}

func (r PositionRow) toDomain() domain.Position {
	return domain.Position{
		Symbol:       r.Symbol,
		Account:      r.Account,
		Shares:       r.Shares,
		AvgCost:      r.AvgCost,
		Currency:     r.Currency,
		RealizedPL:   r.RealizedPL,
		PurchaseDate: r.PurchaseDate,
	}
}
