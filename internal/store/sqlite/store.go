// Package sqlite persists the ledger in a single SQLite database via gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/danangw/duitku/internal/domain"
	"github.com/danangw/duitku/internal/ledger"
)

// ErrNotFound is returned when an entry ID does not exist.
var ErrNotFound = errors.New("entry not found")

// Store implements ledger.Store on SQLite.
type Store struct {
	db *gorm.DB
}

// compile-time contract check
var _ ledger.Store = (*Store)(nil)

// Open connects to the database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(&EntryRow{}, &PositionRow{}, &CategoryRow{}, &AccountRow{}, &BudgetRow{})
	if err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for seeding tools.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) AppendEntry(ctx context.Context, e *domain.Entry) error {
	row := entryRow(e)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Entries returns all entries for the given month, oldest first. month may
// be 0 to fetch the full year.
func (s *Store) Entries(ctx context.Context, year, month int) ([]domain.Entry, error) {
	var from, to time.Time
	if month == 0 {
		from = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(1, 0, 0)
	} else {
		from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0)
	}

	var rows []EntryRow
	err := s.db.WithContext(ctx).
		Where("date >= ? AND date < ?", from, to).
		Order("date asc, created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}

	entries := make([]domain.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toDomain())
	}
	return entries, nil
}

func (s *Store) UpdateEntry(ctx context.Context, id string, e *domain.Entry) error {
	row := entryRow(e)
	row.ID = id
	res := s.db.WithContext(ctx).Model(&EntryRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"date":        row.Date,
		"account":     row.Account,
		"category":    row.Category,
		"subcategory": row.Subcategory,
		"note":        row.Note,
		"amount":      row.Amount,
		"kind":        row.Kind,
		"status":      row.Status,
	})
	if res.Error != nil {
		return fmt.Errorf("update entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&EntryRow{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) Positions(ctx context.Context) ([]domain.Position, error) {
	var rows []PositionRow
	if err := s.db.WithContext(ctx).Order("symbol asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	positions := make([]domain.Position, 0, len(rows))
	for _, r := range rows {
		positions = append(positions, r.toDomain())
	}
	return positions, nil
}

// UpsertPosition applies one trade delta inside a transaction. A positive
// SharesDelta reprices the weighted-average cost; a negative delta reduces
// shares and accumulates realized P/L without touching the average.
func (s *Store) UpsertPosition(ctx context.Context, u ledger.PositionUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row PositionRow
		err := tx.Where("symbol = ?", strings.ToUpper(u.Symbol)).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if u.SharesDelta < 0 {
				// Disposal of a never-tracked symbol: record a closed
				// position carrying only the realized P/L.
				row = PositionRow{
					Symbol:       strings.ToUpper(u.Symbol),
					Account:      u.Account,
					Shares:       0,
					AvgCost:      u.Price,
					Currency:     u.Currency,
					RealizedPL:   u.RealizedPLDelta,
					PurchaseDate: u.Date,
				}
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("create position: %w", err)
				}
				return nil
			}
			row = PositionRow{
				Symbol:       strings.ToUpper(u.Symbol),
				Account:      u.Account,
				Shares:       u.SharesDelta,
				AvgCost:      u.Price,
				Currency:     u.Currency,
				PurchaseDate: u.Date,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create position: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("read position: %w", err)
		}

		if u.SharesDelta > 0 {
			row.AvgCost = weightedAverage(row.Shares, row.AvgCost, u.SharesDelta, u.Price)
		}
		row.Shares += u.SharesDelta
		if row.Shares < 0 {
			row.Shares = 0
		}
		row.RealizedPL += u.RealizedPLDelta

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save position: %w", err)
		}
		return nil
	})
}

// weightedAverage reprices the average cost for an acquisition of newShares
// at newPrice on top of oldShares held at oldAvg.
func weightedAverage(oldShares, oldAvg, newShares, newPrice float64) float64 {
	oldCost := decimal.NewFromFloat(oldShares).Mul(decimal.NewFromFloat(oldAvg))
	newCost := decimal.NewFromFloat(newShares).Mul(decimal.NewFromFloat(newPrice))
	total := decimal.NewFromFloat(oldShares).Add(decimal.NewFromFloat(newShares))
	if total.IsZero() {
		return newPrice
	}
	return oldCost.Add(newCost).Div(total).InexactFloat64()
}

func (s *Store) Accounts(ctx context.Context) ([]domain.Account, error) {
	var rows []AccountRow
	if err := s.db.WithContext(ctx).Order("name asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	accounts := make([]domain.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, domain.Account{
			Name:     r.Name,
			Currency: r.Currency,
			Type:     r.Type,
			Balance:  r.Balance,
		})
	}
	return accounts, nil
}

func (s *Store) Categories(ctx context.Context) ([]domain.Category, error) {
	var rows []CategoryRow
	if err := s.db.WithContext(ctx).Order("name asc, subcategory asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	categories := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, domain.Category{
			Name:        r.Name,
			Subcategory: r.Subcategory,
			Type:        r.Type,
		})
	}
	return categories, nil
}

// Budgets returns all monthly caps.
func (s *Store) Budgets(ctx context.Context) ([]domain.Budget, error) {
	var rows []BudgetRow
	if err := s.db.WithContext(ctx).Order("category asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	budgets := make([]domain.Budget, 0, len(rows))
	for _, r := range rows {
		budgets = append(budgets, domain.Budget{Category: r.Category, Amount: r.Amount})
	}
	return budgets, nil
}

// SetBudget creates or replaces the cap for one category.
func (s *Store) SetBudget(ctx context.Context, category string, amount float64) error {
	var row BudgetRow
	err := s.db.WithContext(ctx).Where("category = ?", category).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = BudgetRow{Category: category, Amount: amount}
		return s.db.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		return fmt.Errorf("read budget: %w", err)
	}
	row.Amount = amount
	return s.db.WithContext(ctx).Save(&row).Error
}

// SpentByCategory sums expense amounts per category for one month.
func (s *Store) SpentByCategory(ctx context.Context, year, month int) (map[string]float64, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	type sumRow struct {
		Category string
		Total    float64
	}
	var rows []sumRow
	err := s.db.WithContext(ctx).Model(&EntryRow{}).
		Select("category, sum(amount) as total").
		Where("kind = ? AND date >= ? AND date < ?", string(domain.EntryExpense), from, to).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum expenses: %w", err)
	}

	spent := make(map[string]float64, len(rows))
	for _, r := range rows {
		spent[r.Category] = r.Total
	}
	return spent, nil
}

// SeedCategory inserts a taxonomy row if absent.
func (s *Store) SeedCategory(ctx context.Context, c domain.Category) error {
	row := CategoryRow{Name: c.Name, Subcategory: c.Subcategory, Type: c.Type}
	return s.db.WithContext(ctx).
		FirstOrCreate(&row, CategoryRow{Name: c.Name, Subcategory: c.Subcategory}).Error
}

// SeedAccount inserts an account row if absent.
func (s *Store) SeedAccount(ctx context.Context, a domain.Account) error {
	row := AccountRow{Name: a.Name, Currency: a.Currency, Type: a.Type, Balance: a.Balance}
	return s.db.WithContext(ctx).FirstOrCreate(&row, AccountRow{Name: a.Name}).Error
}
