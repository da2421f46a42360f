// Command seed populates the category taxonomy, accounts, and budgets the
// interpretation prompt depends on. Running it again is safe; existing rows
// are left alone.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/danangw/duitku/internal/config"
	"github.com/danangw/duitku/internal/domain"
	"github.com/danangw/duitku/internal/logger"
	"github.com/danangw/duitku/internal/store/sqlite"
)

// seedFile is the optional JSON overlay on top of the defaults.
type seedFile struct {
	Categories []domain.Category `json:"categories"`
	Accounts   []domain.Account  `json:"accounts"`
	Budgets    []domain.Budget   `json:"budgets"`
}

func defaults() seedFile {
	return seedFile{
		Categories: []domain.Category{
			{Name: "Food", Subcategory: "Groceries", Type: "Expense"},
			{Name: "Food", Subcategory: "Coffee", Type: "Expense"},
			{Name: "Food", Subcategory: "Dining Out", Type: "Expense"},
			{Name: "Transport", Subcategory: "Fuel", Type: "Expense"},
			{Name: "Transport", Subcategory: "Ride Hailing", Type: "Expense"},
			{Name: "Housing", Subcategory: "Rent", Type: "Expense"},
			{Name: "Housing", Subcategory: "Utilities", Type: "Expense"},
			{Name: "Miscellaneous", Subcategory: "Other", Type: "Expense"},
			{Name: "Salary", Subcategory: "Monthly", Type: "Income"},
			{Name: "Income", Subcategory: "Capital Gains", Type: "Income"},
		},
		Accounts: []domain.Account{
			{Name: "Wallet", Currency: "IDR", Type: "Cash"},
			{Name: "Bank", Currency: "IDR", Type: "Checking"},
			{Name: "Savings", Currency: "IDR", Type: "Savings"},
			{Name: "Brokerage", Currency: "USD", Type: "Investment"},
		},
	}
}

func main() {
	configPath := flag.String("config", ".", "directory containing config.yml")
	seedPath := flag.String("file", "", "optional JSON file with categories, accounts, budgets")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger.Level)
	ctx := context.Background()

	store, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}

	seed := defaults()
	if *seedPath != "" {
		raw, err := os.ReadFile(*seedPath)
		if err != nil {
			log.Fatal().Err(err).Str("file", *seedPath).Msg("Failed to read seed file")
		}
		if err := json.Unmarshal(raw, &seed); err != nil {
			log.Fatal().Err(err).Str("file", *seedPath).Msg("Failed to parse seed file")
		}
	}

	for _, c := range seed.Categories {
		if err := store.SeedCategory(ctx, c); err != nil {
			log.Fatal().Err(err).Str("category", c.Name).Msg("Failed to seed category")
		}
	}
	for _, a := range seed.Accounts {
		if err := store.SeedAccount(ctx, a); err != nil {
			log.Fatal().Err(err).Str("account", a.Name).Msg("Failed to seed account")
		}
	}
	for _, b := range seed.Budgets {
		if err := store.SetBudget(ctx, b.Category, b.Amount); err != nil {
			log.Fatal().Err(err).Str("category", b.Category).Msg("Failed to seed budget")
		}
	}

	log.Info().
		Int("categories", len(seed.Categories)).
		Int("accounts", len(seed.Accounts)).
		Int("budgets", len(seed.Budgets)).
		Msg("Seed complete")
}
