// Command sync-notion mirrors one month of ledger entries into the Notion
// database configured in config.yml.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/danangw/duitku/internal/config"
	"github.com/danangw/duitku/internal/logger"
	"github.com/danangw/duitku/internal/notionmirror"
	"github.com/danangw/duitku/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yml")
	year := flag.Int("year", time.Now().Year(), "year to mirror")
	month := flag.Int("month", int(time.Now().Month()), "month to mirror (1-12, 0 for the whole year)")
	dryRun := flag.Bool("dry-run", false, "log the plan without writing to Notion")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger.Level)

	if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
		log.Fatal().Msg("notion.token and notion.database_id must be configured")
	}

	store, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	notion := notionmirror.NewNotionClient(cfg.Notion.Token)
	stats, err := notionmirror.Mirror(ctx, store, notion, cfg.Notion.DatabaseID, *year, *month, *dryRun, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Mirror failed")
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Bool("dry_run", *dryRun).
		Msg("Done")
}
