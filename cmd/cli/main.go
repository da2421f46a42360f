// Command cli records one transaction from the command line, bypassing
// Telegram. Useful for backfilling and for trying prompts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/danangw/duitku/internal/amount"
	"github.com/danangw/duitku/internal/config"
	"github.com/danangw/duitku/internal/fx"
	"github.com/danangw/duitku/internal/interpret"
	"github.com/danangw/duitku/internal/ledger"
	"github.com/danangw/duitku/internal/logger"
	"github.com/danangw/duitku/internal/store/sqlite"
	"github.com/danangw/duitku/internal/telegram"
	"github.com/danangw/duitku/internal/tracker"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yml")
	asJSON := flag.Bool("json", false, "print the raw outcome as JSON")
	flag.Parse()

	text := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, "usage: cli [-json] <message>, e.g. cli coffee 20k")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger.Level)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}

	backend, err := interpret.NewGeminiBackend(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create inference backend")
	}
	invoker := interpret.NewInvoker(backend, cfg.Gemini.Models, log,
		interpret.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Gemini.RateLimit), cfg.Gemini.RateLimitBurst)))
	normalizer := interpret.NewNormalizer(amount.NewParser(cfg.Currency.PrefixToken), cfg.Currency.Local)

	fxService := fx.NewService(cfg.Currency.Local, log)
	if cfg.Currency.FallbackRate > 0 {
		fxService.SetFallback(cfg.Currency.FallbackRate)
	}

	engine := ledger.NewEngine(store, cfg.Currency.Local, log)
	track := tracker.New(store, invoker, normalizer, fxService, engine, cfg.Currency.Local, log)

	out, err := track.Process(ctx, tracker.Input{Text: text})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to record transaction")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode outcome")
		}
		return
	}

	formatter := telegram.Formatter{
		LocalCurrency: cfg.Currency.Local,
		LocalPrefix:   cfg.Currency.PrefixToken,
	}
	fmt.Println(formatter.Confirmation(out))
}
