// Command server runs the tracker: the Telegram webhook, the ledger API,
// the background interpretation worker, and the scheduled jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/danangw/duitku/internal/amount"
	"github.com/danangw/duitku/internal/api"
	"github.com/danangw/duitku/internal/config"
	"github.com/danangw/duitku/internal/fx"
	"github.com/danangw/duitku/internal/interpret"
	"github.com/danangw/duitku/internal/jobs/inmemory"
	"github.com/danangw/duitku/internal/ledger"
	"github.com/danangw/duitku/internal/logger"
	"github.com/danangw/duitku/internal/notionmirror"
	"github.com/danangw/duitku/internal/pipeline"
	"github.com/danangw/duitku/internal/receipts"
	"github.com/danangw/duitku/internal/store/sqlite"
	"github.com/danangw/duitku/internal/telegram"
	"github.com/danangw/duitku/internal/tracker"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yml")
	flag.Parse()

	// .env is for local development; missing is fine
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

	fxService := fx.NewService(cfg.Currency.Local, log)
	if cfg.Currency.FallbackRate > 0 {
		fxService.SetFallback(cfg.Currency.FallbackRate)
	}

	backend, err := interpret.NewGeminiBackend(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create inference backend")
	}
	invoker := interpret.NewInvoker(backend, cfg.Gemini.Models, log,
		interpret.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Gemini.RateLimit), cfg.Gemini.RateLimitBurst)))
	normalizer := interpret.NewNormalizer(amount.NewParser(cfg.Currency.PrefixToken), cfg.Currency.Local)

	engine := ledger.NewEngine(store, cfg.Currency.Local, log)
	track := tracker.New(store, invoker, normalizer, fxService, engine, cfg.Currency.Local, log)

	chatID, err := strconv.ParseInt(cfg.Telegram.AuthorizedChatID, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram.authorized_chat_id must be a numeric chat ID")
	}
	bot := telegram.NewClient(cfg.Telegram.BotToken, chatID, log)
	formatter := telegram.Formatter{
		LocalCurrency: cfg.Currency.Local,
		LocalPrefix:   cfg.Currency.PrefixToken,
	}

	var archive receipts.Archiver
	if cfg.Receipts.Bucket != "" {
		gcs, err := receipts.NewGCSArchiver(ctx, cfg.Receipts.Bucket, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt archiver")
		}
		defer gcs.Close()
		archive = gcs
	} else {
		log.Warn().Msg("No receipt bucket configured, photos will not be archived")
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(100, 2, jobStore)
	processor := pipeline.NewProcessor(bot, track, archive, formatter, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if err := queue.Start(workerCtx, processor.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	scheduler := cron.New()
	// keep the FX cache warm so user messages never wait on providers
	_, err = scheduler.AddFunc("@hourly", func() {
		fxService.Rate(context.Background())
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule FX refresh")
	}
	_, err = scheduler.AddFunc("0 21 * * *", func() {
		now := time.Now()
		s, err := tracker.Summarize(context.Background(), store, now.Year(), now.Month())
		if err != nil {
			log.Error().Err(err).Msg("Failed to build daily summary")
			return
		}
		if err := bot.SendMessage(context.Background(), chatID, s.Render(cfg.Currency.PrefixToken)); err != nil {
			log.Error().Err(err).Msg("Failed to send daily summary")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule daily summary")
	}
	if cfg.Notion.Token != "" {
		notion := notionmirror.NewNotionClient(cfg.Notion.Token)
		_, err = scheduler.AddFunc("30 21 * * *", func() {
			now := time.Now()
			mirrorCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := notionmirror.Mirror(mirrorCtx, store, notion, cfg.Notion.DatabaseID,
				now.Year(), int(now.Month()), false, log); err != nil {
				log.Error().Err(err).Msg("Nightly Notion mirror failed")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule Notion mirror")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(api.Deps{
		Bot:       bot,
		Publisher: queue,
		JobStore:  jobStore,
		Pipeline:  track,
		Ledger:    store,
		Log:       log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job queue shutdown failed")
	}
}
