package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"short_bot/bot"
	"short_bot/client"
	"short_bot/config"
	"short_bot/db"
	"short_bot/logger"
	"short_bot/metrics"
	"short_bot/models"
	"short_bot/pairs"
	"short_bot/precision"
	"short_bot/sizing"
	"short_bot/utils"
)

const (
	exitPreflightAbort = 2
	exitCritical       = 3
)

func main() {
	logLevel := flag.String("log", "info", "Log level: debug, info, warn, error")
	configPath := flag.String("config", "", "Path to a YAML config file")
	mode := flag.String("mode", "trade", "trade: short the saved basket, rank: rebuild the basket")
	envFile := flag.String("env", ".env", "dotenv file holding BINANCE_API_KEY and BINANCE_API_SECRET")
	flag.Parse()
	logger.InitLogger(*logLevel)

	creds := config.LoadCredentials(*envFile)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl := client.NewBinanceFuturesClient(creds.APIKey, creds.APISecret, cfg.Execution.Testnet)

	switch *mode {
	case "rank":
		if !creds.Complete() {
			logger.Warnf("No API keys found, using default max leverage %dx", cfg.Ranking.DefaultMaxLeverage)
		}
		if err := rank(ctx, cl, cfg, creds.Complete()); err != nil {
			log.Fatalf("Ranking failed: %v", err)
		}
	case "trade":
		if !creds.Complete() {
			log.Fatal("BINANCE_API_KEY or BINANCE_API_SECRET not set")
		}
		code := trade(ctx, cl, cfg)
		stop()
		os.Exit(code)
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}
}

func rank(ctx context.Context, cl *client.BinanceFuturesClient, cfg config.Config, withLeverage bool) error {
	records, err := pairs.Rank(ctx, cl, cfg.Ranking, withLeverage)
	if err != nil {
		return err
	}
	for i, r := range records {
		logger.Infof("%2d. %-14s price=%v mcap=%.2f max leverage=%dx", i+1, r.Symbol, float64(r.LastPrice), float64(r.MarketCap), r.MaxLeverage)
	}
	history, err := pairs.Save(cfg.Ranking.PairsDir, records, time.Now())
	if err != nil {
		return err
	}
	logger.Infof("Basket saved to %s", history)
	return nil
}

func trade(ctx context.Context, cl *client.BinanceFuturesClient, cfg config.Config) int {
	records, err := pairs.Load(cfg.Storage.PairsFile)
	if err != nil {
		log.Fatalf("Failed to load basket: %v", err)
	}
	basket := pairs.Targets(records)

	journal, err := db.Open(cfg.Storage.JournalPath)
	if err != nil {
		log.Fatalf("Failed to initialize journal: %v", err)
	}
	defer journal.Close()

	rec := metrics.NewRecorder()
	gateway := client.NewRateLimitedGateway(cl, cfg.Execution.RequestsPerSecond, cfg.Execution.Burst)
	resolver := precision.NewResolver(gateway, precision.Defaults{
		Quantity: cfg.Execution.DefaultQuantityPrecision,
		Price:    cfg.Execution.DefaultPricePrecision,
	})
	policy := bot.RetryPolicy{
		MaxAttempts:      cfg.Execution.MaxAttempts,
		Delay:            cfg.Execution.RetryDelay,
		ShiftBasePercent: cfg.Execution.ShiftBasePercent,
		ShiftStepPercent: cfg.Execution.ShiftStepPercent,
	}
	controller := bot.NewController(gateway, resolver, cfg.Trading, policy, models.MarginMode(cfg.Execution.MarginMode), rec)
	orchestrator := bot.NewOrchestrator(gateway, resolver, sizing.NewSizer(resolver), controller, cfg.Trading,
		bot.NewPacer(cfg.Execution.PacingInterval), cfg.Execution.Concurrency, rec)

	runID := uuid.NewString()
	started := time.Now()
	logger.Infof("/// Starting run %s with %d symbols ///", runID, len(basket))

	outcomes, runErr := orchestrator.Run(ctx, basket)

	if err := journal.RecordRun(runID, started, outcomes, runErr); err != nil {
		logger.Errorf("Failed to journal run %s: %v", runID, err)
	}
	if err := utils.AppendOutcomesToCSV(cfg.Storage.ReportCSV, runID, started, outcomes); err != nil {
		logger.Errorf("Failed to write report: %v", err)
	}
	if cfg.Storage.MetricsTextfile != "" {
		if err := rec.WriteTextfile(cfg.Storage.MetricsTextfile); err != nil {
			logger.Errorf("Failed to write metrics: %v", err)
		}
	}

	if errors.Is(runErr, models.ErrPreflightAbort) {
		return exitPreflightAbort
	}
	for _, out := range outcomes {
		if out.Status.Severity() == models.SeverityCritical {
			logger.Criticalf("Run %s left %s open without protection", runID, out.Symbol)
			return exitCritical
		}
	}
	logger.Infof("/// Run %s finished ///", runID)
	return 0
}
