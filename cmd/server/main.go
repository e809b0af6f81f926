package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"DiveHouse/internal/api"
	"DiveHouse/internal/config"
	"DiveHouse/internal/custody"
	"DiveHouse/internal/engine"
	"DiveHouse/internal/ledger"
	"DiveHouse/internal/notifier"
	"DiveHouse/internal/roll"
	"DiveHouse/internal/store"
	"DiveHouse/internal/sweeper"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] DiveHouse starting...")

	_ = godotenv.Load()

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init store
	st, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] init sqlite store: %v", err)
	}
	defer st.Close()

	// Init ledger from persisted state
	ledgerState, err := st.LoadLedger()
	if err != nil {
		log.Fatalf("[FATAL] load ledger state: %v", err)
	}
	lm := ledger.NewManager(ledgerState, ledger.Options{
		OpenLiquidityPPM:    cfg.House.OpenLiquidityPPM,
		MaxExposure:         cfg.House.MaxExposure,
		MinOperatingReserve: cfg.House.MinOperatingReserve,
	})

	// Init custody with the configured bankroll
	bank := custody.NewBank(map[string]uint64{
		cfg.House.Account: cfg.House.OpeningBalance,
	})
	log.Printf("[INFO] house account %s funded with %d", cfg.House.Account, cfg.House.OpeningBalance)

	// Init webhook notifier
	var events notifier.Notifier
	if cfg.Webhook.URL != "" {
		events = notifier.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.MaxRetries)
		log.Printf("[INFO] webhook notifier: %s", cfg.Webhook.URL)
	} else {
		events = notifier.NoopNotifier{}
	}

	// Init engine
	clock := engine.SystemClock{}
	eng, err := engine.New(cfg.Game, lm, bank, st, roll.NewCryptoSource(), events, clock,
		engine.Options{HouseAccount: cfg.House.Account, TimeoutTicks: cfg.House.TimeoutTicks})
	if err != nil {
		log.Fatalf("[FATAL] init engine: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init sweeper
	sw := sweeper.New(ctx, eng, st, clock, cfg.House.TimeoutTicks)
	if err := sw.Register(cfg.Sweep.Cron); err != nil {
		log.Fatalf("[FATAL] register sweep task: %v", err)
	}
	sw.Start()
	defer sw.Stop()

	// Start HTTP server
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewServer(eng).Handler(),
	}
	go func() {
		log.Printf("[INFO] listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	log.Println("[INFO] DiveHouse is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] http shutdown: %v", err)
	}
	eng.Close()
	cancel()
	log.Println("[INFO] DiveHouse stopped")
}
