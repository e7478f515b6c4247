package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/turgut5534/amic-card-app/internal/fuelcard"
	"github.com/turgut5534/amic-card-app/internal/httpapi"
	"github.com/turgut5534/amic-card-app/internal/ledger"
	"github.com/turgut5534/amic-card-app/internal/settlement"
	filestore "github.com/turgut5534/amic-card-app/internal/storage/file"
	"github.com/turgut5534/amic-card-app/internal/storage/memory"
	pgstore "github.com/turgut5534/amic-card-app/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	var store ledger.Store
	var closeFn func()

	switch {
	case strings.TrimSpace(os.Getenv("DATABASE_URL")) != "":
		pg, err := pgstore.Open(ctx, strings.TrimSpace(os.Getenv("DATABASE_URL")))
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("migration failed", "err", err)
			pg.Close()
			os.Exit(1)
		}
		closeFn = pg.Close
		if devSeed() {
			cards, err := pg.SeedDev(ctx)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				printDevSeedBanner(logger, "postgres", cards)
			}
		}
		store = pg
		logger.Info("storage backend: postgres")
	case strings.TrimSpace(os.Getenv("FUELCARD_DATA")) != "":
		store = filestore.New(strings.TrimSpace(os.Getenv("FUELCARD_DATA")))
		logger.Info("storage backend: file", "path", os.Getenv("FUELCARD_DATA"))
	default:
		mem := memory.New()
		if devSeed() {
			cards := seedMemory(mem)
			printDevSeedBanner(logger, "memory", cards)
		}
		store = mem
		logger.Info("storage backend: memory")
	}

	svc := ledger.New(store, settlement.NewLocal(), logger)
	srvMux := httpapi.New(svc, store, logger).Handler()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           srvMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("card service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

func devSeed() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED")))
	return v == "1" || v == "true" || v == "yes"
}

// seedMemory inserts the two default dev cards, each with a 100.00 opening
// balance.
func seedMemory(mem *memory.Store) []fuelcard.Card {
	cards := []fuelcard.Card{
		{ID: uuid.New(), Name: "E100"},
		{ID: uuid.New(), Name: "Amic"},
	}
	for _, c := range cards {
		mem.Seed(fuelcard.CardState{Card: c, Balance: fuelcard.AmountFromMinor(10000)})
	}
	return cards
}

// printDevSeedBanner logs and prints card IDs for easy copy/paste.
func printDevSeedBanner(l *slog.Logger, backend string, cards []fuelcard.Card) {
	fmt.Println("==================== DEV SEED ====================")
	for _, c := range cards {
		l.Info("DEV seed ("+backend+")", "card_id", c.ID.String(), "name", c.Name)
		fmt.Printf("%s: %s\n", c.Name, c.ID.String())
	}
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
