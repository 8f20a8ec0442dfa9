package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/NgigiN/spendbot/internal/bot"
	"github.com/NgigiN/spendbot/internal/config"
	"github.com/NgigiN/spendbot/internal/insight"
	"github.com/NgigiN/spendbot/internal/ledger"
	"github.com/NgigiN/spendbot/internal/logging"
	"github.com/NgigiN/spendbot/internal/session"
	"github.com/NgigiN/spendbot/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level: logging.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	db, err := storage.NewDatabase(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open local database", "error", err)
		os.Exit(1)
	}

	var store ledger.Store = db
	if cfg.UseSheets() {
		sheetsStore, err := ledger.NewSheetsStore(context.Background(), ledger.SheetsConfig{
			SpreadsheetID:   cfg.SheetsID,
			SheetName:       cfg.SheetsName,
			CredentialsFile: cfg.CredentialsFile,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize sheets ledger", "error", err)
			os.Exit(1)
		}
		store = sheetsStore
	} else {
		logger.Info("no spreadsheet configured, using local ledger", "path", cfg.DBPath)
	}

	ai := insight.New(insight.Config{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel}, logger)
	sessions := session.NewStore(0)
	orch := bot.NewOrchestrator(store, ai, db, sessions, logger)

	b, err := bot.NewBot(cfg, orch, logger)
	if err != nil {
		logger.Error("failed to initialize the discord bot", "error", err)
		os.Exit(1)
	}
	if err := b.Start(); err != nil {
		logger.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	logger.Info("bot is running")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	b.Stop()
	logger.Info("bot stopped")
}
