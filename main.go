package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"pharmafind/m/internal/api"
	"pharmafind/m/internal/config"
	"pharmafind/m/internal/database"
	"pharmafind/m/internal/migrations"
	"pharmafind/m/internal/seed"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.Kitchen}))
	slog.SetDefault(logger)

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)
	if cfg.SeedDemo {
		seed.LoadDemoData(db)
	}

	handler := api.New(db, logger, cfg)

	logger.Info("pharmafind server starting", "port", cfg.HTTPPort, "env", cfg.Env)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
