package main

import (
	"github.com/savings-circle/backend/internal/config"
	"github.com/savings-circle/backend/internal/db"
	"github.com/savings-circle/backend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Server.Env)
	defer logger.Sync()

	if err := db.RunMigrations(cfg.DB.URL); err != nil {
		logger.Fatal("Migration failed: %v", err)
	}
	logger.Info("Migrations applied.")
}
