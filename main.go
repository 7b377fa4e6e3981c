package main

import (
	"github.com/Rabder/Planning-Poker/config"
	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/persistence"
	"github.com/Rabder/Planning-Poker/room"
	"github.com/Rabder/Planning-Poker/server"
	"github.com/Rabder/Planning-Poker/services"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Round archiving is optional; the game runs fully in memory without it.
	var history room.HistoryRecorder
	if cfg.Database.Enabled {
		db, err := persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Log.Info("Database connection successful.")
		history = services.NewHistoryService(db)
	}

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, history)

	// Start Server
	logger.Log.Infof("Starting planning poker server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
