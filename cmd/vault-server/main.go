package main

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/memoryvault/memory-vault/internal/config"
	"github.com/memoryvault/memory-vault/internal/logger"
	"github.com/memoryvault/memory-vault/internal/server"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		zlog.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	// keep the server's database apart from the CLI's local copy
	if cfg.DBDriver == "sqlite" && os.Getenv("VAULT_SQLITE_PATH") == "" {
		cfg.SQLitePath = filepath.Join(filepath.Dir(cfg.SQLitePath), "server.db")
	}

	log := logger.New("vault-server").Level(cfg.Level())
	// respond helpers log through the global logger
	zlog.Logger = log
	zerolog.SetGlobalLevel(cfg.Level())
	cfg.LogSummary(log)

	if err := server.Run(cfg, log); err != nil {
		log.Error().Err(err).Msg("vault-server exited with error")
		os.Exit(1)
	}
}
