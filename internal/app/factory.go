// Package app wires configuration into the vault's components: the document
// store, the statistics cache and the remote backend client.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/cache"
	"github.com/memoryvault/memory-vault/internal/config"
	"github.com/memoryvault/memory-vault/internal/docstore"
	"github.com/memoryvault/memory-vault/internal/docstore/postgres"
	"github.com/memoryvault/memory-vault/internal/docstore/sqlite"
	"github.com/memoryvault/memory-vault/internal/localstate"
	"github.com/memoryvault/memory-vault/internal/remote"
)

const bootstrapTimeout = 10 * time.Second

// OpenStore returns the document store selected by cfg.DBDriver.
// For postgres a reachability check runs in the background so startup is
// not blocked on the network.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (docstore.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("path", cfg.SQLitePath).Msg("sqlite store opened")
		return st, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("VAULT_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		go func() {
			bctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
			defer cancel()
			if err := postgres.Bootstrap(bctx, cfg.PostgresDSN); err != nil {
				log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap check failed")
			} else {
				log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap check completed")
			}
		}()
		return postgres.NewWithDB(db), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

// NewCache returns a Redis cache when VAULT_REDIS_ADDR is set, an in-process
// cache otherwise. close releases the Redis connection and is never nil.
func NewCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (c cache.Cache, closeFn func() error, err error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() error { return nil }, nil
	}
	r, err := cache.DialRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("statistics cache: redis")
	return r, r.Close, nil
}

// NewRemote returns the backend client, or nil when no backend is
// configured. The token comes from VAULT_API_TOKEN or the stored session,
// and a 401 clears the stored session.
func NewRemote(cfg *config.Config, log zerolog.Logger) (*remote.Client, error) {
	if !cfg.HasBackend() {
		return nil, nil
	}
	token := func() string {
		if cfg.APIToken != "" {
			return cfg.APIToken
		}
		t, err := localstate.LoadToken()
		if err != nil {
			log.Warn().Err(err).Msg("failed to read stored token")
			return ""
		}
		return t
	}
	return remote.New(cfg.BackendURL,
		remote.WithToken(token),
		remote.WithHTTPTimeout(cfg.RequestTimeout),
		remote.WithRetry(cfg.MaxRetries, cfg.RetryStep),
		remote.WithLogger(log),
		remote.WithDebugLogging(cfg.Debug),
		remote.WithUnauthorizedHandler(func() {
			if err := localstate.ClearToken(); err != nil {
				log.Warn().Err(err).Msg("failed to clear stored token")
				return
			}
			log.Warn().Msg("backend rejected the session token; stored token cleared")
		}),
	)
}
