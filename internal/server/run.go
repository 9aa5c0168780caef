package server

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/app"
	"github.com/memoryvault/memory-vault/internal/config"
	"github.com/memoryvault/memory-vault/internal/parser"
	"github.com/memoryvault/memory-vault/internal/repository"
)

const (
	healthInterval     = 15 * time.Second
	healthProbeTimeout = 2 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Run starts the backend HTTP server and blocks until SIGINT/SIGTERM or a
// server error.
func Run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Bool("redis", cfg.RedisAddr != "").
		Msg("Vault server starting")

	ctx, stop := newServerContext()
	defer stop()

	st, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	statsCache, closeCache, err := app.NewCache(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Cache unavailable")
		return err
	}
	defer func() { _ = closeCache() }()

	order, _ := parser.ParseDateOrder(cfg.DateOrder)
	svc := NewService(repository.New(st, repository.WithLogger(log)),
		WithCache(statsCache),
		WithParser(parser.New(parser.Options{DateOrder: order})),
		WithStatsTTL(cfg.StatsCacheTTL),
		WithLogger(log),
	)

	hc := NewStoreHealthChecker(st, log, healthProbeTimeout)
	go hc.Start(ctx, healthInterval)

	router := NewRouter(RouterConfig{
		Service:        svc,
		Health:         hc,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            log,
	})

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       60 * time.Second, // uploads can be large
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
