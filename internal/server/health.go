package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/remote"
	"github.com/memoryvault/memory-vault/internal/server/respond"
)

// Pinger is anything whose reachability can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealthChecker keeps a cached health flag for the document store so
// /health never blocks on the database.
type StoreHealthChecker struct {
	store        Pinger
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

// NewStoreHealthChecker creates a checker that starts unhealthy until the
// first successful probe.
func NewStoreHealthChecker(store Pinger, log zerolog.Logger, probeTimeout time.Duration) *StoreHealthChecker {
	hc := &StoreHealthChecker{store: store, log: log, probeTimeout: probeTimeout}
	hc.healthy.Store(0)
	return hc
}

// IsHealthy returns the cached health status (non-blocking).
func (hc *StoreHealthChecker) IsHealthy() bool { return hc.healthy.Load() == 1 }

// Check probes once and updates the cached flag.
func (hc *StoreHealthChecker) Check(ctx context.Context) bool {
	to := hc.probeTimeout
	if to <= 0 {
		to = 2 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, to)
	defer cancel()

	if err := hc.store.Ping(checkCtx); err != nil {
		if hc.healthy.Swap(0) == 1 {
			hc.log.Error().Stack().Err(err).Str("checker", "store").Msg("store health check failed")
		}
		return false
	}
	if hc.healthy.Swap(1) == 0 {
		hc.log.Info().Str("checker", "store").Msg("store healthy")
	}
	return true
}

// Start probes immediately and then every interval until ctx is done.
func (hc *StoreHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hc.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.Check(ctx)
		}
	}
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	checker *StoreHealthChecker
}

func NewHealthHandler(checker *StoreHealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// CheckHealth reports 200 when the store is reachable and 503 otherwise, so
// clients can fall back to local storage.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil || h.checker.IsHealthy() {
		respond.WriteJSON(w, http.StatusOK, remote.HealthResponse{Status: "healthy"})
		return
	}
	respond.WriteJSON(w, http.StatusServiceUnavailable, remote.HealthResponse{Status: "unhealthy"})
}
