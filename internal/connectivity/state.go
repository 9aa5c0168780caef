// Package connectivity tracks whether the backend is reachable.
package connectivity

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Status is the last known backend reachability.
type Status int32

const (
	Unknown Status = iota
	Up
	Down
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Prober checks the backend once. remote.Client.Health satisfies it.
type Prober interface {
	Health(ctx context.Context) error
}

const defaultProbeTimeout = 5 * time.Second

// State is the sticky up/down flag shared by the hybrid coordinator and the
// importer. Once Down it stays Down until Retry or Watch sees the backend
// again. Safe for concurrent use; at most one probe runs at a time.
type State struct {
	status       atomic.Int32
	probeMu      sync.Mutex
	prober       Prober
	probeTimeout time.Duration
	log          zerolog.Logger
}

// New returns a State in Unknown. A nil prober means no backend is
// configured and every probe reports Down.
func New(prober Prober, log zerolog.Logger) *State {
	return &State{prober: prober, probeTimeout: defaultProbeTimeout, log: log}
}

// NewWithStatus returns a State pinned to status until the next probe.
func NewWithStatus(prober Prober, log zerolog.Logger, status Status) *State {
	s := New(prober, log)
	s.status.Store(int32(status))
	return s
}

// Status returns the cached status without probing.
func (s *State) Status() Status { return Status(s.status.Load()) }

// Available reports whether remote calls should be attempted. The first
// call probes the backend; later calls read the cached flag.
func (s *State) Available(ctx context.Context) bool {
	if st := s.Status(); st != Unknown {
		return st == Up
	}
	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	// another caller may have probed while we waited
	if st := s.Status(); st != Unknown {
		return st == Up
	}
	return s.probeLocked(ctx) == Up
}

// MarkDown records a failed remote call.
func (s *State) MarkDown(err error) {
	if s.set(Down) {
		s.log.Error().Err(err).Msg("backend connectivity: DOWN")
	}
}

// MarkUp records a successful remote call.
func (s *State) MarkUp() {
	if s.set(Up) {
		s.log.Info().Msg("backend connectivity: UP")
	}
}

// Retry re-probes the backend regardless of the cached status.
func (s *State) Retry(ctx context.Context) Status {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	return s.probeLocked(ctx)
}

// Watch re-probes every interval until ctx is done.
func (s *State) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Retry(ctx)
		}
	}
}

func (s *State) probeLocked(ctx context.Context) Status {
	if s.prober == nil {
		s.MarkDown(fmt.Errorf("no backend configured"))
		return Down
	}
	pctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	if err := s.prober.Health(pctx); err != nil {
		// the caller gave up; that says nothing about the backend
		if ctx.Err() != nil {
			return s.Status()
		}
		s.MarkDown(err)
		return Down
	}
	s.MarkUp()
	return Up
}

// set stores st and reports whether it changed.
func (s *State) set(st Status) bool {
	return Status(s.status.Swap(int32(st))) != st
}
