package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/config"
	"github.com/memoryvault/memory-vault/internal/connectivity"
	"github.com/memoryvault/memory-vault/internal/docstore"
	"github.com/memoryvault/memory-vault/internal/hybrid"
	"github.com/memoryvault/memory-vault/internal/importer"
	"github.com/memoryvault/memory-vault/internal/parser"
	"github.com/memoryvault/memory-vault/internal/remote"
	"github.com/memoryvault/memory-vault/internal/repository"
	"github.com/memoryvault/memory-vault/internal/workqueue"
)

// Vault is the client side of the system: local store, hybrid coordinator
// and importer, sharing one connectivity state.
type Vault struct {
	Store       docstore.Store
	Repo        *repository.Repository
	Remote      *remote.Client
	Coordinator *hybrid.Coordinator
	Importer    *importer.Importer

	cancelWatch context.CancelFunc
}

// Open builds a Vault from cfg. Callers must Close it.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Vault, error) {
	st, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	client, err := NewRemote(cfg, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return assemble(ctx, cfg, st, client, log), nil
}

// assemble wires the components around an open store. client may be nil.
func assemble(ctx context.Context, cfg *config.Config, st docstore.Store, client *remote.Client, log zerolog.Logger) *Vault {
	repo := repository.New(st, repository.WithLogger(log))

	// keep the interfaces nil, not typed-nil, when there is no backend
	var (
		backend  hybrid.Backend
		prober   connectivity.Prober
		uploader importer.Uploader
	)
	if client != nil {
		backend, prober, uploader = client, client, client
	}

	state := connectivity.New(prober, log)
	coord := hybrid.New(backend, repo, state, log)

	order, _ := parser.ParseDateOrder(cfg.DateOrder)
	qcfg, err := workqueue.LoadConfig()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring invalid VAULT_WORKQUEUE settings")
		qcfg = workqueue.Config{}
	}
	qcfg.Shards = cfg.ImportWorkers
	imp := importer.New(coord, uploader,
		importer.WithParserOptions(parser.Options{DateOrder: order}),
		importer.WithMaxBytes(cfg.MaxUploadBytes),
		importer.WithQueueConfig(qcfg),
		importer.WithLogger(log),
	)

	v := &Vault{Store: st, Repo: repo, Remote: client, Coordinator: coord, Importer: imp}
	if cfg.ConnectivityRecheck > 0 && client != nil {
		wctx, cancel := context.WithCancel(ctx)
		v.cancelWatch = cancel
		go state.Watch(wctx, cfg.ConnectivityRecheck)
	}
	return v
}

// Close stops background work and closes the store.
func (v *Vault) Close() error {
	if v.cancelWatch != nil {
		v.cancelWatch()
	}
	var errs []error
	if v.Store != nil {
		errs = append(errs, v.Store.Close())
	}
	return errors.Join(errs...)
}
