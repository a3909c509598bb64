// Package app wires the primary store, the search mirror, the entity
// services and the HTTP surface together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/guyvdb/gestioneau/config"
	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/search"
	"github.com/guyvdb/gestioneau/search/elastic"
	"github.com/guyvdb/gestioneau/search/sqlite"
	"github.com/guyvdb/gestioneau/service"
	"github.com/guyvdb/gestioneau/store"
	"github.com/guyvdb/gestioneau/types"
	"github.com/guyvdb/gestioneau/web"
)

// App holds the application state.
type App struct {
	config   *config.Config
	registry *types.SystemRegistry
	store    *store.BoltStore
	index    search.Index
	wt       *service.WriteThrough
	services []*service.Service
	handler  *web.Handler
}

// New opens the stores and builds a service for every catalog entity.
// Resources opened before a failure are closed again.
func New(cfg *config.Config) (*App, error) {
	a := &App{config: cfg, registry: types.NewSystemRegistry()}
	if err := a.open(); err != nil {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("New - close after failed open", "err", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) open() error {
	cfg := a.config
	entities := schema.Catalog()
	dyno.Register(a.registry, entities)

	s, err := store.NewBoltStore(cfg.DBPath, a.registry)
	if err != nil {
		return err
	}
	a.store = s
	if err := a.registry.Load(a.store); err != nil {
		return fmt.Errorf("failed to load type registry: %w", err)
	}
	slog.Info("Opened primary store", "path", cfg.DBPath, "types", len(a.registry.TypeNames()))

	idx, err := openIndex(cfg, entities)
	if err != nil {
		return err
	}
	a.index = idx
	slog.Info("Opened search mirror", "kind", cfg.Search)

	var opts []service.Option
	if cfg.MirrorAsync {
		opts = append(opts, service.WithAsyncMirror(cfg.MirrorWorkers))
	}
	a.wt = service.NewWriteThrough(a.store, a.index, opts...)

	for _, e := range entities {
		typeId, err := a.registry.GetTypeId(e.Name)
		if err != nil {
			return fmt.Errorf("type id of %s: %w", e.Name, err)
		}
		a.services = append(a.services, service.New(e, typeId, a.store, a.index, a.wt))
	}

	a.handler = web.NewHandler(web.Config{AppName: cfg.AppName, BasePath: cfg.BasePath}, a.services, map[string]web.Check{
		"store":  func(context.Context) error { return a.store.Ping() },
		"search": a.index.Ping,
	})
	return nil
}

func openIndex(cfg *config.Config, entities []*schema.Entity) (search.Index, error) {
	switch cfg.Search {
	case config.SearchElastic:
		idx, err := elastic.New(elastic.Config{
			Addresses: cfg.ElasticURLs,
			Username:  cfg.ElasticUser,
			Password:  cfg.ElasticPass,
			Refresh:   cfg.ElasticRefresh,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	case config.SearchSQLite:
		idx, err := sqlite.Open(cfg.SearchDSN, entities)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unknown search mirror %q", cfg.Search)
}

// Handler returns the HTTP handler (useful for testing).
func (a *App) Handler() http.Handler {
	return a.handler
}

// Services returns the entity services in catalog order.
func (a *App) Services() []*service.Service {
	return a.services
}

// Close drains pending mirror writes, then closes the mirror and the store.
func (a *App) Close() error {
	var errs []error
	if a.wt != nil {
		errs = append(errs, a.wt.Close())
	}
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
