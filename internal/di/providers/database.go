package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/curatorapp/curator-server/internal/config"
	"github.com/curatorapp/curator-server/internal/logger"
	"github.com/curatorapp/curator-server/internal/realtime"
	"github.com/curatorapp/curator-server/internal/store"
	"github.com/curatorapp/curator-server/internal/store/postgres"
	"github.com/curatorapp/curator-server/internal/store/sqlite"
)

// HubHandle wraps the change feed hub with its context for lifecycle management.
type HubHandle struct {
	*realtime.Hub
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *HubHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Hub.Shutdown(ctx)
}

// ProvideHub provides the realtime change feed hub.
func ProvideHub(i do.Injector) (*HubHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	hub := realtime.NewHub(log.Component("realtime"), realtime.Options{
		SubscriberBuffer: cfg.Realtime.SubscriberBuffer,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)

	log.Info("Change feed hub started")

	return &HubHandle{Hub: hub, cancel: cancel}, nil
}

// emittingStore is a store that reports committed category changes.
type emittingStore interface {
	store.Store
	SetEmitter(store.EventEmitter)
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the relational store selected by database.driver.
// Committed category changes fan out to the hub and the analysis cache.
// Postgres reports them from its LISTEN loop, so writes made by other
// instances reach this one's subscribers too.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	hub := do.MustInvoke[*HubHandle](i)
	cache := do.MustInvoke[*AnalysisCacheHandle](i)

	var db emittingStore
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := postgres.Open(context.Background(), cfg.Database.URL, log.Component("postgres"))
		if err != nil {
			return nil, err
		}
		pg.Start(context.Background())
		db = pg
		log.Info("Database initialized", "driver", config.DriverPostgres)
	case config.DriverSQLite:
		path := cfg.SQLitePath()
		lite, err := sqlite.Open(path, log.Component("sqlite"))
		if err != nil {
			return nil, err
		}
		db = lite
		log.Info("Database initialized", "driver", config.DriverSQLite, "path", path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	db.SetEmitter(store.MultiEmitter{hub.Hub, cache.Cache})
	return &StoreHandle{Store: db}, nil
}
