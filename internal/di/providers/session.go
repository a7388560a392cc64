package providers

import (
	"github.com/samber/do/v2"

	"github.com/curatorapp/curator-server/internal/config"
	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/logger"
	"github.com/curatorapp/curator-server/internal/session"
	"github.com/curatorapp/curator-server/internal/validation"
)

// SessionManagerHandle wraps the application session manager.
type SessionManagerHandle struct {
	*session.Manager
}

// Shutdown implements do.Shutdownable.
func (h *SessionManagerHandle) Shutdown() error {
	return h.Manager.Shutdown()
}

// ProvideValidator provides the shared request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideSessionManager provides the per-user application session manager.
func ProvideSessionManager(i do.Injector) (*SessionManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hub := do.MustInvoke[*HubHandle](i)
	provider := do.MustInvoke[*SearchProviderHandle](i)
	cache := do.MustInvoke[*AnalysisCacheHandle](i)
	v := do.MustInvoke[*validation.Validator](i)

	defaults := domain.DefaultSearchOptions()
	defaults.MaxResults = cfg.Search.DefaultMaxResults

	manager := session.NewManager(session.Dependencies{
		Categories: storeHandle.Store,
		Feed:       hub.Hub,
		Provider:   provider.Provider,
		Annotator:  cache.Cache,
		Validator:  v,
		Logger:     log.Component("session"),
	}, session.Options{
		CategoryDebounce: cfg.Search.CategoryDebounce,
		QueryDebounce:    cfg.Search.QueryDebounce,
		SearchDefaults:   defaults,
	})

	return &SessionManagerHandle{Manager: manager}, nil
}
