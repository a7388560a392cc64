package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/curatorapp/curator-server/internal/config"
	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/logger"
	"github.com/curatorapp/curator-server/internal/search"
	"github.com/curatorapp/curator-server/internal/youtube"
)

// SearchProviderHandle wraps the video search provider with shutdown capability.
type SearchProviderHandle struct {
	search.Provider
	close func()
}

// Shutdown implements do.Shutdownable.
func (h *SearchProviderHandle) Shutdown() error {
	if h.close != nil {
		h.close()
	}
	return nil
}

// unconfiguredProvider fails every search. Development servers run without
// an API key.
type unconfiguredProvider struct{}

func (unconfiguredProvider) Search(context.Context, string, domain.SearchOptions) (*domain.SearchResponse, error) {
	return nil, domainerrors.Provider("YouTube API key is not configured")
}

// ProvideSearchProvider provides the YouTube search client.
func ProvideSearchProvider(i do.Injector) (*SearchProviderHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.YouTube.APIKey == "" {
		log.Warn("YouTube API key not set, searches will fail")
		return &SearchProviderHandle{Provider: unconfiguredProvider{}}, nil
	}

	client, err := youtube.New(context.Background(), youtube.Config{
		APIKey:   cfg.YouTube.APIKey,
		Endpoint: cfg.YouTube.Endpoint,
		RPS:      cfg.YouTube.RPS,
		Burst:    cfg.YouTube.Burst,
		Timeout:  cfg.YouTube.Timeout,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("YouTube client ready", "rps", cfg.YouTube.RPS, "burst", cfg.YouTube.Burst)

	return &SearchProviderHandle{Provider: client, close: client.Close}, nil
}
