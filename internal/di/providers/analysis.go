package providers

import (
	"github.com/samber/do/v2"

	"github.com/curatorapp/curator-server/internal/analysis"
	"github.com/curatorapp/curator-server/internal/config"
	"github.com/curatorapp/curator-server/internal/logger"
	"github.com/curatorapp/curator-server/internal/service"
	"github.com/curatorapp/curator-server/internal/videoindex"
)

// VideoIndexHandle wraps the full-text index with shutdown capability.
type VideoIndexHandle struct {
	*videoindex.Index
}

// Shutdown implements do.Shutdownable.
func (h *VideoIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideVideoIndex provides the Bleve index over cached analyses.
func ProvideVideoIndex(i do.Injector) (*VideoIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	idx, err := videoindex.New(videoindex.Options{
		DataPath: cfg.IndexPath(),
		Logger:   log.Component("videoindex"),
	})
	if err != nil {
		return nil, err
	}

	if n, err := idx.DocumentCount(); err == nil {
		log.Info("Video index opened", "path", cfg.IndexPath(), "documents", n)
	}

	return &VideoIndexHandle{Index: idx}, nil
}

// AnalysisCacheHandle wraps the Badger analysis cache with shutdown capability.
type AnalysisCacheHandle struct {
	*analysis.Cache
}

// Shutdown implements do.Shutdownable.
func (h *AnalysisCacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideAnalysisCache provides the analysis cache. Every write is mirrored
// into the video index.
func ProvideAnalysisCache(i do.Injector) (*AnalysisCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	idx := do.MustInvoke[*VideoIndexHandle](i)

	cache, err := analysis.Open(cfg.AnalysisPath(), log.Component("analysis"), analysis.Options{
		TTL:     cfg.Analysis.TTL,
		Indexer: idx.Index,
	})
	if err != nil {
		return nil, err
	}

	log.Info("Analysis cache opened", "path", cfg.AnalysisPath(), "ttl", cfg.Analysis.TTL)

	return &AnalysisCacheHandle{Cache: cache}, nil
}

// ProvideAnalysisService provides the analysis service.
func ProvideAnalysisService(i do.Injector) (*service.AnalysisService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cache := do.MustInvoke[*AnalysisCacheHandle](i)
	idx := do.MustInvoke[*VideoIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAnalysisService(storeHandle.Store, cache.Cache, idx.Index, log.Logger), nil
}
