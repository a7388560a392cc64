package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/store"
	"github.com/curatorapp/curator-server/internal/videoindex"
)

// AnalysisCache is the TTL'd analysis store.
type AnalysisCache interface {
	Put(ctx context.Context, a *domain.Analysis) error
	Get(ctx context.Context, userID, categoryID, videoID string) (*domain.Analysis, error)
}

// AnalysisSearcher runs full-text queries over cached analyses.
type AnalysisSearcher interface {
	Search(ctx context.Context, p videoindex.Params) (*videoindex.Result, error)
}

// AnalysisService stores externally computed relevance analyses against a
// user's own categories.
type AnalysisService struct {
	categories store.CategoryStore
	cache      AnalysisCache
	index      AnalysisSearcher
	logger     *slog.Logger
}

// NewAnalysisService creates an analysis service. index may be nil, in which
// case Search fails with INTERNAL.
func NewAnalysisService(categories store.CategoryStore, cache AnalysisCache, index AnalysisSearcher, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{categories: categories, cache: cache, index: index, logger: logger}
}

// Put stores a for userID. The category must belong to the user.
func (s *AnalysisService) Put(ctx context.Context, userID string, a *domain.Analysis) (*domain.Analysis, error) {
	if _, err := s.categories.GetCategory(ctx, userID, a.CategoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("category %s not found", a.CategoryID)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	a.UserID = userID
	if err := s.cache.Put(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns the cached analysis of videoID under categoryID.
func (s *AnalysisService) Get(ctx context.Context, userID, categoryID, videoID string) (*domain.Analysis, error) {
	return s.cache.Get(ctx, userID, categoryID, videoID)
}

// Search queries the user's cached analyses.
func (s *AnalysisService) Search(ctx context.Context, userID string, p videoindex.Params) (*videoindex.Result, error) {
	if s.index == nil {
		return nil, domainerrors.Internal("analysis search is not available")
	}
	p.UserID = userID
	return s.index.Search(ctx, p)
}
