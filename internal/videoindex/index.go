// Package videoindex is a Bleve full-text index over cached video analyses.
// Every query is scoped to a single owner.
package videoindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/curatorapp/curator-server/internal/domain"
)

// Index wraps a Bleve index. All methods are safe for concurrent use; the
// mutex guards the handle across Rebuild.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the index.
type Options struct {
	DataPath string
	Logger   *slog.Logger
}

// mappingVersion is bumped whenever buildIndexMapping changes. A mismatch
// on open triggers a rebuild.
const mappingVersion = "1"

const (
	indexDir    = "videos.bleve"
	versionFile = "videos.version"
	batchSize   = 500
)

// New opens the index under opts.DataPath, creating it if missing. An index
// that cannot be opened or carries another mapping version is recreated.
func New(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, indexDir)
	versionPath := filepath.Join(opts.DataPath, versionFile)

	var idx bleve.Index
	rebuild := false

	_, statErr := os.Stat(indexPath)
	exists := statErr == nil

	if exists {
		v, err := os.ReadFile(versionPath)
		switch {
		case err != nil:
			logger.Info("video index has no version file, rebuilding", "new_version", mappingVersion)
			rebuild = true
		case string(v) != mappingVersion:
			logger.Info("video index mapping changed, rebuilding",
				"old_version", string(v),
				"new_version", mappingVersion,
			)
			rebuild = true
		}
	}

	if exists && !rebuild {
		var err error
		idx, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open video index, recreating", "path", indexPath, "error", err)
			rebuild = true
		}
	}

	if rebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		idx = nil
	}

	if idx == nil {
		var err error
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write video index version file", "error", err)
		}
		logger.Info("created video index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened video index", "path", indexPath)
	}

	return &Index{index: idx, path: indexPath, logger: logger}, nil
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.Close()
}

// IndexAnalysis adds or replaces the document for a.
func (x *Index) IndexAnalysis(a *domain.Analysis) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	doc := FromAnalysis(a)
	return x.index.Index(doc.ID, doc.ToMap())
}

// IndexAnalyses indexes analyses in batches.
func (x *Index) IndexAnalyses(analyses []*domain.Analysis) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for i := 0; i < len(analyses); i += batchSize {
		end := min(i+batchSize, len(analyses))
		batch := x.index.NewBatch()
		for _, a := range analyses[i:end] {
			doc := FromAnalysis(a)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := x.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Delete removes one analysis document.
func (x *Index) Delete(userID, categoryID, videoID string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index.Delete(DocumentID(userID, categoryID, videoID))
}

// DeleteCategory removes every document for a user's category.
func (x *Index) DeleteCategory(ctx context.Context, userID, categoryID string) (int, error) {
	return x.deleteMatching(ctx, bleve.NewConjunctionQuery(term(fieldUserID, userID), term(fieldCategoryID, categoryID)))
}

// DeleteUser removes every document owned by userID.
func (x *Index) DeleteUser(ctx context.Context, userID string) (int, error) {
	return x.deleteMatching(ctx, term(fieldUserID, userID))
}

func (x *Index) deleteMatching(ctx context.Context, q query.Query) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	deleted := 0
	for {
		req := bleve.NewSearchRequestOptions(q, batchSize, 0, false)
		res, err := x.index.SearchInContext(ctx, req)
		if err != nil {
			return deleted, fmt.Errorf("find documents: %w", err)
		}
		if len(res.Hits) == 0 {
			return deleted, nil
		}
		batch := x.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := x.index.Batch(batch); err != nil {
			return deleted, fmt.Errorf("delete batch: %w", err)
		}
		deleted += len(res.Hits)
	}
}

// DocumentCount returns the number of indexed documents across all users.
func (x *Index) DocumentCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index.DocCount()
}

// Rebuild drops the index and creates an empty one. It blocks all other
// operations until done.
func (x *Index) Rebuild() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(x.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	idx, err := bleve.New(x.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	x.index = idx
	x.logger.Info("rebuilt video index", "path", x.path)
	return nil
}

func term(field, value string) *query.TermQuery {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}
