// Package analysis caches externally computed relevance analyses of videos
// per user and category in Badger, with a TTL, and annotates search results
// from that cache.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/validation"
)

// DefaultTTL is how long an analysis stays cached when Options.TTL is zero.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "analysis:"

// Indexer mirrors cached analyses into a full-text index.
type Indexer interface {
	IndexAnalysis(a *domain.Analysis) error
	Delete(userID, categoryID, videoID string) error
	DeleteCategory(ctx context.Context, userID, categoryID string) (int, error)
	DeleteUser(ctx context.Context, userID string) (int, error)
}

// Options configures a Cache.
type Options struct {
	TTL time.Duration
	// InMemory keeps the database in RAM; path is ignored.
	InMemory bool
	Indexer  Indexer
}

// Cache is a Badger-backed analysis cache. Keys are
// "analysis:{user}:{category}:{video}".
type Cache struct {
	db        *badger.DB
	ttl       time.Duration
	indexer   Indexer
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Open opens or creates the cache at path.
func Open(path string, logger *slog.Logger, opts Options) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bopts := badger.DefaultOptions(path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	bopts.CompactL0OnClose = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	logger.Info("analysis cache opened", "path", path, "in_memory", opts.InMemory, "ttl", ttl)

	return &Cache{
		db:        db,
		ttl:       ttl,
		indexer:   opts.Indexer,
		validator: validation.New(),
		logger:    logger.With(slog.String("component", "analysis")),
		now:       time.Now,
	}, nil
}

// Close waits for background purges and closes the database.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
	return c.db.Close()
}

func entryKey(userID, categoryID, videoID string) []byte {
	return []byte(keyPrefix + userID + ":" + categoryID + ":" + videoID)
}

func categoryPrefix(userID, categoryID string) []byte {
	return []byte(keyPrefix + userID + ":" + categoryID + ":")
}

func userPrefix(userID string) []byte {
	return []byte(keyPrefix + userID + ":")
}

// Put stores a for its owner, replacing any earlier analysis of the same
// video in the same category.
func (c *Cache) Put(ctx context.Context, a *domain.Analysis) error {
	if a.UserID == "" || strings.Contains(a.UserID, ":") {
		return domainerrors.Validation("analysis owner is required")
	}
	if err := c.validator.Validate(a); err != nil {
		return err
	}
	if strings.Contains(a.CategoryID, ":") || strings.Contains(a.VideoID, ":") {
		return domainerrors.Validation("category and video ids must not contain ':'")
	}
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = c.now().UTC()
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := badger.NewEntry(entryKey(a.UserID, a.CategoryID, a.VideoID), data).WithTTL(c.ttl)
	if err := c.db.Update(func(txn *badger.Txn) error { return txn.SetEntry(entry) }); err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}

	if c.indexer != nil {
		if err := c.indexer.IndexAnalysis(a); err != nil {
			c.logger.Warn("failed to index analysis", "video_id", a.VideoID, "error", err)
		}
	}
	return nil
}

// Get returns the cached analysis or a NOT_FOUND error.
func (c *Cache) Get(ctx context.Context, userID, categoryID, videoID string) (*domain.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var a domain.Analysis
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(userID, categoryID, videoID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &a) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domainerrors.NotFoundf("no analysis for video %s", videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return &a, nil
}

// GetMany returns the cached analyses among videoIDs, keyed by video id.
// Missing videos are simply absent from the map.
func (c *Cache) GetMany(ctx context.Context, userID, categoryID string, videoIDs []string) (map[string]*domain.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Analysis, len(videoIDs))
	err := c.db.View(func(txn *badger.Txn) error {
		for _, vid := range videoIDs {
			item, err := txn.Get(entryKey(userID, categoryID, vid))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var a domain.Analysis
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &a) }); err != nil {
				return fmt.Errorf("decode %s: %w", vid, err)
			}
			out[vid] = &a
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get analyses: %w", err)
	}
	return out, nil
}

// ListCategory returns every cached analysis for a user's category.
func (c *Cache) ListCategory(ctx context.Context, userID, categoryID string) ([]*domain.Analysis, error) {
	var out []*domain.Analysis
	err := c.scan(ctx, categoryPrefix(userID, categoryID), func(item *badger.Item) error {
		var a domain.Analysis
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &a) }); err != nil {
			return err
		}
		out = append(out, &a)
		return nil
	})
	return out, err
}

// Delete removes one analysis. Deleting a missing entry is not an error.
func (c *Cache) Delete(ctx context.Context, userID, categoryID, videoID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(userID, categoryID, videoID))
	}); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if c.indexer != nil {
		if err := c.indexer.Delete(userID, categoryID, videoID); err != nil {
			c.logger.Warn("failed to unindex analysis", "video_id", videoID, "error", err)
		}
	}
	return nil
}

// DeleteCategory removes every analysis for a user's category and returns
// how many entries were removed.
func (c *Cache) DeleteCategory(ctx context.Context, userID, categoryID string) (int, error) {
	n, err := c.deletePrefix(ctx, categoryPrefix(userID, categoryID))
	if err != nil {
		return n, err
	}
	if c.indexer != nil {
		if _, err := c.indexer.DeleteCategory(ctx, userID, categoryID); err != nil {
			c.logger.Warn("failed to unindex category", "category_id", categoryID, "error", err)
		}
	}
	return n, nil
}

// DeleteUser removes every analysis owned by userID.
func (c *Cache) DeleteUser(ctx context.Context, userID string) (int, error) {
	n, err := c.deletePrefix(ctx, userPrefix(userID))
	if err != nil {
		return n, err
	}
	if c.indexer != nil {
		if _, err := c.indexer.DeleteUser(ctx, userID); err != nil {
			c.logger.Warn("failed to unindex user", "user_id", userID, "error", err)
		}
	}
	return n, nil
}

func (c *Cache) deletePrefix(ctx context.Context, prefix []byte) (int, error) {
	var keys [][]byte
	if err := c.scan(ctx, prefix, func(item *badger.Item) error {
		keys = append(keys, item.KeyCopy(nil))
		return nil
	}); err != nil {
		return 0, err
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}
	return len(keys), nil
}

func (c *Cache) scan(ctx context.Context, prefix []byte, fn func(*badger.Item) error) error {
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(it.Item()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Annotate attaches cached analyses and relevance scores to videos in place.
func (c *Cache) Annotate(ctx context.Context, userID, categoryID string, videos []domain.VideoUI) error {
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	found, err := c.GetMany(ctx, userID, categoryID, ids)
	if err != nil {
		return err
	}
	for i := range videos {
		a, ok := found[videos[i].ID]
		if !ok {
			continue
		}
		score := a.RelevanceScore
		videos[i].RelevanceScore = &score
		videos[i].Analysis = a
	}
	return nil
}

// Emit purges a category's analyses when the category is deleted. It runs
// the purge in the background and returns immediately.
func (c *Cache) Emit(event domain.ChangeEvent) {
	if event.Type != domain.ChangeDelete || event.Table != domain.TableCategories || event.Old == nil {
		return
	}
	userID, categoryID := event.UserID, event.Old.ID

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := c.DeleteCategory(ctx, userID, categoryID)
		if err != nil {
			c.logger.Warn("failed to purge analyses of deleted category", "category_id", categoryID, "error", err)
			return
		}
		if n > 0 {
			c.logger.Debug("purged analyses of deleted category", "category_id", categoryID, "count", n)
		}
	}()
}
