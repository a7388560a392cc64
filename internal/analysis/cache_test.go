package analysis

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
)

type recordingIndexer struct {
	mu       sync.Mutex
	indexed  []string
	purged   []string
	failWith error
}

func (r *recordingIndexer) IndexAnalysis(a *domain.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, a.VideoID)
	return r.failWith
}

func (r *recordingIndexer) Delete(_, _, videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = append(r.purged, videoID)
	return nil
}

func (r *recordingIndexer) DeleteCategory(_ context.Context, _, categoryID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = append(r.purged, "category:"+categoryID)
	return 0, nil
}

func (r *recordingIndexer) DeleteUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = append(r.purged, "user:"+userID)
	return 0, nil
}

func (r *recordingIndexer) purges() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.purged...)
}

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sample(user, cat, video string, score int) *domain.Analysis {
	return &domain.Analysis{
		UserID:         user,
		CategoryID:     cat,
		VideoID:        video,
		VideoTitle:     "title " + video,
		RelevanceScore: score,
		Topics:         []string{"a", "b"},
	}
}

func TestCache_PutGet(t *testing.T) {
	idx := &recordingIndexer{}
	c := newTestCache(t, Options{Indexer: idx})
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, sample("usr-1", "cat-1", "v1", 80)))

	got, err := c.Get(ctx, "usr-1", "cat-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, 80, got.RelevanceScore)
	assert.Equal(t, []string{"a", "b"}, got.Topics)
	assert.False(t, got.AnalyzedAt.IsZero())
	assert.Equal(t, []string{"v1"}, idx.indexed)

	_, err = c.Get(ctx, "usr-2", "cat-1", "v1")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestCache_PutValidates(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx := context.Background()

	tests := map[string]*domain.Analysis{
		"no owner":       sample("", "cat", "v", 10),
		"score too high": sample("usr", "cat", "v", 101),
		"no video":       sample("usr", "cat", "", 10),
		"colon in id":    sample("usr", "cat:x", "v", 10),
	}
	for name, a := range tests {
		t.Run(name, func(t *testing.T) {
			err := c.Put(ctx, a)
			assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
		})
	}
}

func TestCache_IndexFailureDoesNotFailPut(t *testing.T) {
	c := newTestCache(t, Options{Indexer: &recordingIndexer{failWith: assert.AnError}})

	require.NoError(t, c.Put(context.Background(), sample("usr", "cat", "v", 10)))
}

func TestCache_Annotate(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, sample("usr-1", "cat-1", "v2", 64)))

	videos := []domain.VideoUI{{ID: "v1"}, {ID: "v2"}}
	require.NoError(t, c.Annotate(ctx, "usr-1", "cat-1", videos))

	assert.Nil(t, videos[0].RelevanceScore)
	require.NotNil(t, videos[1].RelevanceScore)
	assert.Equal(t, 64, *videos[1].RelevanceScore)
	assert.Equal(t, "v2", videos[1].Analysis.VideoID)
}

func TestCache_DeleteCategoryAndUser(t *testing.T) {
	idx := &recordingIndexer{}
	c := newTestCache(t, Options{Indexer: idx})
	ctx := context.Background()
	for _, a := range []*domain.Analysis{
		sample("usr-1", "cat-1", "v1", 1),
		sample("usr-1", "cat-1", "v2", 2),
		sample("usr-1", "cat-10", "v3", 3),
		sample("usr-2", "cat-1", "v4", 4),
	} {
		require.NoError(t, c.Put(ctx, a))
	}

	n, err := c.DeleteCategory(ctx, "usr-1", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rest, err := c.ListCategory(ctx, "usr-1", "cat-10")
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	n, err = c.DeleteUser(ctx, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.Get(ctx, "usr-2", "cat-1", "v4")
	assert.NoError(t, err)
	assert.Equal(t, []string{"category:cat-1", "user:usr-1"}, idx.purges())
}

func TestCache_EmitPurgesDeletedCategory(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, sample("usr-1", "cat-1", "v1", 1)))

	c.Emit(domain.NewChangeEvent(domain.ChangeUpdate, "usr-1", nil, &domain.Category{ID: "cat-1"}))
	c.Emit(domain.NewChangeEvent(domain.ChangeDelete, "usr-1", &domain.Category{ID: "cat-1"}, nil))

	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "usr-1", "cat-1", "v1")
		return domainerrors.Is(err, domainerrors.ErrNotFound)
	}, time.Second, 10*time.Millisecond)
}

func TestCache_TTLExpires(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Second})
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, sample("usr-1", "cat-1", "v1", 1)))

	// Badger TTLs have one-second resolution.
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "usr-1", "cat-1", "v1")
		return domainerrors.Is(err, domainerrors.ErrNotFound)
	}, 5*time.Second, 100*time.Millisecond)
}

func TestCache_InMemory(t *testing.T) {
	c, err := Open("", slog.New(slog.NewTextHandler(io.Discard, nil)), Options{InMemory: true})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(context.Background(), sample("u", "c", "v", 5)))
	got, err := c.GetMany(context.Background(), "u", "c", []string{"v", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
