package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/store"
)

func newCategory(id, userID, name string, created time.Time) *domain.Category {
	return &domain.Category{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: name + " videos",
		Keywords:    []string{"recipe", "chef"},
		Tags:        []string{"food"},
		IsActive:    true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestCategories_CRUDAndEvents(t *testing.T) {
	s := newTestStore(t)
	rec := &recorder{}
	s.SetEmitter(rec)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "a@example.com")

	base := time.Now().Add(-time.Hour)
	c1 := newCategory("c1", "usr-1", "Cooking", base)
	c2 := newCategory("c2", "usr-1", "Woodworking", base.Add(time.Minute))
	require.NoError(t, s.CreateCategory(ctx, c2))
	require.NoError(t, s.CreateCategory(ctx, c1))

	list, err := s.ListCategories(ctx, "usr-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID, "ordered by created_at")
	assert.Equal(t, []string{"recipe", "chef"}, list[0].Keywords)
	assert.True(t, list[0].IsActive)

	updated := c1.Clone()
	updated.Keywords = []string{"pasta"}
	updated.VideoCount = 7
	updated.UpdatedAt = time.Now()
	require.NoError(t, s.UpdateCategory(ctx, updated))

	got, err := s.GetCategory(ctx, "usr-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pasta"}, got.Keywords)
	assert.Equal(t, 7, got.VideoCount)
	assert.True(t, got.CreatedAt.Equal(c1.CreatedAt))

	require.NoError(t, s.DeleteCategory(ctx, "usr-1", "c2"))
	_, err = s.GetCategory(ctx, "usr-1", "c2")
	assert.ErrorIs(t, err, store.ErrNotFound)

	events := rec.all()
	require.Len(t, events, 4)
	assert.Equal(t, domain.ChangeInsert, events[0].Type)
	assert.Equal(t, "c2", events[0].New.ID)
	assert.Equal(t, domain.ChangeUpdate, events[2].Type)
	assert.Equal(t, []string{"recipe", "chef"}, events[2].Old.Keywords)
	assert.Equal(t, []string{"pasta"}, events[2].New.Keywords)
	assert.Equal(t, domain.ChangeDelete, events[3].Type)
	assert.Nil(t, events[3].New)
	assert.Equal(t, "c2", events[3].Old.ID)
	for _, e := range events {
		assert.Equal(t, "usr-1", e.UserID)
		assert.Equal(t, domain.TableCategories, e.Table)
	}
}

func TestCategories_NameUniquePerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "a@example.com")
	mustCreateUser(t, s, "usr-2", "b@example.com")
	now := time.Now()

	require.NoError(t, s.CreateCategory(ctx, newCategory("c1", "usr-1", "Cooking", now)))
	err := s.CreateCategory(ctx, newCategory("c2", "usr-1", "Cooking", now))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	require.NoError(t, s.CreateCategory(ctx, newCategory("c3", "usr-2", "Cooking", now)),
		"same name under another user is allowed")

	require.NoError(t, s.CreateCategory(ctx, newCategory("c4", "usr-1", "Baking", now)))
	rename := newCategory("c4", "usr-1", "Cooking", now)
	assert.ErrorIs(t, s.UpdateCategory(ctx, rename), store.ErrAlreadyExists)
}

func TestCategories_RowIsolation(t *testing.T) {
	s := newTestStore(t)
	rec := &recorder{}
	s.SetEmitter(rec)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "a@example.com")
	mustCreateUser(t, s, "usr-2", "b@example.com")
	require.NoError(t, s.CreateCategory(ctx, newCategory("c1", "usr-1", "Cooking", time.Now())))

	_, err := s.GetCategory(ctx, "usr-2", "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	foreign := newCategory("c1", "usr-2", "Hijacked", time.Now())
	assert.ErrorIs(t, s.UpdateCategory(ctx, foreign), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCategory(ctx, "usr-2", "c1"), store.ErrNotFound)

	list, err := s.ListCategories(ctx, "usr-2")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Len(t, rec.all(), 1, "failed mutations emit nothing")
}

func TestDeleteUser_CascadesCategories(t *testing.T) {
	s := newTestStore(t)
	rec := &recorder{}
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "a@example.com")
	require.NoError(t, s.CreateCategory(ctx, newCategory("c1", "usr-1", "Cooking", time.Now())))
	require.NoError(t, s.CreateCategory(ctx, newCategory("c2", "usr-1", "Chess", time.Now())))
	s.SetEmitter(rec)

	require.NoError(t, s.DeleteUser(ctx, "usr-1"))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&n))
	assert.Zero(t, n)

	events := rec.all()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, domain.ChangeDelete, e.Type)
	}
	assert.ErrorIs(t, s.DeleteUser(ctx, "usr-1"), store.ErrNotFound)
}

func TestCreateCategory_UnknownOwner(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateCategory(context.Background(), newCategory("c1", "usr-ghost", "Cooking", time.Now()))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
