package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSearchOptions_Merge(t *testing.T) {
	got := DefaultSearchOptions().Merge(&SearchOptions{MaxResults: 10, Order: "date"})

	assert.Equal(t, SearchOptions{
		MaxResults:    10,
		Type:          "video",
		Order:         "date",
		VideoDuration: "any",
	}, got)
	assert.Equal(t, DefaultSearchOptions(), DefaultSearchOptions().Merge(nil))
}

func TestCategory_CloneIsDeep(t *testing.T) {
	c := &Category{ID: "c1", Keywords: []string{"recipe"}}
	cp := c.Clone()
	cp.Keywords[0] = "changed"

	assert.Equal(t, "recipe", c.Keywords[0])
	assert.Nil(t, (*Category)(nil).Clone())
}

func TestCategory_Touch(t *testing.T) {
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Category{CreatedAt: old, UpdatedAt: old}
	c.Touch()

	assert.True(t, c.UpdatedAt.After(old))
	assert.Equal(t, time.UTC, c.UpdatedAt.Location())
	assert.Equal(t, old, c.CreatedAt)
}

func TestNormalizeTerms(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, NormalizeTerms([]string{" a ", "", "  ", "b c"}))
}

func TestChangeEvent_RowID(t *testing.T) {
	del := NewChangeEvent(ChangeDelete, "usr-1", &Category{ID: "old"}, nil)
	assert.Equal(t, "old", del.RowID())
	assert.Equal(t, TableCategories, del.Table)

	upd := NewChangeEvent(ChangeUpdate, "usr-1", &Category{ID: "old"}, &Category{ID: "new"})
	assert.Equal(t, "new", upd.RowID())
}
