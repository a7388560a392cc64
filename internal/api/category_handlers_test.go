package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorapp/curator-server/internal/catalog"
	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/query"
)

func TestCategories_CRUD(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")

	created := ts.createCategory(t, authz, map[string]any{
		"name":     "Cooking",
		"keywords": []string{"recipe", "kitchen"},
	})
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)
	assert.Equal(t, []string{"recipe", "kitchen"}, created.Keywords)

	resp := ts.api.Get("/api/v1/categories", authz)
	require.Equal(t, http.StatusOK, resp.Code)
	var snap catalog.Snapshot
	decode(t, resp, &snap)
	assert.True(t, snap.Loaded)
	require.Len(t, snap.Categories, 1)

	resp = ts.api.Patch("/api/v1/categories/"+created.ID, authz, map[string]any{
		"description": "Food videos",
		"is_active":   false,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var updated domain.Category
	decode(t, resp, &updated)
	assert.Equal(t, "Cooking", updated.Name)
	assert.Equal(t, "Food videos", updated.Description)
	assert.False(t, updated.IsActive)

	resp = ts.api.Get("/api/v1/categories/"+created.ID, authz)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/categories/"+created.ID, authz)
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/categories/"+created.ID, authz)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCategories_DuplicateNameConflicts(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")
	ts.createCategory(t, authz, map[string]any{"name": "Cooking"})

	resp := ts.api.Post("/api/v1/categories", authz, map[string]any{"name": "Cooking"})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestCategories_BlankNameRejected(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")

	resp := ts.api.Post("/api/v1/categories", authz, map[string]any{"name": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "VALIDATION", errorCode(t, resp))
}

func TestCategories_IsolatedPerUser(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.registerUser(t, "alice@example.com")
	bob := ts.registerUser(t, "bob@example.com")

	c := ts.createCategory(t, alice, map[string]any{"name": "Cooking"})

	resp := ts.api.Get("/api/v1/categories/"+c.ID, bob)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Delete("/api/v1/categories/"+c.ID, bob)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCategories_SyncAndLookup(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")
	ts.createCategory(t, authz, map[string]any{"name": "Home Cooking"})
	ts.createCategory(t, authz, map[string]any{"name": "Woodworking"})

	resp := ts.api.Post("/api/v1/categories/sync", authz)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var snap catalog.Snapshot
	decode(t, resp, &snap)
	assert.Len(t, snap.Categories, 2)

	resp = ts.api.Get("/api/v1/categories/lookup?name=cook", authz)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var matches struct {
		Categories []*domain.Category `json:"categories"`
	}
	decode(t, resp, &matches)
	require.Len(t, matches.Categories, 1)
	assert.Equal(t, "Home Cooking", matches.Categories[0].Name)
}

func TestCategories_PreviewQuery(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")
	c := ts.createCategory(t, authz, map[string]any{
		"name":     "Cooking",
		"keywords": []string{"recipe", "tv", "pasta", "kitchen", "baking"},
	})

	resp := ts.api.Get("/api/v1/categories/"+c.ID+"/query?q=Pasta+night", authz)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var e query.Enhancement
	decode(t, resp, &e)
	assert.Equal(t, "Cooking Pasta night recipe kitchen", e.Query)
	assert.Equal(t, []string{"recipe", "kitchen"}, e.AddedKeywords)
	assert.True(t, e.PrependedName)

	resp = ts.api.Get("/api/v1/categories/"+c.ID+"/query?q="+url.QueryEscape(e.Query), authz)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var again query.Enhancement
	decode(t, resp, &again)
	assert.Equal(t, e.Query, again.Query)
	assert.Empty(t, again.AddedKeywords)
}
