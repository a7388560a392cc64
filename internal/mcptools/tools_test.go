package mcptools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorapp/curator-server/internal/catalog"
	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/id"
	"github.com/curatorapp/curator-server/internal/realtime"
	"github.com/curatorapp/curator-server/internal/session"
	"github.com/curatorapp/curator-server/internal/store/sqlite"
	"github.com/curatorapp/curator-server/internal/validation"
)

type stubProvider struct {
	queries []string
	fail    error
}

func (p *stubProvider) Search(_ context.Context, q string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	p.queries = append(p.queries, q)
	if p.fail != nil {
		return nil, p.fail
	}
	next := "p2"
	if opts.PageToken == "p2" {
		next = ""
	}
	return &domain.SearchResponse{
		Items:         []domain.RawVideo{{ID: "v1", Title: "Knife skills", ChannelTitle: "Chef", Duration: "PT10M"}},
		NextPageToken: next,
		TotalResults:  2,
	}, nil
}

func newTestSession(t *testing.T, provider *stubProvider) *session.Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "curator.db"), logger)
	require.NoError(t, err)
	hub := realtime.NewHub(logger, realtime.Options{})
	go hub.Start(ctx)
	db.SetEmitter(hub)

	now := time.Now().UTC()
	user := &domain.User{ID: id.MustGenerate(id.PrefixUser), Email: "mcp@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.CreateUser(ctx, user))

	m := session.NewManager(session.Dependencies{
		Categories: db,
		Feed:       hub,
		Provider:   provider,
		Validator:  validation.New(),
		Logger:     logger,
	}, session.Options{CategoryDebounce: time.Hour, QueryDebounce: time.Hour})
	t.Cleanup(func() {
		_ = m.Shutdown()
		cancel()
		_ = hub.Shutdown(context.Background())
		_ = db.Close()
	})

	sess, err := m.Get(ctx, user.ID)
	require.NoError(t, err)

	for _, in := range []catalog.CategoryInput{
		{Name: "Cooking", Keywords: []string{"recipe", "kitchen"}},
		{Name: "Woodworking", Description: "Hand tools", Keywords: []string{"joinery"}},
	} {
		_, err := sess.Categories.Add(ctx, in)
		require.NoError(t, err)
	}
	return sess
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func call(t *testing.T, tool Tool, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := tool.Handle(context.Background(), makeReq(args))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestTools_Definitions(t *testing.T) {
	sess := newTestSession(t, &stubProvider{})

	names := make([]string, 0)
	for _, tool := range Tools(sess) {
		names = append(names, tool.Definition().Name)
	}
	assert.Equal(t, []string{
		"list_categories", "find_category", "enhance_query", "select_category",
		"search_videos", "next_page", "prev_page", "clear_results",
	}, names)

	def := (&SearchVideosTool{}).Definition()
	assert.Contains(t, def.InputSchema.Required, "query")
	assert.Contains(t, def.InputSchema.Properties, "max_results")
}

func TestListAndFindCategories(t *testing.T) {
	sess := newTestSession(t, &stubProvider{})

	res := call(t, &ListCategoriesTool{sess: sess}, nil)
	text := resultText(res)
	assert.Contains(t, text, "2 categories")
	assert.Contains(t, text, "Cooking")
	assert.Contains(t, text, "keywords: joinery")

	res = call(t, &FindCategoryTool{sess: sess}, map[string]any{"name": "wood"})
	assert.Contains(t, resultText(res), "Woodworking")
	assert.NotContains(t, resultText(res), "Cooking")

	res = call(t, &FindCategoryTool{sess: sess}, map[string]any{})
	assert.True(t, res.IsError)
}

func TestEnhanceQuery(t *testing.T) {
	sess := newTestSession(t, &stubProvider{})

	res := call(t, &EnhanceQueryTool{sess: sess}, map[string]any{"category": "cooking", "query": "pasta"})
	require.False(t, res.IsError, resultText(res))
	text := resultText(res)
	assert.Contains(t, text, "Enhanced query: Cooking pasta recipe kitchen")
	assert.Contains(t, text, "Added keywords: recipe, kitchen")

	res = call(t, &EnhanceQueryTool{sess: sess}, map[string]any{"category": "zzz"})
	assert.True(t, res.IsError)
}

func TestSelectThenSearchAndPage(t *testing.T) {
	provider := &stubProvider{}
	sess := newTestSession(t, provider)

	res := call(t, &SelectCategoryTool{sess: sess}, map[string]any{"category": "Cooking"})
	require.False(t, res.IsError, resultText(res))
	require.NotNil(t, sess.Categories.SelectedCategory())

	res = call(t, &SearchVideosTool{sess: sess}, map[string]any{"query": "pasta"})
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), "Knife skills")
	assert.Contains(t, resultText(res), "10:00")
	assert.Equal(t, []string{"pasta recipe kitchen"}, provider.queries)

	res = call(t, &PageTool{sess: sess, next: true}, nil)
	assert.Contains(t, resultText(res), "page 2")

	res = call(t, &PageTool{sess: sess, next: true}, nil)
	assert.Equal(t, "No such page.", resultText(res))

	res = call(t, &ClearResultsTool{sess: sess}, nil)
	assert.Equal(t, "Results cleared.", resultText(res))

	res = call(t, &SelectCategoryTool{sess: sess}, map[string]any{})
	assert.Equal(t, "Selection cleared.", resultText(res))
	assert.Nil(t, sess.Categories.SelectedCategory())
}

func TestSearchVideos_ProviderFailureIsToolError(t *testing.T) {
	sess := newTestSession(t, &stubProvider{fail: errors.New("quota exceeded")})

	res := call(t, &SearchVideosTool{sess: sess}, map[string]any{"query": "pasta"})
	assert.True(t, res.IsError)
	assert.False(t, strings.Contains(resultText(res), "Knife"))
}

func TestSearchVideos_RejectsBadInput(t *testing.T) {
	sess := newTestSession(t, &stubProvider{})

	assert.True(t, call(t, &SearchVideosTool{sess: sess}, map[string]any{"query": " "}).IsError)
	assert.True(t, call(t, &SearchVideosTool{sess: sess}, map[string]any{"query": "x", "max_results": float64(90)}).IsError)
}
