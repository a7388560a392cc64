package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorapp/curator-server/internal/analysis"
	"github.com/curatorapp/curator-server/internal/auth"
	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/ratelimit"
	"github.com/curatorapp/curator-server/internal/realtime"
	"github.com/curatorapp/curator-server/internal/service"
	"github.com/curatorapp/curator-server/internal/session"
	"github.com/curatorapp/curator-server/internal/store"
	"github.com/curatorapp/curator-server/internal/store/sqlite"
	"github.com/curatorapp/curator-server/internal/validation"
	"github.com/curatorapp/curator-server/internal/videoindex"
)

// fakeProvider answers every query with a single video and a next page token.
type fakeProvider struct {
	mu      sync.Mutex
	queries []string
	tokens  []string
}

func (p *fakeProvider) Search(_ context.Context, q string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	p.mu.Lock()
	p.queries = append(p.queries, q)
	p.tokens = append(p.tokens, opts.PageToken)
	p.mu.Unlock()
	return &domain.SearchResponse{
		Items:         []domain.RawVideo{{ID: "vid-" + opts.PageToken, Title: q, Duration: "PT1M5S"}},
		NextPageToken: "page2",
		TotalResults:  42,
	}, nil
}

func (p *fakeProvider) lastQuery() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queries) == 0 {
		return ""
	}
	return p.queries[len(p.queries)-1]
}

type testServer struct {
	api      humatest.TestAPI
	server   *Server
	provider *fakeProvider
	sessions *session.Manager
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "curator.db"), logger)
	require.NoError(t, err)

	hub := realtime.NewHub(logger, realtime.Options{})
	go hub.Start(ctx)

	idx, err := videoindex.New(videoindex.Options{DataPath: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	cache, err := analysis.Open("", logger, analysis.Options{InMemory: true, Indexer: idx})
	require.NoError(t, err)
	db.SetEmitter(store.MultiEmitter{hub, cache})

	key, err := auth.LoadOrGenerateKey(filepath.Join(t.TempDir(), "auth.key"))
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	provider := &fakeProvider{}
	sessions := session.NewManager(session.Dependencies{
		Categories: db,
		Feed:       hub,
		Provider:   provider,
		Annotator:  cache,
		Validator:  validation.New(),
		Logger:     logger,
	}, session.Options{
		CategoryDebounce: 20 * time.Millisecond,
		QueryDebounce:    20 * time.Millisecond,
	})

	authService := service.NewAuthService(db, tokens, logger, cache)
	authService.OnSessionChange(func(ev service.SessionEvent) {
		if ev.Type == service.SignedOut {
			sessions.End(ev.UserID)
		}
	})

	srv := NewServer(&Services{
		Auth:     authService,
		Analysis: service.NewAnalysisService(db, cache, idx, logger),
		Sessions: sessions,
		Store:    db,
	}, Options{AuthRPS: 100, AuthBurst: 100}, logger)

	t.Cleanup(func() {
		srv.Close()
		_ = sessions.Shutdown()
		cancel()
		_ = hub.Shutdown(context.Background())
		_ = cache.Close()
		_ = idx.Close()
		_ = db.Close()
	})

	return &testServer{
		api:      humatest.Wrap(t, srv.API()),
		server:   srv,
		provider: provider,
		sessions: sessions,
	}
}

// registerUser creates an account and returns its bearer header.
func (ts *testServer) registerUser(t *testing.T, email string) string {
	t.Helper()
	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":        email,
		"password":     "correct-horse",
		"display_name": "Test User",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body AuthResponse
	decode(t, resp, &body)
	require.NotEmpty(t, body.AccessToken)
	return "Authorization: Bearer " + body.AccessToken
}

func (ts *testServer) createCategory(t *testing.T, authz string, body map[string]any) *domain.Category {
	t.Helper()
	resp := ts.api.Post("/api/v1/categories", authz, body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var c domain.Category
	decode(t, resp, &c)
	return &c
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), resp.Body.String())
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Code string `json:"code"`
	}
	decode(t, resp, &e)
	return e.Code
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body HealthResponse
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Components["database"].Status)
	assert.Equal(t, "0 live sessions", body.Components["sessions"].Message)
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")

	resp := ts.api.Get("/api/v1/users/me", authz)
	require.Equal(t, http.StatusOK, resp.Code)
	var me UserResponse
	decode(t, resp, &me)
	assert.Equal(t, "alice@example.com", me.Email)

	resp = ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, resp))

	resp = ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var login AuthResponse
	decode(t, resp, &login)
	assert.Equal(t, "Bearer", login.TokenType)
}

func TestAuth_RegisterDuplicate(t *testing.T) {
	ts := setupTestServer(t)
	ts.registerUser(t, "alice@example.com")

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":        "alice@example.com",
		"password":     "correct-horse",
		"display_name": "Again",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "ALREADY_EXISTS", errorCode(t, resp))
}

func TestAuth_RequiresToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/categories")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, resp))

	resp = ts.api.Get("/api/v1/categories", "Authorization: Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuth_LogoutRevokesTokenAndEndsSession(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")

	require.Equal(t, http.StatusOK, ts.api.Get("/api/v1/categories", authz).Code)
	assert.Equal(t, 1, ts.sessions.Count())

	resp := ts.api.Post("/api/v1/auth/logout", authz)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 0, ts.sessions.Count())

	resp = ts.api.Get("/api/v1/users/me", authz)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuth_RateLimited(t *testing.T) {
	ts := setupTestServer(t)
	ts.server.authLimiter.Stop()
	ts.server.authLimiter = ratelimit.New(0.001, 1)

	body := map[string]any{"email": "nobody@example.com", "password": "correct-horse"}
	assert.Equal(t, http.StatusUnauthorized, ts.api.Post("/api/v1/auth/login", body).Code)

	resp := ts.api.Post("/api/v1/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, resp))
}

func TestDeleteAccount(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")
	ts.createCategory(t, authz, map[string]any{"name": "Cooking"})

	resp := ts.api.Delete("/api/v1/users/me", authz)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 0, ts.sessions.Count())

	resp = ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestErrorBodyShape(t *testing.T) {
	ts := setupTestServer(t)
	authz := ts.registerUser(t, "alice@example.com")

	resp := ts.api.Get("/api/v1/categories/missing", authz)
	require.Equal(t, http.StatusNotFound, resp.Code)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Contains(t, body["message"], "missing")
}
