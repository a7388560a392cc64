package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorapp/curator-server/internal/auth"
	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/id"
	"github.com/curatorapp/curator-server/internal/store/sqlite"
)

type countingPurger struct {
	mu    sync.Mutex
	users []string
}

func (p *countingPurger) DeleteUser(_ context.Context, userID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	return 1, nil
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "curator.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setupAuthTest(t *testing.T, purgers ...UserPurger) (*AuthService, *sqlite.Store) {
	t.Helper()
	s := newTestStore(t)

	key, err := auth.LoadOrGenerateKey(filepath.Join(t.TempDir(), "auth.key"))
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute)
	require.NoError(t, err)

	return NewAuthService(s, tokens, nil, purgers...), s
}

func register(t *testing.T, svc *AuthService, email string) *AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:       email,
		Password:    "password123",
		DisplayName: "Test User",
	})
	require.NoError(t, err)
	return resp
}

func TestAuthService_RegisterAndVerify(t *testing.T) {
	svc, _ := setupAuthTest(t)
	resp := register(t, svc, "alice@example.com")

	assert.NotEmpty(t, resp.AccessToken)
	assert.Contains(t, resp.User.ID, id.PrefixUser+"-")
	assert.Contains(t, resp.SessionID, id.PrefixSession+"-")

	user, claims, err := svc.VerifyAccessToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.Equal(t, resp.SessionID, claims.SessionID)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := setupAuthTest(t)
	register(t, svc, "alice@example.com")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "ALICE@example.com",
		Password:    "password123",
		DisplayName: "Other",
	})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrAlreadyExists))
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := setupAuthTest(t)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "nope", Password: "short", DisplayName: " "})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	details, ok := de.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "display_name")
}

func TestAuthService_Login(t *testing.T) {
	svc, _ := setupAuthTest(t)
	register(t, svc, "alice@example.com")
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	_, err = svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidCredentials))

	_, err = svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "password123"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidCredentials))
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	svc, _ := setupAuthTest(t)
	resp := register(t, svc, "alice@example.com")
	ctx := context.Background()

	var events []SessionEvent
	svc.OnSessionChange(func(ev SessionEvent) { events = append(events, ev) })

	require.NoError(t, svc.Logout(ctx, resp.User.ID, resp.SessionID))

	_, _, err := svc.VerifyAccessToken(ctx, resp.AccessToken)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))

	require.Len(t, events, 1)
	assert.Equal(t, SignedOut, events[0].Type)
	assert.Equal(t, resp.User.ID, events[0].UserID)

	// Logging out twice is harmless.
	assert.NoError(t, svc.Logout(ctx, resp.User.ID, resp.SessionID))
}

func TestAuthService_OnSessionChange(t *testing.T) {
	svc, _ := setupAuthTest(t)

	var got []SessionEventType
	unsubscribe := svc.OnSessionChange(func(ev SessionEvent) { got = append(got, ev.Type) })

	resp := register(t, svc, "alice@example.com")
	unsubscribe()
	require.NoError(t, svc.Logout(context.Background(), resp.User.ID, resp.SessionID))

	assert.Equal(t, []SessionEventType{SignedIn}, got)
}

func TestAuthService_DeleteAccount(t *testing.T) {
	purger := &countingPurger{}
	svc, s := setupAuthTest(t, purger)
	resp := register(t, svc, "alice@example.com")
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.CreateCategory(ctx, &domain.Category{
		ID:        id.NewCategoryID(),
		UserID:    resp.User.ID,
		Name:      "Cooking",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	require.NoError(t, svc.DeleteAccount(ctx, resp.User.ID))

	cats, err := s.ListCategories(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Empty(t, cats)
	assert.Equal(t, []string{resp.User.ID}, purger.users)

	_, _, err = svc.VerifyAccessToken(ctx, resp.AccessToken)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))

	err = svc.DeleteAccount(ctx, resp.User.ID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestAuthService_PruneSessions(t *testing.T) {
	svc, s := setupAuthTest(t)
	resp := register(t, svc, "alice@example.com")
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, s.CreateSession(ctx, &domain.Session{
		ID:        id.MustGenerate(id.PrefixSession),
		UserID:    resp.User.ID,
		CreatedAt: past.Add(-time.Hour),
		ExpiresAt: past,
	}))

	n, err := svc.PruneSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, _, err = svc.VerifyAccessToken(ctx, resp.AccessToken)
	assert.NoError(t, err)
}
