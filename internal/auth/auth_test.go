package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
)

var cheap = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPassword_RoundTrip(t *testing.T) {
	hash, err := HashPasswordWithParams("correct horse", cheap)
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong horse"))
	assert.False(t, VerifyPassword("not-a-hash", "correct horse"))
	assert.True(t, NeedsRehash(hash))
}

func TestPassword_Limits(t *testing.T) {
	_, err := HashPasswordWithParams("", cheap)
	assert.ErrorIs(t, err, ErrEmptyPassword)

	long := make([]byte, MaxPasswordLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = HashPasswordWithParams(string(long), cheap)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestLoadOrGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.key")

	first, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, KeySize)

	second, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadOrGenerateKey_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.key")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	_, err := LoadOrGenerateKey(path)
	assert.Error(t, err)
}

func newTokens(t *testing.T) *TokenService {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	s, err := NewTokenService(key, time.Hour)
	require.NoError(t, err)
	return s
}

func TestTokens_IssueVerify(t *testing.T) {
	s := newTokens(t)
	user := &domain.User{ID: "usr-1", Email: "a@example.com"}

	tok, exp := s.Issue(user, "sess-1")
	claims, err := s.Verify(tok)
	require.NoError(t, err)

	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
}

func TestTokens_Expired(t *testing.T) {
	s := newTokens(t)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _ := s.Issue(&domain.User{ID: "usr-1"}, "sess-1")
	s.now = time.Now

	_, err := s.Verify(tok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrTokenExpired))
}

func TestTokens_Tampered(t *testing.T) {
	s := newTokens(t)
	tok, _ := s.Issue(&domain.User{ID: "usr-1"}, "sess-1")

	_, err := s.Verify(tok[:len(tok)-2] + "xx")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))

	other, err := NewTokenService(make([]byte, KeySize), time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(tok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))
}

func TestNewTokenService_Validates(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)
	_, err = NewTokenService(make([]byte, KeySize), 0)
	assert.Error(t, err)
}
