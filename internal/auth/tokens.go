package auth

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
)

const (
	tokenIssuer   = "curator-server"
	tokenAudience = "curator-client"
	claimEmail    = "email"
)

// Claims are the verified contents of an access token.
type Claims struct {
	UserID    string
	Email     string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies PASETO v4.local access tokens. The token
// id (jti) is the auth session id, so a token is only as valid as its
// session row.
type TokenService struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
	now func() time.Time
}

// NewTokenService creates a service from a 32-byte key.
func NewTokenService(key []byte, ttl time.Duration) (*TokenService, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", KeySize, len(key))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	k, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("create PASETO key: %w", err)
	}
	return &TokenService{key: k, ttl: ttl, now: time.Now}, nil
}

// TTL returns the access token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a token for user bound to sessionID.
func (s *TokenService) Issue(user *domain.User, sessionID string) (string, time.Time) {
	now := s.now()
	exp := now.Add(s.ttl)

	t := paseto.NewToken()
	t.SetIssuer(tokenIssuer)
	t.SetAudience(tokenAudience)
	t.SetSubject(user.ID)
	t.SetJti(sessionID)
	t.SetIssuedAt(now)
	t.SetNotBefore(now)
	t.SetExpiration(exp)
	t.SetString(claimEmail, user.Email)

	return t.V4Encrypt(s.key, nil), exp
}

// Verify decrypts and checks a token. Expired tokens yield TOKEN_EXPIRED;
// anything else that fails yields UNAUTHORIZED.
func (s *TokenService) Verify(token string) (*Claims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	t, err := parser.ParseV4Local(s.key, token, nil)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid access token").WithCause(err)
	}

	exp, err := t.GetExpiration()
	if err != nil {
		return nil, domainerrors.Unauthorized("access token has no expiry").WithCause(err)
	}
	now := s.now()
	if !now.Before(exp) {
		return nil, domainerrors.TokenExpired("access token expired")
	}
	if nbf, err := t.GetNotBefore(); err == nil && now.Before(nbf) {
		return nil, domainerrors.Unauthorized("access token not yet valid")
	}

	c := &Claims{ExpiresAt: exp}
	if c.UserID, err = t.GetSubject(); err != nil || c.UserID == "" {
		return nil, domainerrors.Unauthorized("access token has no subject")
	}
	if c.SessionID, err = t.GetJti(); err != nil || c.SessionID == "" {
		return nil, domainerrors.Unauthorized("access token has no session")
	}
	c.Email, _ = t.GetString(claimEmail)
	c.IssuedAt, _ = t.GetIssuedAt()
	return c, nil
}
