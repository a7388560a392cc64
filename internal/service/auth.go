// Package service holds the account and analysis services that sit between
// the HTTP/MCP surfaces and the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/curatorapp/curator-server/internal/auth"
	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/id"
	"github.com/curatorapp/curator-server/internal/store"
	"github.com/curatorapp/curator-server/internal/validation"
)

// SessionEventType distinguishes sign-in from sign-out.
type SessionEventType string

const (
	SignedIn  SessionEventType = "signed_in"
	SignedOut SessionEventType = "signed_out"
)

// SessionEvent is delivered to OnSessionChange listeners.
type SessionEvent struct {
	Type      SessionEventType
	UserID    string
	SessionID string
}

// UserPurger removes everything derived for a user outside the relational
// store.
type UserPurger interface {
	DeleteUser(ctx context.Context, userID string) (int, error)
}

// RegisterRequest contains account creation data.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"required,notblank,max=100"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	SessionID   string       `json:"session_id"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// AuthService registers accounts, issues revocable access tokens and tells
// listeners when a user signs in or out.
type AuthService struct {
	store     store.Store
	tokens    *auth.TokenService
	validator *validation.Validator
	purgers   []UserPurger
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	listeners []func(SessionEvent)
}

// NewAuthService creates an authentication service. Purgers run when an
// account is deleted.
func NewAuthService(s store.Store, tokens *auth.TokenService, logger *slog.Logger, purgers ...UserPurger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:     s,
		tokens:    tokens,
		validator: validation.New(),
		purgers:   purgers,
		logger:    logger,
		now:       time.Now,
	}
}

// OnSessionChange registers fn for sign-in and sign-out notifications. The
// returned func removes it.
func (s *AuthService) OnSessionChange(fn func(SessionEvent)) func() {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

func (s *AuthService) notify(ev SessionEvent) {
	s.mu.RLock()
	listeners := make([]func(SessionEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		if fn != nil {
			listeners = append(listeners, fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           userID,
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.startSession(ctx, user)
}

// Login verifies credentials and issues a new access token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*AuthResponse, error) {
	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	token, exp := s.tokens.Issue(user, sessionID)
	sess := &domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		CreatedAt: s.now().UTC(),
		ExpiresAt: exp.UTC(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("user signed in", "user_id", user.ID, "session_id", sessionID)
	s.notify(SessionEvent{Type: SignedIn, UserID: user.ID, SessionID: sessionID})

	return &AuthResponse{
		User:        user,
		AccessToken: token,
		SessionID:   sessionID,
		ExpiresAt:   exp,
	}, nil
}

// Logout revokes the session. Unknown sessions are not an error.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}

	s.logger.Info("user signed out", "user_id", userID, "session_id", sessionID)
	s.notify(SessionEvent{Type: SignedOut, UserID: userID, SessionID: sessionID})
	return nil
}

// VerifyAccessToken checks the token and its backing session and returns the
// current user.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, *auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domainerrors.Unauthorized("session has been revoked")
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != claims.UserID {
		return nil, nil, domainerrors.Unauthorized("session does not belong to token subject")
	}
	if sess.IsExpired(s.now()) {
		return nil, nil, domainerrors.TokenExpired("session expired")
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domainerrors.Unauthorized("user no longer exists")
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	return user, claims, nil
}

// DeleteAccount removes the user with everything they own. Categories are
// deleted by cascade and purgers drop derived data.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("user not found")
		}
		return fmt.Errorf("delete user: %w", err)
	}

	for _, p := range s.purgers {
		if n, err := p.DeleteUser(ctx, userID); err != nil {
			s.logger.Warn("failed to purge user data", "user_id", userID, "error", err)
		} else if n > 0 {
			s.logger.Debug("purged user data", "user_id", userID, "count", n)
		}
	}

	s.logger.Info("account deleted", "user_id", userID)
	s.notify(SessionEvent{Type: SignedOut, UserID: userID})
	return nil
}

// PruneSessions removes expired sessions.
func (s *AuthService) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned expired sessions", "count", n)
	}
	return n, nil
}
