package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/curatorapp/curator-server/internal/auth"
	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/service"
	"github.com/curatorapp/curator-server/internal/session"
)

type ctxKey string

const principalKey ctxKey = "principal"

// principal is what authMiddleware learned about the caller.
type principal struct {
	user   *domain.User
	claims *auth.Claims
	err    error
}

// GetUserID returns the authenticated user ID from context, or a 401 error
// carrying the reason verification failed.
func GetUserID(ctx context.Context) (string, error) {
	user, _, err := currentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func currentUser(ctx context.Context) (*domain.User, *auth.Claims, error) {
	p, ok := ctx.Value(principalKey).(*principal)
	if !ok || p == nil {
		return nil, nil, huma.Error401Unauthorized("Authentication required")
	}
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.user, p.claims, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// authMiddleware verifies Bearer tokens and records the outcome in context.
// Requests without a token pass through; handlers call GetUserID to require
// authentication.
func authMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, claims, err := authService.VerifyAccessToken(r.Context(), token)
			p := &principal{user: user, claims: claims, err: err}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
		})
	}
}

// streamAuthenticator accepts the Bearer header or, for EventSource clients
// that cannot set headers, an access_token query parameter.
func (s *Server) streamAuthenticator(r *http.Request) (string, error) {
	if userID, err := GetUserID(r.Context()); err == nil {
		return userID, nil
	}
	token := r.URL.Query().Get("access_token")
	if token == "" {
		return "", huma.Error401Unauthorized("Authentication required")
	}
	user, _, err := s.services.Auth.VerifyAccessToken(r.Context(), token)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// userSession resolves the caller and their application session.
func (s *Server) userSession(ctx context.Context) (*session.Session, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.services.Sessions.Get(ctx, userID)
}
