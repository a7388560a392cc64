package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	domainerrors "github.com/curatorapp/curator-server/internal/errors"
)

// Sentinel errors for YouTube Data API operations.
var (
	ErrQuotaExceeded = errors.New("youtube: quota exceeded")
	ErrInvalidKey    = errors.New("youtube: invalid api key")
	ErrRateLimited   = errors.New("youtube: rate limited by server")
	ErrBadRequest    = errors.New("youtube: bad request")
	ErrServer        = errors.New("youtube: server error")
	ErrUnavailable   = errors.New("youtube: unavailable")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op    string // "search" or "videos"
	Query string
	Err   error
}

func (e *Error) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("youtube %s [%q]: %v", e.Op, e.Query, e.Err)
	}
	return fmt.Sprintf("youtube %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// quotaReasons are googleapi error reasons that signal an exhausted quota.
var quotaReasons = map[string]bool{
	"quotaExceeded":      true,
	"dailyLimitExceeded": true,
}

var keyReasons = map[string]bool{
	"keyInvalid":          true,
	"keyExpired":          true,
	"forbidden":           true,
	"accessNotConfigured": true,
}

// classify maps a client library error onto a sentinel.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	for _, item := range gerr.Errors {
		switch {
		case quotaReasons[item.Reason]:
			return ErrQuotaExceeded
		case item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded":
			return ErrRateLimited
		case keyReasons[item.Reason]:
			return ErrInvalidKey
		}
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return ErrRateLimited
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return ErrInvalidKey
	case gerr.Code == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, gerr.Message)
	case gerr.Code >= 500:
		return ErrServer
	default:
		return fmt.Errorf("unexpected status %d: %s", gerr.Code, gerr.Message)
	}
}

// wrapError turns a failed call into a coded PROVIDER error. Context
// cancellation passes through untouched so callers can tell it apart.
func wrapError(ctx context.Context, op, query string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return context.Canceled
	}

	cause := &Error{Op: op, Query: query, Err: classify(err)}

	var msg string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "YouTube request timed out"
	case errors.Is(cause, ErrQuotaExceeded):
		msg = "YouTube API quota exceeded"
	case errors.Is(cause, ErrInvalidKey):
		msg = "YouTube API key is invalid or not authorized"
	case errors.Is(cause, ErrRateLimited):
		msg = "YouTube is rate limiting requests"
	case errors.Is(cause, ErrBadRequest):
		msg = "YouTube rejected the search request"
	default:
		msg = "YouTube is unavailable"
	}
	return domainerrors.Provider(msg).WithCause(cause)
}
