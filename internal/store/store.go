// Package store defines the persistence contract for users, sessions and
// categories, and the change-event hook backends call after each committed
// category mutation.
package store

import (
	"context"

	"github.com/curatorapp/curator-server/internal/domain"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// DeleteUser removes the account and, by cascade, everything it owns.
	DeleteUser(ctx context.Context, id string) error
}

// SessionStore persists auth sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// CategoryStore persists categories. Every call is scoped by userID; a row
// owned by another user behaves exactly like a missing row.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]*domain.Category, error)
	GetCategory(ctx context.Context, userID, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
}

// Store is the full persistence contract.
type Store interface {
	UserStore
	SessionStore
	CategoryStore
	Ping(ctx context.Context) error
	Close() error
}

// EventEmitter receives committed category mutations.
type EventEmitter interface {
	Emit(event domain.ChangeEvent)
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(domain.ChangeEvent)

// Emit calls f(event).
func (f EmitterFunc) Emit(event domain.ChangeEvent) { f(event) }

// NoopEmitter discards events.
type NoopEmitter struct{}

// NewNoopEmitter creates a new no-op emitter.
func NewNoopEmitter() *NoopEmitter {
	return &NoopEmitter{}
}

// Emit does nothing.
func (NoopEmitter) Emit(domain.ChangeEvent) {}

// MultiEmitter fans each event out to every emitter in order.
type MultiEmitter []EventEmitter

// Emit forwards event to each emitter.
func (m MultiEmitter) Emit(event domain.ChangeEvent) {
	for _, e := range m {
		e.Emit(event)
	}
}

// ChangeFeed opens push subscriptions to committed row changes.
type ChangeFeed interface {
	// Subscribe streams changes to table rows owned by userID until the
	// subscription is closed or ctx is done.
	Subscribe(ctx context.Context, userID, table string) (Subscription, error)
}

// Subscription is a long-lived, cancellable change stream.
type Subscription interface {
	// Events is closed when the subscription ends for any reason.
	Events() <-chan domain.ChangeEvent
	// Err reports why the feed ended the subscription. It is nil while the
	// subscription is live and after a caller-initiated Close.
	Err() error
	// Close releases the subscription. It is idempotent.
	Close() error
}
