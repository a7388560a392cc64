package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRepo is an in-memory Repository that enforces (user_id, name) uniqueness.
type memRepo struct {
	mu      sync.Mutex
	rows    []*domain.Category
	failAll error
	lists   int
	emitter store.EventEmitter
}

func (r *memRepo) ListCategories(_ context.Context, userID string) ([]*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.failAll != nil {
		return nil, r.failAll
	}
	var out []*domain.Category
	for _, c := range r.rows {
		if c.UserID == userID {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) CreateCategory(_ context.Context, c *domain.Category) error {
	r.mu.Lock()
	if r.failAll != nil {
		r.mu.Unlock()
		return r.failAll
	}
	for _, row := range r.rows {
		if row.UserID == c.UserID && row.Name == c.Name {
			r.mu.Unlock()
			return store.ErrAlreadyExists
		}
	}
	r.rows = append(r.rows, c.Clone())
	r.mu.Unlock()
	r.emit(domain.NewChangeEvent(domain.ChangeInsert, c.UserID, nil, c))
	return nil
}

func (r *memRepo) UpdateCategory(_ context.Context, c *domain.Category) error {
	r.mu.Lock()
	if r.failAll != nil {
		r.mu.Unlock()
		return r.failAll
	}
	for i, row := range r.rows {
		if row.ID == c.ID && row.UserID == c.UserID {
			old := row
			r.rows[i] = c.Clone()
			r.mu.Unlock()
			r.emit(domain.NewChangeEvent(domain.ChangeUpdate, c.UserID, old, c))
			return nil
		}
	}
	r.mu.Unlock()
	return store.ErrNotFound
}

func (r *memRepo) DeleteCategory(_ context.Context, userID, id string) error {
	r.mu.Lock()
	if r.failAll != nil {
		r.mu.Unlock()
		return r.failAll
	}
	for i, row := range r.rows {
		if row.ID == id && row.UserID == userID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			r.mu.Unlock()
			r.emit(domain.NewChangeEvent(domain.ChangeDelete, userID, row, nil))
			return nil
		}
	}
	r.mu.Unlock()
	return store.ErrNotFound
}

func (r *memRepo) listCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

func (r *memRepo) setFailure(err error) {
	r.mu.Lock()
	r.failAll = err
	r.mu.Unlock()
}

func (r *memRepo) emit(e domain.ChangeEvent) {
	if r.emitter != nil {
		r.emitter.Emit(e)
	}
}

// fakeSub is a Subscription the test drives by hand.
type fakeSub struct {
	userID string
	events chan domain.ChangeEvent

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *fakeSub) Events() <-chan domain.ChangeEvent { return s.events }

func (s *fakeSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSub) Close() error {
	s.end(nil)
	return nil
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// end finishes the subscription with reason, as a feed would.
func (s *fakeSub) end(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = reason
	close(s.events)
}

// fakeFeed records every subscription it hands out.
type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	fail error
}

func (f *fakeFeed) Subscribe(_ context.Context, userID, _ string) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	sub := &fakeSub{userID: userID, events: make(chan domain.ChangeEvent, 16)}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeFeed) all() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSub(nil), f.subs...)
}

func (f *fakeFeed) last() *fakeSub {
	subs := f.all()
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

var errBackendDown = errors.New("backend unavailable")
