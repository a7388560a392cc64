package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/store"
)

// newTestStore creates a Store backed by a temporary SQLite database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("Open(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (r *recorder) Emit(e domain.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChangeEvent(nil), r.events...)
}

func mustCreateUser(t *testing.T, s *Store, id, email string) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{
		ID:           id,
		Email:        email,
		DisplayName:  "Test",
		PasswordHash: "$argon2id$fake",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := newTestStore(t)

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustCreateUser(t, s, "usr-1", "a@example.com")
	s.Close()

	s2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetUser(context.Background(), "usr-1"); err != nil {
		t.Fatalf("GetUser after reopen: %v", err)
	}
}

func TestUsers_EmailCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "Alice@Example.com")

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "usr-1" || got.Email != "Alice@Example.com" {
		t.Errorf("got %+v", got)
	}

	dup := &domain.User{ID: "usr-2", Email: "ALICE@example.com", PasswordHash: "x", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.CreateUser(ctx, dup); err != store.ErrAlreadyExists {
		t.Errorf("duplicate email err = %v, want ErrAlreadyExists", err)
	}

	if _, err := s.GetUser(ctx, "usr-missing"); err != store.ErrNotFound {
		t.Errorf("missing user err = %v, want ErrNotFound", err)
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "a@example.com")

	now := time.Now()
	live := &domain.Session{ID: "sess-live", UserID: "usr-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	dead := &domain.Session{ID: "sess-dead", UserID: "usr-1", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}
	for _, sess := range []*domain.Session{live, dead} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession(%s): %v", sess.ID, err)
		}
	}

	n, err := s.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d sessions, want 1", n)
	}

	got, err := s.GetSession(ctx, "sess-live")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UserID != "usr-1" || !got.ExpiresAt.Equal(live.ExpiresAt.UTC().Truncate(time.Nanosecond)) {
		t.Errorf("got %+v", got)
	}

	if err := s.DeleteUserSessions(ctx, "usr-1"); err != nil {
		t.Fatalf("DeleteUserSessions: %v", err)
	}
	if _, err := s.GetSession(ctx, "sess-live"); err != store.ErrNotFound {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestSessions_UnknownUser(t *testing.T) {
	s := newTestStore(t)
	sess := &domain.Session{ID: "sess-x", UserID: "usr-ghost", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}

	if err := s.CreateSession(context.Background(), sess); err != store.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
