package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/curatorapp/curator-server/internal/realtime"
)

var _ realtime.MessageSource = (*Manager)(nil)

// Manager owns the live session of every active user.
type Manager struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates an empty manager.
func NewManager(deps Dependencies, opts Options) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:     deps,
		opts:     opts,
		logger:   deps.Logger.With(slog.String("component", "session")),
		sessions: make(map[string]*Session),
	}
}

// Get returns userID's session, building and starting it on first use.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("session: user id is required")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("session: manager is shut down")
	}
	s, ok := m.sessions[userID]
	if !ok {
		s = newSession(userID, m.deps, m.opts)
		m.sessions[userID] = s
		m.logger.Info("session opened", "user_id", userID)
	}
	m.mu.Unlock()

	if err := s.start(ctx); err != nil {
		m.remove(userID, s)
		return nil, err
	}
	return s, nil
}

// Lookup returns userID's session if one is live.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// End closes userID's session, if any.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Info("session ended", "user_id", userID)
	}
}

func (m *Manager) remove(userID string, s *Session) {
	m.mu.Lock()
	if m.sessions[userID] == s {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	s.Close()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Listen implements realtime.MessageSource.
func (m *Manager) Listen(ctx context.Context, userID string) (<-chan realtime.Message, func(), error) {
	s, err := m.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.Listen()
	return ch, cancel, nil
}

// Shutdown ends every session.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.logger.Info("sessions shut down", "count", len(sessions))
	return nil
}
