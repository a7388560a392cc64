package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/store"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// reconnector reruns a session function with exponential backoff. The delay
// resets to min once a session reports it is connected.
type reconnector struct {
	min, max time.Duration
	logger   *slog.Logger
	wait     func(ctx context.Context, d time.Duration) bool
}

func newReconnector(logger *slog.Logger) *reconnector {
	return &reconnector{min: minBackoff, max: maxBackoff, logger: logger, wait: sleepCtx}
}

func (r *reconnector) run(ctx context.Context, session func(ctx context.Context, connected func()) error) {
	backoff := r.min
	for ctx.Err() == nil {
		err := session(ctx, func() { backoff = r.min })
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("change listener disconnected", "error", err, "retry_in", backoff)
		if !r.wait(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, r.max)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// listen holds one pooled connection in LISTEN mode until ctx ends.
func (s *Store) listen(ctx context.Context) {
	newReconnector(s.logger).run(ctx, s.listenOnce)
}

func (s *Store) listenOnce(ctx context.Context, connected func()) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	connected()
	s.logger.Info("listening for category changes", "channel", NotifyChannel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.emit(ctx, n.Payload)
	}
}

// notification is the key-only payload published by the categories trigger.
type notification struct {
	Type      domain.ChangeType `json:"type"`
	Table     string            `json:"table"`
	UserID    string            `json:"user_id"`
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"event_timestamp"`
}

func decodeNotification(payload string) (notification, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return n, fmt.Errorf("decode change payload: %w", err)
	}
	switch n.Type {
	case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
	default:
		return n, fmt.Errorf("unknown change type %q", n.Type)
	}
	if n.UserID == "" {
		return n, errors.New("change payload has no user")
	}
	if n.ID == "" {
		return n, errors.New("change payload has no row id")
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	return n, nil
}

type rowLoader func(ctx context.Context, userID, id string) (*domain.Category, error)

// resolve turns a notification into a change event. DELETE events carry an
// id-only old row; INSERT and UPDATE load the current row. ok is false when
// the row is already gone, in which case a later DELETE covers it.
func resolve(ctx context.Context, n notification, load rowLoader) (ev domain.ChangeEvent, ok bool, err error) {
	ev = domain.ChangeEvent{Type: n.Type, Table: n.Table, UserID: n.UserID, Timestamp: n.Timestamp}
	if n.Type == domain.ChangeDelete {
		ev.Old = &domain.Category{ID: n.ID, UserID: n.UserID}
		return ev, true, nil
	}

	row, err := load(ctx, n.UserID, n.ID)
	if errors.Is(err, store.ErrNotFound) {
		return ev, false, nil
	}
	if err != nil {
		return ev, false, fmt.Errorf("load changed row %s: %w", n.ID, err)
	}
	ev.New = row
	return ev, true, nil
}
