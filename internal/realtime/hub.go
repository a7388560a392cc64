// Package realtime fans committed category changes out to per-user
// subscriptions and streams session messages to browsers over SSE.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/id"
	"github.com/curatorapp/curator-server/internal/store"
)

var (
	// ErrSubscriberLagged ends a subscription whose buffer overflowed. The
	// consumer has missed events and must resync from the store.
	ErrSubscriberLagged = errors.New("realtime: subscriber lagged behind the change feed")

	// ErrHubClosed is returned by Subscribe after Shutdown and ends live
	// subscriptions at shutdown.
	ErrHubClosed = errors.New("realtime: hub closed")
)

var (
	_ store.ChangeFeed   = (*Hub)(nil)
	_ store.EventEmitter = (*Hub)(nil)
)

// Options tunes buffer sizes.
type Options struct {
	QueueSize        int // Pending events awaiting fan-out
	SubscriberBuffer int // Per-subscription buffer
}

// Hub is an in-process change feed. Stores emit into it; session syncers
// subscribe to it.
type Hub struct {
	logger *slog.Logger
	opts   Options

	mu   sync.RWMutex
	subs map[string]*Subscription

	events chan domain.ChangeEvent
	wg     sync.WaitGroup

	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewHub creates a hub. Call Start to begin fan-out.
func NewHub(logger *slog.Logger, opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 100
	}
	return &Hub{
		logger: logger,
		opts:   opts,
		subs:   make(map[string]*Subscription),
		events: make(chan domain.ChangeEvent, opts.QueueSize),
	}
}

// Start runs the fan-out loop until ctx is done or Shutdown drains the queue.
func (h *Hub) Start(ctx context.Context) {
	h.wg.Add(1)
	defer h.wg.Done()

	h.logger.Info("realtime hub starting")
	for {
		select {
		case event, ok := <-h.events:
			if !ok {
				return
			}
			h.broadcast(event)
		case <-ctx.Done():
			h.logger.Info("realtime hub stopping")
			h.closeAll(ErrHubClosed)
			return
		}
	}
}

// Shutdown stops accepting events, drains the queue and ends every subscription.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownMu.Lock()
	if h.shutdown {
		h.shutdownMu.Unlock()
		return nil
	}
	h.shutdown = true
	close(h.events)
	h.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		// Drain anything Start did not get to, e.g. when it was never started.
		for event := range h.events {
			h.broadcast(event)
		}
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("realtime drain timeout, some events may be lost")
		err = ctx.Err()
	}
	h.closeAll(ErrHubClosed)
	return err
}

// Emit queues a committed change for fan-out. It never blocks. If the queue
// is full the owner's subscriptions are ended with ErrSubscriberLagged.
func (h *Hub) Emit(event domain.ChangeEvent) {
	h.shutdownMu.RLock()
	defer h.shutdownMu.RUnlock()
	if h.shutdown {
		return
	}

	select {
	case h.events <- event:
	default:
		h.logger.Error("realtime queue full, dropping event",
			slog.String("user_id", event.UserID),
			slog.String("type", string(event.Type)))
		go h.endUser(event.UserID, ErrSubscriberLagged)
	}
}

// Subscribe opens a subscription to table changes owned by userID. The
// subscription ends when Close is called or ctx is done.
func (h *Hub) Subscribe(ctx context.Context, userID, table string) (store.Subscription, error) {
	if userID == "" {
		return nil, errors.New("realtime: subscribe requires a user id")
	}

	h.shutdownMu.RLock()
	closed := h.shutdown
	h.shutdownMu.RUnlock()
	if closed {
		return nil, ErrHubClosed
	}

	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}
	sub := &Subscription{
		ID:          subID,
		UserID:      userID,
		Table:       table,
		ConnectedAt: time.Now(),
		events:      make(chan domain.ChangeEvent, h.opts.SubscriberBuffer),
		hub:         h,
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	total := len(h.subs)
	h.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { h.end(sub.ID, nil) })
	sub.mu.Lock()
	if sub.finished {
		sub.mu.Unlock()
		stop()
	} else {
		sub.stop = stop
		sub.mu.Unlock()
	}

	h.logger.Debug("subscription opened",
		slog.String("subscription_id", sub.ID),
		slog.String("user_id", userID),
		slog.String("table", table),
		slog.Int("total_subscriptions", total))
	return sub, nil
}

// SubscriptionCount returns the number of live subscriptions.
func (h *Hub) SubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) broadcast(event domain.ChangeEvent) {
	var delivered, filtered int
	var lagged []string

	h.mu.RLock()
	for _, sub := range h.subs {
		if sub.UserID != event.UserID || (sub.Table != "" && sub.Table != event.Table) {
			filtered++
			continue
		}
		select {
		case sub.events <- event:
			delivered++
		default:
			lagged = append(lagged, sub.ID)
		}
	}
	h.mu.RUnlock()

	for _, subID := range lagged {
		h.logger.Warn("subscriber lagged, ending subscription", slog.String("subscription_id", subID))
		h.end(subID, ErrSubscriberLagged)
	}

	h.logger.Debug("change broadcast",
		slog.String("type", string(event.Type)),
		slog.String("row_id", event.RowID()),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("filtered", filtered),
			slog.Int("lagged", len(lagged))))
}

// end removes a subscription and closes its channel. A nil reason marks a
// caller-initiated close.
func (h *Hub) end(subID string, reason error) {
	h.mu.Lock()
	sub, ok := h.subs[subID]
	if ok {
		delete(h.subs, subID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	sub.finish(reason)
}

func (h *Hub) endUser(userID string, reason error) {
	h.mu.Lock()
	var ended []*Subscription
	for subID, sub := range h.subs {
		if sub.UserID == userID {
			delete(h.subs, subID)
			ended = append(ended, sub)
		}
	}
	h.mu.Unlock()
	for _, sub := range ended {
		sub.finish(reason)
	}
}

func (h *Hub) closeAll(reason error) {
	h.mu.Lock()
	ended := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		ended = append(ended, sub)
	}
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range ended {
		sub.finish(reason)
	}
}

// Subscription is a live hub subscription.
type Subscription struct {
	ID          string
	UserID      string
	Table       string
	ConnectedAt time.Time

	events chan domain.ChangeEvent
	hub    *Hub
	stop   func() bool

	mu       sync.Mutex
	err      error
	finished bool
}

// Events returns the event channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan domain.ChangeEvent {
	return s.events
}

// Err reports why the hub ended the subscription.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the subscription.
func (s *Subscription) Close() error {
	s.hub.end(s.ID, nil)
	return nil
}

func (s *Subscription) finish(reason error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.err = reason
	stop := s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	close(s.events)

	s.hub.logger.Debug("subscription closed",
		slog.String("subscription_id", s.ID),
		slog.Duration("duration", time.Since(s.ConnectedAt)))
}
