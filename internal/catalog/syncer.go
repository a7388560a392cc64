package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/store"
)

// Target is what a Syncer reduces events into.
type Target interface {
	Apply(event domain.ChangeEvent)
	Fetch(ctx context.Context) error
}

// SyncerOptions tunes a Syncer.
type SyncerOptions struct {
	// OnError receives SYNC errors when the feed drops the subscription.
	OnError func(error)
	// OnStatus receives the connection flag whenever it changes.
	OnStatus func(connected bool)
	// RecoveryTimeout bounds the ForceSync run after a feed failure.
	RecoveryTimeout time.Duration
}

// Syncer is the realtime sync adapter: it holds at most one change feed
// subscription for the current user and reduces its events into a Target.
type Syncer struct {
	feed   store.ChangeFeed
	target Target
	logger *slog.Logger
	opts   SyncerOptions

	mu        sync.Mutex
	userID    string
	sub       store.Subscription
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewSyncer creates a disconnected syncer for userID.
func NewSyncer(feed store.ChangeFeed, target Target, userID string, logger *slog.Logger, opts SyncerOptions) *Syncer {
	if opts.RecoveryTimeout <= 0 {
		opts.RecoveryTimeout = 30 * time.Second
	}
	return &Syncer{
		feed:   feed,
		target: target,
		userID: userID,
		logger: logger,
		opts:   opts,
	}
}

// Connected reports whether a subscription is live.
func (s *Syncer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// UserID returns the identity the syncer is scoped to.
func (s *Syncer) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Subscribe opens the categories subscription. It is a no-op when already
// connected or when there is no user. The subscription outlives ctx's
// cancellation and ends only through Unsubscribe or a feed failure.
func (s *Syncer) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.connected || s.userID == "" {
		s.mu.Unlock()
		return nil
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := s.feed.Subscribe(subCtx, s.userID, domain.TableCategories)
	if err != nil {
		s.mu.Unlock()
		cancel()
		return domainerrors.Sync("failed to open realtime subscription").WithCause(err)
	}

	done := make(chan struct{})
	s.sub = sub
	s.cancel = cancel
	s.done = done
	s.connected = true
	userID := s.userID
	go s.run(sub, done)
	s.mu.Unlock()

	s.logger.Info("realtime subscription opened", slog.String("user_id", userID))
	s.status(true)
	return nil
}

// Unsubscribe tears the subscription down and waits for its reader to exit.
// It is safe to call when not connected.
func (s *Syncer) Unsubscribe() {
	s.mu.Lock()
	sub, cancel, done := s.sub, s.cancel, s.done
	wasConnected := s.connected
	s.sub, s.cancel, s.done = nil, nil, nil
	s.connected = false
	s.mu.Unlock()

	if sub == nil {
		return
	}
	_ = sub.Close()
	cancel()
	<-done

	s.logger.Info("realtime subscription closed", slog.String("user_id", s.UserID()))
	if wasConnected {
		s.status(false)
	}
}

// SetUser rescopes the syncer. When the identity changes the current
// subscription is released and, for a non-empty user, a new one is opened.
func (s *Syncer) SetUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	same := s.userID == userID
	s.mu.Unlock()
	if same {
		return nil
	}

	s.Unsubscribe()

	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()

	if userID == "" {
		return nil
	}
	return s.Subscribe(ctx)
}

// ForceSync bypasses the feed and reloads every category from the store.
func (s *Syncer) ForceSync(ctx context.Context) error {
	return s.target.Fetch(ctx)
}

func (s *Syncer) run(sub store.Subscription, done chan struct{}) {
	defer close(done)

	for event := range sub.Events() {
		s.target.Apply(event)
	}

	reason := sub.Err()
	if reason == nil {
		return
	}

	s.mu.Lock()
	owned := s.sub == sub
	if owned {
		s.sub = nil
		s.cancel()
		s.cancel = nil
		s.done = nil
		s.connected = false
	}
	userID := s.userID
	s.mu.Unlock()
	if !owned {
		return
	}

	syncErr := domainerrors.Sync("realtime connection lost").WithCause(reason)
	s.logger.Warn("realtime subscription failed, resyncing",
		slog.String("user_id", userID),
		slog.String("error", reason.Error()))
	s.status(false)
	if s.opts.OnError != nil {
		s.opts.OnError(syncErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RecoveryTimeout)
	defer cancel()
	if err := s.ForceSync(ctx); err != nil {
		s.logger.Error("recovery resync failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}

func (s *Syncer) status(connected bool) {
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(connected)
	}
}
