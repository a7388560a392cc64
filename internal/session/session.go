// Package session holds the live, per-user application state: the category
// cache and its realtime sync, the search controller, and the debounced
// reactions that tie them together.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/curatorapp/curator-server/internal/catalog"
	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/reactive"
	"github.com/curatorapp/curator-server/internal/realtime"
	"github.com/curatorapp/curator-server/internal/search"
	"github.com/curatorapp/curator-server/internal/store"
	"github.com/curatorapp/curator-server/internal/validation"
)

// Default debounce windows.
const (
	DefaultCategoryDebounce = 500 * time.Millisecond
	DefaultQueryDebounce    = 800 * time.Millisecond
	DefaultListenerBuffer   = 64
)

// Dependencies are the shared collaborators every session is built from.
type Dependencies struct {
	Categories catalog.Repository
	Feed       store.ChangeFeed
	Provider   search.Provider
	Annotator  search.Annotator
	Validator  *validation.Validator
	Logger     *slog.Logger
}

// Options tunes session behavior.
type Options struct {
	CategoryDebounce time.Duration
	QueryDebounce    time.Duration
	ListenerBuffer   int
	SearchDefaults   domain.SearchOptions
}

func (o Options) withDefaults() Options {
	if o.CategoryDebounce <= 0 {
		o.CategoryDebounce = DefaultCategoryDebounce
	}
	if o.QueryDebounce <= 0 {
		o.QueryDebounce = DefaultQueryDebounce
	}
	if o.ListenerBuffer <= 0 {
		o.ListenerBuffer = DefaultListenerBuffer
	}
	return o
}

// Session is one user's application state.
type Session struct {
	userID string
	logger *slog.Logger
	opts   Options

	Categories *catalog.Store
	Syncer     *catalog.Syncer
	Search     *search.Controller

	selected    *reactive.Node[string]
	query       *reactive.Node[string]
	querySearch *reactive.Effect[string]
	unsubs      []func()

	startOnce sync.Once
	startErr  error

	mu        sync.Mutex
	listeners map[int]chan realtime.Message
	nextID    int
	closed    bool
}

func newSession(userID string, deps Dependencies, opts Options) *Session {
	opts = opts.withDefaults()
	logger := deps.Logger.With(slog.String("user_id", userID))

	s := &Session{
		userID:    userID,
		logger:    logger,
		opts:      opts,
		selected:  reactive.NewNode(""),
		query:     reactive.NewNode(""),
		listeners: make(map[int]chan realtime.Message),
	}

	s.Categories = catalog.NewStore(deps.Categories, userID, deps.Validator, logger)
	s.Search = search.New(deps.Provider, s.Categories, logger, search.Options{
		UserID:    userID,
		Defaults:  opts.SearchDefaults,
		Annotator: deps.Annotator,
		Notifier:  search.NotifierFunc(s.notifyUser),
	})
	s.Syncer = catalog.NewSyncer(deps.Feed, s.Categories, userID, logger, catalog.SyncerOptions{
		OnError:  s.onSyncError,
		OnStatus: s.onSyncStatus,
	})

	// A change of selected category re-runs the stored search; a change of
	// query starts a new one.
	s.selected.Effect(opts.CategoryDebounce, func(ctx context.Context, _ string) {
		if s.Search.HasQuery() {
			s.Search.RefetchCurrentSearch(ctx)
		}
	})
	s.querySearch = s.query.Effect(opts.QueryDebounce, func(ctx context.Context, q string) {
		s.Search.SearchVideos(ctx, q, nil)
	})

	s.unsubs = append(s.unsubs,
		s.Categories.Subscribe(func(snap catalog.Snapshot) {
			id := ""
			if snap.Selected != nil {
				id = snap.Selected.ID
			}
			s.selected.Set(id)
			s.publish(realtime.MessageCategories, snap)
		}),
		s.Search.Subscribe(func(st search.State) {
			s.publish(realtime.MessageSearch, st)
		}),
	)
	return s
}

// start subscribes to the change feed before the initial fetch so no
// mutation committed in between is missed. It runs once.
func (s *Session) start(ctx context.Context) error {
	s.startOnce.Do(func() {
		if err := s.Syncer.Subscribe(ctx); err != nil {
			s.logger.Warn("realtime subscription failed, continuing without live updates", "error", err)
			s.onSyncError(domainerrors.Sync("realtime subscription failed").WithCause(err))
		}
		s.startErr = s.Syncer.ForceSync(ctx)
	})
	return s.startErr
}

// UserID returns the session owner.
func (s *Session) UserID() string {
	return s.userID
}

// SetQuery records the user's in-progress query. The search runs once the
// query has been stable for the query debounce window.
func (s *Session) SetQuery(q string) {
	s.query.Set(q)
}

// SearchVideos searches for q right away and records it as the current
// query, so a later SetQuery compares against it. A debounced search still
// waiting on an earlier SetQuery is dropped.
func (s *Session) SearchVideos(ctx context.Context, q string, opts *domain.SearchOptions) search.State {
	s.query.Set(q)
	s.querySearch.Stop()
	return s.Search.SearchVideos(ctx, q, opts)
}

// Query returns the current query input.
func (s *Session) Query() string {
	return s.query.Get()
}

// SelectCategory changes the selected category; "" clears it. A stored
// search is re-run once the selection has been stable for the category
// debounce window.
func (s *Session) SelectCategory(id string) error {
	return s.Categories.Select(id)
}

// Listen returns a stream of this session's messages, primed with the
// current category and search snapshots. The cancel func releases it.
func (s *Session) Listen() (<-chan realtime.Message, func()) {
	ch := make(chan realtime.Message, s.opts.ListenerBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	now := time.Now()
	ch <- realtime.Message{Type: realtime.MessageCategories, Data: s.Categories.Snapshot(), At: now}
	ch <- realtime.Message{Type: realtime.MessageSearch, Data: s.Search.State(), At: now}
	s.listeners[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.listeners[id]; ok {
				delete(s.listeners, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
}

// publish hands msg to every listener without blocking. A listener whose
// buffer is full misses the message.
func (s *Session) publish(typ string, data any) {
	msg := realtime.Message{Type: typ, Data: data, At: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.listeners {
		select {
		case ch <- msg:
		default:
			s.logger.Debug("listener buffer full, dropping message", "listener", id, "type", typ)
		}
	}
}

func (s *Session) notifyUser(n search.Notification) {
	s.publish(realtime.MessageNotification, n)
}

func (s *Session) onSyncError(err error) {
	s.logger.Warn("category sync error", "error", err)
	s.notifyUser(search.Notification{
		Level:   search.LevelError,
		Title:   "Sync error",
		Message: domainerrors.MessageOf(err, "Realtime sync failed"),
	})
}

func (s *Session) onSyncStatus(connected bool) {
	s.publish(realtime.MessageSyncStatus, map[string]bool{"connected": connected})
}

// Close tears the session down: pending effects are cancelled, the feed
// subscription is released and every listener stream is closed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.selected.Close()
	s.query.Close()
	s.Syncer.Unsubscribe()
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.Search.ClearResults()
	s.Categories.Reset()

	s.mu.Lock()
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		close(ch)
	}
	s.mu.Unlock()

	s.logger.Debug("session closed")
}
