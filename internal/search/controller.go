// Package search drives video searches for one user: it owns the search
// state machine, pagination and result shaping on top of a Provider.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/query"
)

// Status is the controller's position in the search lifecycle.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Fallback message for failures that carry no provider message.
const msgSearchFailed = "Failed to search videos"

// Provider executes a single search against the video platform.
type Provider interface {
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)
}

// CategorySource resolves the currently selected category, or nil.
type CategorySource interface {
	SelectedCategory() *domain.Category
}

// Annotator attaches cached analysis to videos in place.
type Annotator interface {
	Annotate(ctx context.Context, userID, categoryID string, videos []domain.VideoUI) error
}

// Level is the severity of a Notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-facing message about a search outcome.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier receives search notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// SearchState is the stored description of the active search.
type SearchState struct {
	Query          string               `json:"query"`
	EffectiveQuery string               `json:"effective_query"`
	CategoryID     string               `json:"category_id,omitempty"`
	Options        domain.SearchOptions `json:"options"`
	Page           int                  `json:"page"`
}

// State is a snapshot of the controller.
type State struct {
	Status        Status           `json:"status"`
	Videos        []domain.VideoUI `json:"videos"`
	Search        *SearchState     `json:"search,omitempty"`
	Error         string           `json:"error,omitempty"`
	NextPageToken string           `json:"next_page_token,omitempty"`
	PrevPageToken string           `json:"prev_page_token,omitempty"`
	TotalResults  int64            `json:"total_results"`
}

func (s State) clone() State {
	out := s
	out.Videos = append([]domain.VideoUI(nil), s.Videos...)
	if s.Search != nil {
		st := *s.Search
		out.Search = &st
	}
	return out
}

// Options configures a Controller.
type Options struct {
	// UserID scopes analysis annotation.
	UserID string
	// Defaults are merged under per-call options. Zero fields fall back to
	// domain.DefaultSearchOptions.
	Defaults  domain.SearchOptions
	Annotator Annotator
	Notifier  Notifier
}

// Controller is the per-user video search state machine.
//
// Every dispatch takes a new generation number; a response is applied only
// while its generation is still current, so an older, slower response never
// overwrites a newer one. Provider calls run without holding the lock.
type Controller struct {
	provider   Provider
	categories CategorySource
	annotator  Annotator
	notifier   Notifier
	defaults   domain.SearchOptions
	userID     string
	logger     *slog.Logger

	mu    sync.Mutex
	state State
	gen   uint64

	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	observers map[int]func(State)
	nextObs   int
}

// New creates an idle controller. categories may be nil.
func New(provider Provider, categories CategorySource, logger *slog.Logger, opts Options) *Controller {
	return &Controller{
		provider:   provider,
		categories: categories,
		annotator:  opts.Annotator,
		notifier:   opts.Notifier,
		defaults:   domain.DefaultSearchOptions().Merge(&opts.Defaults),
		userID:     opts.UserID,
		logger:     logger.With(slog.String("component", "search")),
		state:      State{Status: StatusIdle},
		observers:  make(map[int]func(State)),
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// HasQuery reports whether a search is stored.
func (c *Controller) HasQuery() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Search != nil && c.state.Search.Query != ""
}

// Subscribe registers fn to receive every state change. The returned func
// removes it.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// SearchVideos starts a new search for q. An empty query clears the results
// without calling the provider. Opts are merged over the defaults; when the
// selected category has keywords they are appended to the dispatched query.
//
// Provider failures are recorded in the state and notified, not returned.
func (c *Controller) SearchVideos(ctx context.Context, q string, opts *domain.SearchOptions) State {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		c.ClearResults()
		return c.State()
	}

	merged := c.defaults.Merge(opts)
	pageToken := merged.PageToken
	merged.PageToken = ""

	st := SearchState{Query: trimmed, EffectiveQuery: trimmed, Options: merged, Page: 1}
	if c.categories != nil {
		if cat := c.categories.SelectedCategory(); cat != nil {
			st.CategoryID = cat.ID
			if len(cat.Keywords) > 0 {
				st.EffectiveQuery = query.AppendKeywords(trimmed, cat.Keywords)
			}
		}
	}
	return c.dispatch(ctx, st, pageToken)
}

// LoadNextPage fetches the page after the current one. It is a no-op without
// a next page token or a stored search.
func (c *Controller) LoadNextPage(ctx context.Context) State {
	return c.page(ctx, func(s State) string { return s.NextPageToken }, 1)
}

// LoadPrevPage fetches the page before the current one. It is a no-op
// without a previous page token or a stored search.
func (c *Controller) LoadPrevPage(ctx context.Context) State {
	return c.page(ctx, func(s State) string { return s.PrevPageToken }, -1)
}

func (c *Controller) page(ctx context.Context, token func(State) string, delta int) State {
	c.mu.Lock()
	tok := token(c.state)
	if tok == "" || c.state.Search == nil || c.state.Search.Query == "" {
		c.mu.Unlock()
		return c.State()
	}
	st := *c.state.Search
	c.mu.Unlock()

	st.Page = max(1, st.Page+delta)
	return c.dispatch(ctx, st, tok)
}

// RefetchCurrentSearch re-runs the stored search from the first page. The
// keyword append is recomputed against the current category selection.
func (c *Controller) RefetchCurrentSearch(ctx context.Context) State {
	c.mu.Lock()
	if c.state.Search == nil || c.state.Search.Query == "" {
		c.mu.Unlock()
		return c.State()
	}
	st := *c.state.Search
	c.mu.Unlock()

	return c.SearchVideos(ctx, st.Query, &st.Options)
}

// ClearResults resets to idle and discards any in-flight response.
func (c *Controller) ClearResults() {
	c.mu.Lock()
	c.gen++
	c.state = State{Status: StatusIdle}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) dispatch(ctx context.Context, st SearchState, pageToken string) State {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	prev := c.state.clone()
	c.state.Status = StatusSearching
	c.state.Error = ""
	c.mu.Unlock()
	c.notify()

	opts := st.Options
	opts.PageToken = pageToken

	log := c.logger.With(
		slog.Uint64("generation", gen),
		slog.String("query", st.EffectiveQuery),
		slog.Int("page", st.Page),
	)

	resp, err := c.provider.Search(ctx, st.EffectiveQuery, opts)

	var videos []domain.VideoUI
	if err == nil {
		videos = ToVideoUI(resp.Items)
		if c.annotator != nil && st.CategoryID != "" && len(videos) > 0 {
			if aerr := c.annotator.Annotate(ctx, c.userID, st.CategoryID, videos); aerr != nil {
				log.Warn("failed to annotate results", slog.String("error", aerr.Error()))
			}
		}
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		log.Debug("dropping stale search response")
		return c.State()
	}

	if errors.Is(err, context.Canceled) {
		c.state = prev
		if prev.Status == StatusSearching {
			c.state.Status = StatusIdle
			if len(prev.Videos) > 0 {
				c.state.Status = StatusSuccess
			}
		}
		c.mu.Unlock()
		log.Debug("search cancelled")
		c.notify()
		return c.State()
	}

	var note Notification
	if err != nil {
		msg := msgSearchFailed
		if domainerrors.CodeOf(err) == domainerrors.CodeProvider {
			msg = domainerrors.MessageOf(err, msgSearchFailed)
		}
		c.state = State{Status: StatusError, Search: &st, Error: msg}
		note = Notification{Level: LevelError, Title: "Search failed", Message: msg}
		log.Warn("search failed", slog.String("error", err.Error()))
	} else {
		c.state = State{
			Status:        StatusSuccess,
			Videos:        videos,
			Search:        &st,
			NextPageToken: resp.NextPageToken,
			PrevPageToken: resp.PrevPageToken,
			TotalResults:  resp.TotalResults,
		}
		note = Notification{
			Level:   LevelSuccess,
			Title:   "Search complete",
			Message: fmt.Sprintf("Found %d videos", resp.TotalResults),
		}
		log.Debug("search complete", slog.Int("items", len(videos)), slog.Int64("total", resp.TotalResults))
	}
	out := c.state.clone()
	c.mu.Unlock()

	c.notify()
	if c.notifier != nil {
		c.notifier.Notify(note)
	}
	return out
}

// notify delivers the current snapshot to every observer, in order.
func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	snap := c.State()

	c.obsMu.Lock()
	fns := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
