// Package catalog holds a user's categories in memory. Store is the single
// source of truth for category state inside a session; Syncer keeps it
// consistent with the relational store through the change feed.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/curatorapp/curator-server/internal/domain"
	domainerrors "github.com/curatorapp/curator-server/internal/errors"
	"github.com/curatorapp/curator-server/internal/id"
	"github.com/curatorapp/curator-server/internal/store"
	"github.com/curatorapp/curator-server/internal/validation"
)

// Repository is the slice of the relational store a Store needs.
type Repository interface {
	ListCategories(ctx context.Context, userID string) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
}

// CategoryInput is the payload for Add.
type CategoryInput struct {
	Name        string   `json:"name" validate:"notblank,max=100"`
	Description string   `json:"description" validate:"max=1000"`
	Keywords    []string `json:"keywords" validate:"max=50,dive,max=100"`
	Tags        []string `json:"tags" validate:"max=50,dive,max=50"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// CategoryPatch is the payload for Update. Nil fields are left unchanged.
type CategoryPatch struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	Keywords    *[]string `json:"keywords,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
	VideoCount  *int      `json:"video_count,omitempty" validate:"omitempty,gte=0"`
}

// Snapshot is an immutable view of the store handed to observers.
type Snapshot struct {
	Categories []*domain.Category `json:"categories"`
	Selected   *domain.Category   `json:"selected,omitempty"`
	Loaded     bool               `json:"loaded"`
	Loading    bool               `json:"loading"`
	Error      string             `json:"error,omitempty"`
}

// Store is a per-user, observable category cache.
type Store struct {
	repo      Repository
	userID    string
	validator *validation.Validator
	logger    *slog.Logger

	mu         sync.RWMutex
	categories []*domain.Category
	selectedID string
	loaded     bool
	loading    bool
	lastErr    error

	// notifyMu serializes observer delivery so snapshots arrive in order.
	// Observers must not mutate the store synchronously.
	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
}

// NewStore creates an empty store for userID.
func NewStore(repo Repository, userID string, v *validation.Validator, logger *slog.Logger) *Store {
	if v == nil {
		v = validation.New()
	}
	return &Store{
		repo:      repo,
		userID:    userID,
		validator: v,
		logger:    logger.With(slog.String("user_id", userID)),
		observers: make(map[int]func(Snapshot)),
	}
}

// UserID returns the owner of this store.
func (s *Store) UserID() string {
	return s.userID
}

// Categories returns copies of the cached categories in order.
func (s *Store) Categories() []*domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.categories)
}

// Get returns a copy of the cached category with id.
func (s *Store) Get(id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.categories, id); i >= 0 {
		return s.categories[i].Clone(), nil
	}
	return nil, domainerrors.NotFoundf("category %s not found", id)
}

// SelectedCategory returns a copy of the selected category, or nil.
func (s *Store) SelectedCategory() *domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.categories, s.selectedID); i >= 0 {
		return s.categories[i].Clone()
	}
	return nil
}

// Select marks id as the selected category. An empty id clears the selection.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if id != "" && indexOf(s.categories, id) < 0 {
		s.mu.Unlock()
		return domainerrors.Validationf("category %s is not in this session", id)
	}
	changed := s.selectedID != id
	s.selectedID = id
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Categories: cloneAll(s.categories),
		Loaded:     s.loaded,
		Loading:    s.loading,
	}
	if i := indexOf(s.categories, s.selectedID); i >= 0 {
		snap.Selected = s.categories[i].Clone()
	}
	if s.lastErr != nil {
		snap.Error = domainerrors.MessageOf(s.lastErr, "category operation failed")
	}
	return snap
}

// Subscribe registers fn for every state change and returns its cancel func.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.obsMu.Lock()
	key := s.nextObs
	s.nextObs++
	s.observers[key] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, key)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	snap := s.Snapshot()

	s.obsMu.Lock()
	keys := make([]int, 0, len(s.observers))
	for k := range s.observers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Snapshot), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, s.observers[k])
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Fetch replaces the cache with the repository's view. On failure the cached
// categories are kept and the error is recorded.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	s.notify()

	list, err := s.repo.ListCategories(ctx, s.userID)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = domainerrors.Internal("failed to load categories").WithCause(err)
		err = s.lastErr
	} else {
		s.categories = cloneAll(list)
		s.loaded = true
		s.lastErr = nil
		if indexOf(s.categories, s.selectedID) < 0 {
			s.selectedID = ""
		}
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Error("category fetch failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Debug("categories fetched", slog.Int("count", len(list)))
	return nil
}

// Add validates in, creates the category remotely and appends it locally.
func (s *Store) Add(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &domain.Category{
		ID:          id.NewCategoryID(),
		UserID:      s.userID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Keywords:    domain.NormalizeTerms(in.Keywords),
		Tags:        domain.NormalizeTerms(in.Tags),
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, s.fail(mapRepoError(err, c.Name, "create"))
	}

	s.apply(domain.NewChangeEvent(domain.ChangeInsert, s.userID, nil, c))
	return c.Clone(), nil
}

// Update applies patch to the category with id.
func (s *Store) Update(ctx context.Context, id string, patch CategoryPatch) (*domain.Category, error) {
	if err := s.validator.Validate(patch); err != nil {
		return nil, err
	}

	current, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Keywords != nil {
		next.Keywords = domain.NormalizeTerms(*patch.Keywords)
	}
	if patch.Tags != nil {
		next.Tags = domain.NormalizeTerms(*patch.Tags)
	}
	if patch.IsActive != nil {
		next.IsActive = *patch.IsActive
	}
	if patch.VideoCount != nil {
		next.VideoCount = *patch.VideoCount
	}
	next.Touch()

	if err := s.repo.UpdateCategory(ctx, next); err != nil {
		return nil, s.fail(mapRepoError(err, next.Name, "update"))
	}

	s.apply(domain.NewChangeEvent(domain.ChangeUpdate, s.userID, current, next))
	return next.Clone(), nil
}

// Delete removes the category with id remotely and locally.
func (s *Store) Delete(ctx context.Context, id string) error {
	current, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, s.userID, id); err != nil {
		return s.fail(mapRepoError(err, current.Name, "delete"))
	}
	s.apply(domain.NewChangeEvent(domain.ChangeDelete, s.userID, current, nil))
	return nil
}

// Apply reduces a change feed event into the cache. Events for other users
// are ignored.
func (s *Store) Apply(event domain.ChangeEvent) {
	if event.UserID != "" && event.UserID != s.userID {
		s.logger.Warn("ignoring change event for another user", slog.String("event_user_id", event.UserID))
		return
	}
	s.apply(event)
}

func (s *Store) apply(event domain.ChangeEvent) {
	s.mu.Lock()
	before := s.categories
	s.categories = Reduce(s.categories, event)
	if indexOf(s.categories, s.selectedID) < 0 {
		s.selectedID = ""
	}
	changed := !sameSlice(before, s.categories)
	if changed {
		s.lastErr = nil
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Find returns categories whose names fuzzily match name, best match first.
func (s *Store) Find(name string, limit int) []*domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.categories))
	for i, c := range s.categories {
		names[i] = c.Name
	}
	ranks := fuzzy.RankFindFold(name, names)
	sort.Sort(ranks)

	out := make([]*domain.Category, 0, len(ranks))
	for _, r := range ranks {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.categories[r.OriginalIndex].Clone())
	}
	return out
}

// Reset clears all state and observers. Called when the session ends.
func (s *Store) Reset() {
	s.mu.Lock()
	s.categories = nil
	s.selectedID = ""
	s.loaded = false
	s.loading = false
	s.lastErr = nil
	s.mu.Unlock()

	s.obsMu.Lock()
	s.observers = make(map[int]func(Snapshot))
	s.obsMu.Unlock()
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.notify()
	s.logger.Warn("category operation failed", slog.String("error", err.Error()))
	return err
}

func mapRepoError(err error, name, op string) error {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.AlreadyExistsf("a category named %q already exists", name).WithCause(err)
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFoundf("category %q no longer exists", name).WithCause(err)
	default:
		return domainerrors.Internalf("failed to %s category", op).WithCause(err)
	}
}

func cloneAll(categories []*domain.Category) []*domain.Category {
	out := make([]*domain.Category, len(categories))
	for i, c := range categories {
		out[i] = c.Clone()
	}
	return out
}

// sameSlice reports whether Reduce returned its input unchanged.
func sameSlice(a, b []*domain.Category) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
