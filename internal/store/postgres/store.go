// Package postgres is the hosted relational backend. Categories are guarded
// by row-level security keyed on app.user_id, and every committed category
// mutation is published by trigger on the category_changes channel.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curatorapp/curator-server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// NotifyChannel carries one key-only JSON notification per committed category row.
const NotifyChannel = "category_changes"

var _ store.Store = (*Store)(nil)

// Store provides Postgres-backed persistence.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu      sync.RWMutex
	emitter store.EventEmitter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open connects to url and applies the schema.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		pool:    pool,
		logger:  logger.With(slog.String("component", "postgres")),
		emitter: store.NewNoopEmitter(),
	}, nil
}

// SetEmitter installs the receiver of change notifications.
func (s *Store) SetEmitter(e store.EventEmitter) {
	if e == nil {
		e = store.NewNoopEmitter()
	}
	s.mu.Lock()
	s.emitter = e
	s.mu.Unlock()
}

func (s *Store) emit(ctx context.Context, payload string) {
	n, err := decodeNotification(payload)
	if err != nil {
		s.logger.Warn("dropping malformed change notification", "error", err)
		return
	}
	ev, ok, err := resolve(ctx, n, s.GetCategory)
	if err != nil {
		s.logger.Warn("dropping change notification", "id", n.ID, "error", err)
		return
	}
	if !ok {
		s.logger.Debug("changed row no longer exists", "id", n.ID, "type", n.Type)
		return
	}
	s.mu.RLock()
	e := s.emitter
	s.mu.RUnlock()
	e.Emit(ev)
}

// Start begins forwarding category_changes notifications to the emitter
// until Close.
func (s *Store) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.listen(ctx)
	}()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close stops the listener and closes the pool.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.pool.Close()
	return nil
}

// asUser runs fn in a transaction whose row-level security scope is userID.
func (s *Store) asUser(ctx context.Context, userID string, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('app.user_id', $1, true)`, userID); err != nil {
			return fmt.Errorf("set row scope: %w", err)
		}
		return fn(tx)
	})
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeInvalidText {
		return store.ErrNotFound
	}
	return err
}
