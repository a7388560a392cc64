package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/store"
)

// categoryColumns must match the scan order in scanCategory.
const categoryColumns = `id, user_id, name, description, keywords, tags,
	is_active, video_count, created_at, updated_at`

func scanCategory(scanner interface{ Scan(dest ...any) error }) (*domain.Category, error) {
	var (
		c         domain.Category
		keywords  string
		tags      string
		isActive  int
		createdAt string
		updatedAt string
	)
	err := scanner.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Description,
		&keywords,
		&tags,
		&isActive,
		&c.VideoCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.Keywords, err = decodeStrings(keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if c.Tags, err = decodeStrings(tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	c.IsActive = isActive != 0
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &c, nil
}

// ListCategories returns userID's categories in creation order.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory returns one of userID's categories.
func (s *Store) GetCategory(ctx context.Context, userID, id string) (*domain.Category, error) {
	return getCategory(ctx, s.db, userID, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCategory(ctx context.Context, q queryRower, userID, id string) (*domain.Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return c, nil
}

// CreateCategory inserts c and emits an INSERT event.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	keywords, err := encodeStrings(c.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	tags, err := encodeStrings(c.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.UserID,
		c.Name,
		c.Description,
		keywords,
		tags,
		boolToInt(c.IsActive),
		c.VideoCount,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	switch {
	case isUniqueViolation(err):
		return store.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return store.ErrNotFound
	case err != nil:
		return fmt.Errorf("insert category: %w", err)
	}

	s.emit(domain.NewChangeEvent(domain.ChangeInsert, c.UserID, nil, c))
	return nil
}

// UpdateCategory overwrites the mutable fields of c and emits an UPDATE event.
func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	keywords, err := encodeStrings(c.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	tags, err := encodeStrings(c.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	old, err := getCategory(ctx, tx, c.UserID, c.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE categories SET
			name = ?, description = ?, keywords = ?, tags = ?,
			is_active = ?, video_count = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		c.Name,
		c.Description,
		keywords,
		tags,
		boolToInt(c.IsActive),
		c.VideoCount,
		formatTime(c.UpdatedAt),
		c.ID,
		c.UserID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	c.CreatedAt = old.CreatedAt
	s.emit(domain.NewChangeEvent(domain.ChangeUpdate, c.UserID, old, c))
	return nil
}

// DeleteCategory removes one of userID's categories and emits a DELETE event.
func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	old, err := getCategory(ctx, tx, userID, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.emit(domain.NewChangeEvent(domain.ChangeDelete, userID, old, nil))
	return nil
}
