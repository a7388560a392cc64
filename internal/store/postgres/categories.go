package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/store"
)

const categoryColumns = `id, user_id, name, description, keywords, tags,
	is_active, video_count, created_at, updated_at`

// categorySelect must match the scan order in scanCategory.
const categorySelect = `id::text, user_id, name, description, keywords, tags,
	is_active, video_count, created_at, updated_at`

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Description,
		&c.Keywords,
		&c.Tags,
		&c.IsActive,
		&c.VideoCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return &c, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// ListCategories returns userID's categories in creation order.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]*domain.Category, error) {
	out := make([]*domain.Category, 0)
	err := s.asUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+categorySelect+` FROM categories ORDER BY created_at, id`)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCategory(rows)
			if err != nil {
				return fmt.Errorf("scan category: %w", err)
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetCategory returns one of userID's categories.
func (s *Store) GetCategory(ctx context.Context, userID, id string) (*domain.Category, error) {
	var c *domain.Category
	err := s.asUser(ctx, userID, func(tx pgx.Tx) error {
		var err error
		c, err = getCategory(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func getCategory(ctx context.Context, tx pgx.Tx, id string) (*domain.Category, error) {
	c, err := scanCategory(tx.QueryRow(ctx,
		`SELECT `+categorySelect+` FROM categories WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return c, nil
}

// CreateCategory inserts c. The change trigger publishes the INSERT.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	err := s.asUser(ctx, c.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO categories (`+categoryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID,
			c.UserID,
			c.Name,
			c.Description,
			nonNil(c.Keywords),
			nonNil(c.Tags),
			c.IsActive,
			c.VideoCount,
			c.CreatedAt,
			c.UpdatedAt,
		)
		return err
	})
	switch pgCode(err) {
	case codeUniqueViolation:
		return store.ErrAlreadyExists
	case codeForeignKeyViolation:
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// UpdateCategory overwrites the mutable fields of c.
func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	err := s.asUser(ctx, c.UserID, func(tx pgx.Tx) error {
		var createdAt time.Time
		err := tx.QueryRow(ctx, `
			UPDATE categories SET
				name = $1, description = $2, keywords = $3, tags = $4,
				is_active = $5, video_count = $6, updated_at = $7
			WHERE id = $8
			RETURNING created_at`,
			c.Name,
			c.Description,
			nonNil(c.Keywords),
			nonNil(c.Tags),
			c.IsActive,
			c.VideoCount,
			c.UpdatedAt,
			c.ID,
		).Scan(&createdAt)
		if err != nil {
			return err
		}
		c.CreatedAt = createdAt
		return nil
	})
	if pgCode(err) == codeUniqueViolation {
		return store.ErrAlreadyExists
	}
	if err = notFoundOr(err); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// DeleteCategory removes one of userID's categories.
func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	return s.asUser(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err = notFoundOr(err); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return err
			}
			return fmt.Errorf("delete category: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}
