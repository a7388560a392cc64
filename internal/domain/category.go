// Package domain holds the entities shared by the store, session and API layers.
package domain

import (
	"slices"
	"strings"
	"time"
)

// Category is a user-defined named filter whose keywords and tags bias video search.
// The pair (UserID, Name) is unique.
type Category struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords"` // Ordered; the first entries get priority
	Tags        []string  `json:"tags"`
	IsActive    bool      `json:"is_active"`
	VideoCount  int       `json:"video_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (c *Category) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so callers never share keyword or tag slices.
func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Keywords = slices.Clone(c.Keywords)
	cp.Tags = slices.Clone(c.Tags)
	return &cp
}

// NormalizeTerms trims entries and drops empty ones, preserving order.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
