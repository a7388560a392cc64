package catalog

import "github.com/curatorapp/curator-server/internal/domain"

// Reduce applies one change event to an ordered category sequence and returns
// the resulting sequence. The input slice is never modified.
//
//   - INSERT appends the row unless its id is already present.
//   - UPDATE replaces the row in place, or appends it when absent.
//   - DELETE removes the row; an absent id is a no-op.
//
// Events for other tables, and events missing the row they need, leave the
// sequence unchanged.
func Reduce(categories []*domain.Category, event domain.ChangeEvent) []*domain.Category {
	if event.Table != domain.TableCategories {
		return categories
	}

	switch event.Type {
	case domain.ChangeInsert:
		if event.New == nil || indexOf(categories, event.New.ID) >= 0 {
			return categories
		}
		return appendCopy(categories, event.New.Clone())

	case domain.ChangeUpdate:
		if event.New == nil {
			return categories
		}
		i := indexOf(categories, event.New.ID)
		if i < 0 {
			return appendCopy(categories, event.New.Clone())
		}
		out := make([]*domain.Category, len(categories))
		copy(out, categories)
		out[i] = event.New.Clone()
		return out

	case domain.ChangeDelete:
		i := indexOf(categories, event.RowID())
		if i < 0 {
			return categories
		}
		out := make([]*domain.Category, 0, len(categories)-1)
		out = append(out, categories[:i]...)
		return append(out, categories[i+1:]...)
	}
	return categories
}

func indexOf(categories []*domain.Category, id string) int {
	if id == "" {
		return -1
	}
	for i, c := range categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func appendCopy(categories []*domain.Category, c *domain.Category) []*domain.Category {
	out := make([]*domain.Category, 0, len(categories)+1)
	out = append(out, categories...)
	return append(out, c)
}
