package domain

import "time"

// ChangeType is the kind of row mutation carried by a ChangeEvent.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// TableCategories is the only table the change feed currently publishes.
const TableCategories = "categories"

// ChangeEvent is an ephemeral notification of a row-level change. DELETE events
// carry Old; INSERT and UPDATE carry New.
type ChangeEvent struct {
	Type      ChangeType `json:"type"`
	Table     string     `json:"table"`
	UserID    string     `json:"user_id"`
	Old       *Category  `json:"old,omitempty"`
	New       *Category  `json:"new,omitempty"`
	Timestamp time.Time  `json:"event_timestamp"`
}

// NewChangeEvent builds a categories-table event stamped with the current time.
func NewChangeEvent(typ ChangeType, userID string, oldRow, newRow *Category) ChangeEvent {
	return ChangeEvent{
		Type:      typ,
		Table:     TableCategories,
		UserID:    userID,
		Old:       oldRow.Clone(),
		New:       newRow.Clone(),
		Timestamp: time.Now().UTC(),
	}
}

// RowID returns the id of the affected row, preferring New.
func (e ChangeEvent) RowID() string {
	if e.New != nil {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}
