package models

import "time"

// Position identifies a record in (updatedAt, id) order. It is what a cursor carries.
type Position struct {
	UpdatedAt time.Time
	ID        string
}

// Before reports whether p sorts strictly before q.
func (p Position) Before(q Position) bool {
	if !p.UpdatedAt.Equal(q.UpdatedAt) {
		return p.UpdatedAt.Before(q.UpdatedAt)
	}
	return p.ID < q.ID
}
