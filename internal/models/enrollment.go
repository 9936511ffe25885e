package models

import "time"

// Enrollment captures a user's registration to an event. Rows are never
// physically deleted; cancellation flips the active flag so the roster keeps
// its audit history.
type Enrollment struct {
	ID           string    `db:"id" json:"id"`
	EventID      string    `db:"event_id" json:"event_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
	Active       bool      `db:"active" json:"active"`
}

// Participant is the roster projection returned to an event's organizer.
type Participant struct {
	UserID          string    `db:"user_id" json:"user_id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	Department      *string   `db:"department" json:"department,omitempty"`
	TelephoneNumber *string   `db:"telephone_number" json:"telephone_number,omitempty"`
	RegisteredAt    time.Time `db:"registered_at" json:"registered_at"`
}
