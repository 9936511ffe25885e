package models

import "time"

// Notification is an in-app message delivered to a single user.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	UnreadOnly bool
	Since      *time.Time
}
