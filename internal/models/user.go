package models

import "time"

// UserRole represents the capability tag assigned to an account.
type UserRole string

const (
	RoleOrganizer UserRole = "ORGANIZER"
	RoleRegular   UserRole = "REGULAR"
)

// Valid reports whether the role is part of the closed enumeration.
func (r UserRole) Valid() bool {
	return r == RoleOrganizer || r == RoleRegular
}

// User represents an application user stored in the users table.
type User struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	TelephoneNumber *string   `db:"telephone_number" json:"telephone_number,omitempty"`
	Department      *string   `db:"department" json:"department,omitempty"`
	Role            UserRole  `db:"role" json:"role"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
