package models

import "time"

// Certificate records an issued participation certificate. At most one
// active certificate exists per (user, event) pair.
type Certificate struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	EventID         string    `db:"event_id" json:"event_id"`
	GeneratedAt     time.Time `db:"generated_at" json:"generated_at"`
	CertificatePath string    `db:"certificate_path" json:"certificate_path"`
	Active          bool      `db:"active" json:"active"`
}

// CertificateDetail enriches a certificate with its event context for list
// responses.
type CertificateDetail struct {
	Certificate
	EventTitle    string    `db:"event_title" json:"event_title"`
	EventStartsAt time.Time `db:"event_starts_at" json:"event_starts_at"`
	EventLocation string    `db:"event_location" json:"event_location"`
}
