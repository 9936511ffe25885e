package models

import "time"

// TypeCount is an aggregate of events per category for one organizer.
type TypeCount struct {
	Type       EventType `db:"type" json:"type"`
	Count      int       `db:"count" json:"count"`
	Percentage float64   `json:"percentage"`
}

// EventStat summarises one event's roster and issuance numbers.
type EventStat struct {
	EventID           string    `db:"event_id" json:"event_id"`
	Title             string    `db:"title" json:"title"`
	Type              EventType `db:"type" json:"type"`
	StartsAt          time.Time `db:"starts_at" json:"starts_at"`
	Capacity          *int      `db:"capacity" json:"capacity,omitempty"`
	EnrolledCount     int       `db:"enrolled_count" json:"enrolled_count"`
	CertificatesCount int       `db:"certificates_count" json:"certificates_count"`
	OccupancyRate     *float64  `json:"occupancy_rate,omitempty"`
}

// OrganizerSummary aggregates an organizer's event portfolio.
type OrganizerSummary struct {
	TotalEvents    int         `json:"total_events"`
	ActiveEvents   int         `json:"active_events"`
	InactiveEvents int         `json:"inactive_events"`
	ByType         []TypeCount `json:"by_type"`
}
