package models

import "time"

// EventType is the closed enumeration of event categories. The constant
// names match the stored values; the canonical human-readable value is
// exposed through Label.
type EventType string

const (
	EventTypeWorkshop   EventType = "WORKSHOP"
	EventTypeLecture    EventType = "LECTURE"
	EventTypeConference EventType = "CONFERENCE"
	EventTypeSeminar    EventType = "SEMINAR"
	EventTypeHackathon  EventType = "HACKATHON"
	EventTypeMeetup     EventType = "MEETUP"
	EventTypeTraining   EventType = "TRAINING"
	EventTypeWebinar    EventType = "WEBINAR"
	EventTypeOther      EventType = "OTHER"
)

var eventTypeLabels = map[EventType]string{
	EventTypeWorkshop:   "Workshop",
	EventTypeLecture:    "Lecture",
	EventTypeConference: "Conference",
	EventTypeSeminar:    "Seminar",
	EventTypeHackathon:  "Hackathon",
	EventTypeMeetup:     "Meetup",
	EventTypeTraining:   "Training",
	EventTypeWebinar:    "Webinar",
	EventTypeOther:      "Other",
}

// Valid reports whether the type belongs to the closed enumeration.
func (t EventType) Valid() bool {
	_, ok := eventTypeLabels[t]
	return ok
}

// Label returns the canonical display value for the type.
func (t EventType) Label() string {
	return eventTypeLabels[t]
}

// ParseEventType resolves a type from either its constant name or its
// canonical label. The boolean result distinguishes a miss from OTHER.
func ParseEventType(raw string) (EventType, bool) {
	candidate := EventType(raw)
	if candidate.Valid() {
		return candidate, true
	}
	for t, label := range eventTypeLabels {
		if label == raw {
			return t, true
		}
	}
	return "", false
}

// Event represents an event stored in the events table. StartsAt carries
// both the date and time of the event as a single timestamp.
type Event struct {
	ID                   string    `db:"id" json:"id"`
	Title                string    `db:"title" json:"title"`
	Description          *string   `db:"description" json:"description,omitempty"`
	StartsAt             time.Time `db:"starts_at" json:"starts_at"`
	Location             string    `db:"location" json:"location"`
	Capacity             *int      `db:"capacity" json:"capacity,omitempty"`
	Type                 EventType `db:"type" json:"type"`
	Speaker              *string   `db:"speaker" json:"speaker,omitempty"`
	InstitutionOrganizer string    `db:"institution_organizer" json:"institution_organizer"`
	CreatedBy            string    `db:"created_by" json:"created_by"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// EventSummary augments an event with its current roster occupancy.
// RemainingSlots is nil for uncapped events.
type EventSummary struct {
	Event
	EnrolledCount  int  `db:"enrolled_count" json:"enrolled_count"`
	RemainingSlots *int `json:"remaining_slots"`
}

// PublicEventDetail is the enrollment-facing projection of an event.
type PublicEventDetail struct {
	EventSummary
	IsFull bool `json:"is_full"`
	IsPast bool `json:"is_past"`
}
