package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/event-nexus-api/internal/models"
)

// EventRepository handles persistence of events. Every read filters on
// active = TRUE so soft-deleted rows never leak out of the store layer.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, description, starts_at, location, capacity, type, speaker, institution_organizer, created_by, active, created_at, updated_at`

// Create persists a new event record.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	event.Active = true
	const query = `INSERT INTO events (id, title, description, starts_at, location, capacity, type, speaker, institution_organizer, created_by, active, created_at, updated_at)
        VALUES (:id, :title, :description, :starts_at, :location, :capacity, :type, :speaker, :institution_organizer, :created_by, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of an event. The created_by column is
// intentionally not part of the statement.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, starts_at = :starts_at,
        location = :location, capacity = :capacity, type = :type, speaker = :speaker,
        institution_organizer = :institution_organizer, updated_at = :updated_at
        WHERE id = :id AND active = TRUE`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// SoftDelete flips the active flag instead of removing the row.
func (r *EventRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE events SET active = FALSE, updated_at = $2 WHERE id = $1 AND active = TRUE`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete event: %w", err)
	}
	return nil
}

// SoftDeleteByOwner deactivates every active event created by the owner and
// returns how many rows were touched.
func (r *EventRepository) SoftDeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	const query = `UPDATE events SET active = FALSE, updated_at = $2 WHERE created_by = $1 AND active = TRUE`
	result, err := r.db.ExecContext(ctx, query, ownerID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("soft delete events by owner: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("soft delete events by owner: %w", err)
	}
	return affected, nil
}

// FindByID returns an active event by its ID. Soft-deleted events behave as
// absent, so callers receive sql.ErrNoRows.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1 AND active = TRUE`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListByOwner returns the active events created by the owner, newest first.
func (r *EventRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE created_by = $1 AND active = TRUE ORDER BY starts_at DESC`, eventColumns)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, ownerID); err != nil {
		return nil, fmt.Errorf("list events by owner: %w", err)
	}
	return events, nil
}

// ListAvailable returns active events starting at or after the reference
// instant, ascending by start, each carrying its active enrollment count.
func (r *EventRepository) ListAvailable(ctx context.Context, now time.Time) ([]models.EventSummary, error) {
	const query = `SELECT e.id, e.title, e.description, e.starts_at, e.location, e.capacity, e.type,
        e.speaker, e.institution_organizer, e.created_by, e.active, e.created_at, e.updated_at,
        COALESCE(ec.enrolled_count, 0) AS enrolled_count
        FROM events e
        LEFT JOIN (SELECT event_id, COUNT(*) AS enrolled_count FROM enrollments WHERE active = TRUE GROUP BY event_id) ec
            ON ec.event_id = e.id
        WHERE e.active = TRUE AND e.starts_at >= $1
        ORDER BY e.starts_at ASC`
	var events []models.EventSummary
	if err := r.db.SelectContext(ctx, &events, query, now); err != nil {
		return nil, fmt.Errorf("list available events: %w", err)
	}
	return events, nil
}

// ListCompletedWithin returns active events whose start fell inside the
// trailing window ending at the reference instant. The completion scanner
// uses this to find recently concluded events.
func (r *EventRepository) ListCompletedWithin(ctx context.Context, now time.Time, window time.Duration) ([]models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE active = TRUE AND starts_at <= $1 AND starts_at >= $2 ORDER BY starts_at ASC`, eventColumns)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, now, now.Add(-window)); err != nil {
		return nil, fmt.Errorf("list completed events: %w", err)
	}
	return events, nil
}
