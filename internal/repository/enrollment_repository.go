package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/event-nexus-api/internal/models"
)

// EnrollmentRepository handles persistence of the event roster. Roster rows
// are append-mostly: cancellation deactivates the row and re-enrollment
// inserts a fresh one, keeping the full registration history.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ExistsActive checks whether the user currently holds an active roster row
// for the event.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, eventID, userID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE event_id = $1 AND user_id = $2 AND active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, eventID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// CountActive returns the number of simultaneously active roster rows for
// the event.
func (r *EnrollmentRepository) CountActive(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE event_id = $1 AND active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// Enroll inserts an active roster row inside a transaction. The event row is
// locked with FOR UPDATE before the capacity is re-counted, which makes the
// check-then-insert sequence race-free when two requests compete for the
// last slot. A unique-constraint violation on the insert maps to
// ErrDuplicateEnrollment.
func (r *EnrollmentRepository) Enroll(ctx context.Context, eventID, userID string, now time.Time) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var capacity sql.NullInt64
	if err := tx.GetContext(ctx, &capacity,
		`SELECT capacity FROM events WHERE id = $1 AND active = TRUE FOR UPDATE`, eventID); err != nil {
		return nil, err
	}

	if capacity.Valid {
		var enrolled int
		if err := tx.GetContext(ctx, &enrolled,
			`SELECT COUNT(*) FROM enrollments WHERE event_id = $1 AND active = TRUE`, eventID); err != nil {
			return nil, fmt.Errorf("count enrollments in tx: %w", err)
		}
		if int64(enrolled) >= capacity.Int64 {
			return nil, ErrCapacityExceeded
		}
	}

	enrollment := &models.Enrollment{
		ID:           uuid.NewString(),
		EventID:      eventID,
		UserID:       userID,
		RegisteredAt: now,
		Active:       true,
	}
	const insert = `INSERT INTO enrollments (id, event_id, user_id, registered_at, active)
        VALUES ($1, $2, $3, $4, TRUE)`
	if _, err := tx.ExecContext(ctx, insert, enrollment.ID, enrollment.EventID, enrollment.UserID, enrollment.RegisteredAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEnrollment
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return enrollment, nil
}

// Cancel deactivates the user's active roster row for the event and reports
// whether one existed.
func (r *EnrollmentRepository) Cancel(ctx context.Context, eventID, userID string) (bool, error) {
	const query = `UPDATE enrollments SET active = FALSE WHERE event_id = $1 AND user_id = $2 AND active = TRUE`
	result, err := r.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("cancel enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel enrollment: %w", err)
	}
	return affected > 0, nil
}

// ListEventsForUser returns the active events the user is actively enrolled
// in, ascending by start, each with its current enrollment count.
func (r *EnrollmentRepository) ListEventsForUser(ctx context.Context, userID string) ([]models.EventSummary, error) {
	const query = `SELECT e.id, e.title, e.description, e.starts_at, e.location, e.capacity, e.type,
        e.speaker, e.institution_organizer, e.created_by, e.active, e.created_at, e.updated_at,
        COALESCE(ec.enrolled_count, 0) AS enrolled_count
        FROM events e
        JOIN enrollments en ON en.event_id = e.id
        LEFT JOIN (SELECT event_id, COUNT(*) AS enrolled_count FROM enrollments WHERE active = TRUE GROUP BY event_id) ec
            ON ec.event_id = e.id
        WHERE en.user_id = $1 AND en.active = TRUE AND e.active = TRUE
        ORDER BY e.starts_at ASC`
	var events []models.EventSummary
	if err := r.db.SelectContext(ctx, &events, query, userID); err != nil {
		return nil, fmt.Errorf("list enrolled events: %w", err)
	}
	return events, nil
}

// ListParticipants returns the active users holding an active roster row for
// the event.
func (r *EnrollmentRepository) ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error) {
	const query = `SELECT u.id AS user_id, u.name, u.email, u.department, u.telephone_number, en.registered_at
        FROM users u
        JOIN enrollments en ON en.user_id = u.id
        WHERE en.event_id = $1 AND en.active = TRUE AND u.active = TRUE
        ORDER BY en.registered_at ASC`
	var participants []models.Participant
	if err := r.db.SelectContext(ctx, &participants, query, eventID); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}
