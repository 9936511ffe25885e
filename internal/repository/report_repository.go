package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/event-nexus-api/internal/models"
)

// ReportRepository runs the aggregate queries behind organizer reporting.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CountEventsByType returns active event counts per category for the owner.
func (r *ReportRepository) CountEventsByType(ctx context.Context, ownerID string) ([]models.TypeCount, error) {
	const query = `SELECT type, COUNT(*) AS count FROM events
        WHERE created_by = $1 AND active = TRUE
        GROUP BY type
        ORDER BY count DESC`
	var counts []models.TypeCount
	if err := r.db.SelectContext(ctx, &counts, query, ownerID); err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}
	return counts, nil
}

// CountEvents returns (total, active) event counts for the owner, including
// soft-deleted rows in the total.
func (r *ReportRepository) CountEvents(ctx context.Context, ownerID string) (int, int, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE active) AS active_count
        FROM events WHERE created_by = $1`
	var row struct {
		Total       int `db:"total"`
		ActiveCount int `db:"active_count"`
	}
	if err := r.db.GetContext(ctx, &row, query, ownerID); err != nil {
		return 0, 0, fmt.Errorf("count events: %w", err)
	}
	return row.Total, row.ActiveCount, nil
}

// EventStats returns per-event roster and issuance numbers for the owner's
// active events.
func (r *ReportRepository) EventStats(ctx context.Context, ownerID string) ([]models.EventStat, error) {
	const query = `SELECT e.id AS event_id, e.title, e.type, e.starts_at, e.capacity,
        COALESCE(ec.enrolled_count, 0) AS enrolled_count,
        COALESCE(cc.certificates_count, 0) AS certificates_count
        FROM events e
        LEFT JOIN (SELECT event_id, COUNT(*) AS enrolled_count FROM enrollments WHERE active = TRUE GROUP BY event_id) ec
            ON ec.event_id = e.id
        LEFT JOIN (SELECT event_id, COUNT(*) AS certificates_count FROM certificates WHERE active = TRUE GROUP BY event_id) cc
            ON cc.event_id = e.id
        WHERE e.created_by = $1 AND e.active = TRUE
        ORDER BY e.starts_at DESC`
	var stats []models.EventStat
	if err := r.db.SelectContext(ctx, &stats, query, ownerID); err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	return stats, nil
}
