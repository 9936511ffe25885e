package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/event-nexus-api/internal/models"
)

// CertificateRepository handles persistence of issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateColumns = `id, user_id, event_id, generated_at, certificate_path, active`

// FindActiveByUserAndEvent returns the active certificate for the pair, or
// sql.ErrNoRows when none exists.
func (r *CertificateRepository) FindActiveByUserAndEvent(ctx context.Context, userID, eventID string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE user_id = $1 AND event_id = $2 AND active = TRUE`, certificateColumns)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, userID, eventID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// Create persists a new certificate record. A unique-constraint violation on
// the active (user, event) pair maps to ErrDuplicateCertificate so a racing
// issuance can fall back to the already committed row.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.GeneratedAt.IsZero() {
		cert.GeneratedAt = time.Now().UTC()
	}
	cert.Active = true
	const query = `INSERT INTO certificates (id, user_id, event_id, generated_at, certificate_path, active)
        VALUES (:id, :user_id, :event_id, :generated_at, :certificate_path, :active)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCertificate
		}
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// ListByUser returns the user's active certificates with event context,
// newest first. Certificates survive event soft deletion, so the event join
// does not filter on the event's active flag.
func (r *CertificateRepository) ListByUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	const query = `SELECT c.id, c.user_id, c.event_id, c.generated_at, c.certificate_path, c.active,
        e.title AS event_title, e.starts_at AS event_starts_at, e.location AS event_location
        FROM certificates c
        JOIN events e ON e.id = c.event_id
        WHERE c.user_id = $1 AND c.active = TRUE
        ORDER BY c.generated_at DESC`
	var certs []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &certs, query, userID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

// FindByID returns an active certificate by ID. When ownerID is non-empty
// the row must also belong to that user.
func (r *CertificateRepository) FindByID(ctx context.Context, id, ownerID string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE id = $1 AND active = TRUE`, certificateColumns)
	args := []interface{}{id}
	if ownerID != "" {
		query += ` AND user_id = $2`
		args = append(args, ownerID)
	}
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, args...); err != nil {
		return nil, err
	}
	return &cert, nil
}

// CountActiveByEvent returns how many active certificates exist for an
// event. The completion scanner compares this against the enrollment count.
func (r *CertificateRepository) CountActiveByEvent(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM certificates WHERE event_id = $1 AND active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return count, nil
}
