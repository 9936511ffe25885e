package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-nexus-api/internal/models"
)

func TestCertificateRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cert := &models.Certificate{
		UserID:          "user-1",
		EventID:         "evt-1",
		CertificatePath: "certificate_user-1_evt-1.pdf",
	}
	require.NoError(t, repo.Create(context.Background(), cert))
	require.NotEmpty(t, cert.ID)
	require.False(t, cert.GeneratedAt.IsZero())
	require.True(t, cert.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCreateDuplicateMapsSentinel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "certificates_user_event_active_uniq"})

	err := repo.Create(context.Background(), &models.Certificate{UserID: "user-1", EventID: "evt-1"})
	require.ErrorIs(t, err, ErrDuplicateCertificate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryListByUserKeepsDeletedEvents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	generated := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)

	// The joined event is soft-deleted but the certificate still lists.
	rows := sqlmock.NewRows([]string{"id", "user_id", "event_id", "generated_at", "certificate_path", "active", "event_title", "event_starts_at", "event_location"}).
		AddRow("cert-1", "user-1", "evt-gone", generated, "certificate_user-1_evt-gone.pdf", true, "Removed Workshop", generated.Add(-24*time.Hour), "Lab 2")
	mock.ExpectQuery(regexp.QuoteMeta("FROM certificates c")).
		WithArgs("user-1").
		WillReturnRows(rows)

	certs, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	require.Equal(t, "Removed Workshop", certs[0].EventTitle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryFindByIDScopesOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	generated := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "user_id", "event_id", "generated_at", "certificate_path", "active"}).
		AddRow("cert-1", "user-1", "evt-1", generated, "certificate.pdf", true)
	mock.ExpectQuery(regexp.QuoteMeta("AND user_id = $2")).
		WithArgs("cert-1", "user-1").
		WillReturnRows(rows)

	cert, err := repo.FindByID(context.Background(), "cert-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", cert.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
