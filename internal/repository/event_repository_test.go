package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-nexus-api/internal/models"
)

func eventRows(events ...*models.Event) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "description", "starts_at", "location", "capacity", "type", "speaker", "institution_organizer", "created_by", "active", "created_at", "updated_at"})
	for _, e := range events {
		rows.AddRow(e.ID, e.Title, e.Description, e.StartsAt, e.Location, e.Capacity, e.Type, e.Speaker, e.InstitutionOrganizer, e.CreatedBy, e.Active, e.CreatedAt, e.UpdatedAt)
	}
	return rows
}

func TestEventRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{
		Title:                "Go Conference",
		StartsAt:             time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		Location:             "Convention center",
		Type:                 models.EventTypeConference,
		InstitutionOrganizer: "ACME Engineering",
		CreatedBy:            "organizer-1",
	}
	require.NoError(t, repo.Create(context.Background(), event))
	require.NotEmpty(t, event.ID)
	require.True(t, event.Active)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description")).
		WithArgs(event.ID).
		WillReturnRows(eventRows(event))

	found, err := repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	require.Equal(t, event.Title, found.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryFindByIDSoftDeleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description")).
		WithArgs("evt-gone").
		WillReturnRows(eventRows())

	_, err := repo.FindByID(context.Background(), "evt-gone")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositorySoftDeleteByOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET active = FALSE, updated_at = $2 WHERE created_by = $1")).
		WithArgs("organizer-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.SoftDeleteByOwner(context.Background(), "organizer-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListAvailable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "starts_at", "location", "capacity", "type", "speaker", "institution_organizer", "created_by", "active", "created_at", "updated_at", "enrolled_count"}).
		AddRow("evt-1", "Workshop", nil, now.Add(48*time.Hour), "Lab 1", 20, "WORKSHOP", nil, "ACME", "organizer-1", true, now, now, 7)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(ec.enrolled_count, 0) AS enrolled_count")).
		WithArgs(now).
		WillReturnRows(rows)

	events, err := repo.ListAvailable(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 7, events[0].EnrolledCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListCompletedWithin(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("starts_at <= $1 AND starts_at >= $2")).
		WithArgs(now, now.Add(-24*time.Hour)).
		WillReturnRows(eventRows(&models.Event{ID: "evt-done", Title: "Concluded", Active: true}))

	events, err := repo.ListCompletedWithin(context.Background(), now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "evt-done", events[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
