package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-nexus-api/internal/models"
	"github.com/noah-isme/event-nexus-api/internal/repository"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
	"github.com/noah-isme/event-nexus-api/pkg/export"
	"github.com/noah-isme/event-nexus-api/pkg/mailer"
)

type fakeCertRepo struct {
	byPair    map[string]*models.Certificate
	createErr error
	created   []*models.Certificate
}

func newFakeCertRepo() *fakeCertRepo {
	return &fakeCertRepo{byPair: make(map[string]*models.Certificate)}
}

func certKey(userID, eventID string) string { return userID + "|" + eventID }

func (f *fakeCertRepo) FindActiveByUserAndEvent(ctx context.Context, userID, eventID string) (*models.Certificate, error) {
	if cert, ok := f.byPair[certKey(userID, eventID)]; ok {
		return cert, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCertRepo) Create(ctx context.Context, cert *models.Certificate) error {
	if f.createErr != nil {
		return f.createErr
	}
	if cert.ID == "" {
		cert.ID = "cert-" + cert.UserID
	}
	cert.Active = true
	f.byPair[certKey(cert.UserID, cert.EventID)] = cert
	f.created = append(f.created, cert)
	return nil
}

func (f *fakeCertRepo) ListByUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	return nil, nil
}

func (f *fakeCertRepo) FindByID(ctx context.Context, id, ownerID string) (*models.Certificate, error) {
	for _, cert := range f.byPair {
		if cert.ID == id && (ownerID == "" || cert.UserID == ownerID) {
			return cert, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCertRepo) CountActiveByEvent(ctx context.Context, eventID string) (int, error) {
	count := 0
	for _, cert := range f.byPair {
		if cert.EventID == eventID {
			count++
		}
	}
	return count, nil
}

type fakeUserReader struct {
	users map[string]*models.User
}

func (f *fakeUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

type fakeRoster struct {
	enrolled     map[string]bool
	participants []models.Participant
}

func (f *fakeRoster) ExistsActive(ctx context.Context, eventID, userID string) (bool, error) {
	return f.enrolled[certKey(userID, eventID)], nil
}

func (f *fakeRoster) ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error) {
	return f.participants, nil
}

type fakeRenderer struct {
	calls int
	err   error
}

func (f *fakeRenderer) Render(data export.CertificateData) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 " + data.ParticipantName), nil
}

type fakeStore struct {
	saved map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{saved: make(map[string][]byte)} }

func (f *fakeStore) Save(filename string, data []byte) (string, error) {
	f.saved[filename] = data
	return filename, nil
}

func (f *fakeStore) Read(filename string) ([]byte, error) {
	if data, ok := f.saved[filename]; ok {
		return data, nil
	}
	return nil, errors.New("document not found")
}

type fakeDispatcher struct {
	sent []string
	err  error
}

func (f *fakeDispatcher) Send(ctx context.Context, to, subject, body string, attachment *mailer.Attachment) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeNotificationWriter struct {
	notifications []*models.Notification
}

func (f *fakeNotificationWriter) Create(ctx context.Context, n *models.Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}

type certFixture struct {
	svc      *CertificateService
	repo     *fakeCertRepo
	roster   *fakeRoster
	renderer *fakeRenderer
	store    *fakeStore
	mail     *fakeDispatcher
	notify   *fakeNotificationWriter
}

func newCertFixture(t *testing.T) *certFixture {
	t.Helper()
	repo := newFakeCertRepo()
	users := &fakeUserReader{users: map[string]*models.User{
		"user-1": {ID: "user-1", Name: "Dana Silva", Email: "dana@example.com", Active: true},
		"user-2": {ID: "user-2", Name: "Robin Costa", Email: "robin@example.com", Active: true},
	}}
	speaker := "Prof. Lima"
	events := &fakeEventReader{events: map[string]*models.Event{
		"evt-1": {
			ID:                   "evt-1",
			Title:                "Distributed Systems Workshop",
			StartsAt:             time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC),
			Location:             "Lab 3",
			Speaker:              &speaker,
			InstitutionOrganizer: "ACME Engineering",
			CreatedBy:            "organizer-1",
			Active:               true,
		},
	}}
	roster := &fakeRoster{enrolled: map[string]bool{
		certKey("user-1", "evt-1"): true,
		certKey("user-2", "evt-1"): true,
	}}
	renderer := &fakeRenderer{}
	store := newFakeStore()
	mail := &fakeDispatcher{}
	notify := &fakeNotificationWriter{}

	svc := NewCertificateService(repo, users, events, roster, renderer, store, mail, notify, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return &certFixture{svc: svc, repo: repo, roster: roster, renderer: renderer, store: store, mail: mail, notify: notify}
}

func TestCertificateServiceIssueFor(t *testing.T) {
	fx := newCertFixture(t)

	cert, err := fx.svc.IssueFor(context.Background(), "user-1", "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", cert.UserID)
	assert.Equal(t, "evt-1", cert.EventID)
	assert.Equal(t, 1, fx.renderer.calls)
	assert.Contains(t, fx.store.saved, cert.CertificatePath)
}

func TestCertificateServiceIssueForIsIdempotent(t *testing.T) {
	fx := newCertFixture(t)

	first, err := fx.svc.IssueFor(context.Background(), "user-1", "evt-1")
	require.NoError(t, err)

	second, err := fx.svc.IssueFor(context.Background(), "user-1", "evt-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CertificatePath, second.CertificatePath)
	assert.Equal(t, 1, fx.renderer.calls, "existing certificate must not be re-rendered")
}

func TestCertificateServiceIssueForBeforeConclusion(t *testing.T) {
	fx := newCertFixture(t)
	fx.svc.now = func() time.Time { return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC) }

	_, err := fx.svc.IssueFor(context.Background(), "user-1", "evt-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
	assert.Contains(t, err.Error(), "after the event has concluded")
}

func TestCertificateServiceIssueForNotEnrolled(t *testing.T) {
	fx := newCertFixture(t)
	delete(fx.roster.enrolled, certKey("user-1", "evt-1"))

	_, err := fx.svc.IssueFor(context.Background(), "user-1", "evt-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusinessRule))
	assert.Contains(t, err.Error(), "not enrolled")
}

func TestCertificateServiceIssueForLostInsertRace(t *testing.T) {
	fx := newCertFixture(t)

	// Simulate a concurrent issuance committing between our existence check
	// and our insert: the first lookup misses, the insert hits the unique
	// constraint, the re-fetch serves the winner's row.
	winner := &models.Certificate{ID: "cert-winner", UserID: "user-1", EventID: "evt-1", Active: true}
	calls := 0
	fx.svc.repo = &racingCertRepo{
		inner:     fx.repo,
		committed: map[string]*models.Certificate{certKey("user-1", "evt-1"): winner},
		missFirst: &calls,
	}

	cert, err := fx.svc.IssueFor(context.Background(), "user-1", "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "cert-winner", cert.ID)
}

// racingCertRepo misses the first FindActiveByUserAndEvent, then serves the
// concurrently committed row.
type racingCertRepo struct {
	inner     *fakeCertRepo
	committed map[string]*models.Certificate
	missFirst *int
}

func (r *racingCertRepo) FindActiveByUserAndEvent(ctx context.Context, userID, eventID string) (*models.Certificate, error) {
	*r.missFirst++
	if *r.missFirst == 1 {
		return nil, sql.ErrNoRows
	}
	if cert, ok := r.committed[certKey(userID, eventID)]; ok {
		return cert, nil
	}
	return nil, sql.ErrNoRows
}

func (r *racingCertRepo) Create(ctx context.Context, cert *models.Certificate) error {
	return repository.ErrDuplicateCertificate
}

func (r *racingCertRepo) ListByUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	return r.inner.ListByUser(ctx, userID)
}

func (r *racingCertRepo) FindByID(ctx context.Context, id, ownerID string) (*models.Certificate, error) {
	return r.inner.FindByID(ctx, id, ownerID)
}

func (r *racingCertRepo) CountActiveByEvent(ctx context.Context, eventID string) (int, error) {
	return r.inner.CountActiveByEvent(ctx, eventID)
}

func TestCertificateServiceIssueForEventSkipsFailures(t *testing.T) {
	fx := newCertFixture(t)
	fx.roster.participants = []models.Participant{
		{UserID: "user-1"},
		{UserID: "ghost"},
		{UserID: "user-2"},
	}

	certs, err := fx.svc.IssueForEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, certs, 2, "the unknown participant is skipped, not fatal")
	assert.Equal(t, 2, fx.renderer.calls)
}

func TestCertificateServiceSendByEmail(t *testing.T) {
	fx := newCertFixture(t)

	cert, err := fx.svc.IssueFor(context.Background(), "user-1", "evt-1")
	require.NoError(t, err)

	require.NoError(t, fx.svc.SendByEmail(context.Background(), cert))
	require.Len(t, fx.mail.sent, 1)
	assert.Equal(t, "dana@example.com", fx.mail.sent[0])
	require.Len(t, fx.notify.notifications, 1)
	assert.Equal(t, "user-1", fx.notify.notifications[0].UserID)
	assert.Equal(t, "Certificate available", fx.notify.notifications[0].Title)
}

func TestCertificateServiceSendByEmailDispatchFailure(t *testing.T) {
	fx := newCertFixture(t)
	fx.mail.err = errors.New("smtp unreachable")

	cert, err := fx.svc.IssueFor(context.Background(), "user-1", "evt-1")
	require.NoError(t, err)

	err = fx.svc.SendByEmail(context.Background(), cert)
	require.Error(t, err)
	assert.Empty(t, fx.notify.notifications, "no notification without a delivered email")
}
