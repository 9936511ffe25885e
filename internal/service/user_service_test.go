package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-nexus-api/internal/models"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
)

type fakeUserRepo struct {
	users       map[string]*models.User
	deactivated []string
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) Deactivate(ctx context.Context, id string) error {
	f.deactivated = append(f.deactivated, id)
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) ListActive(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, user := range f.users {
		out = append(out, *user)
	}
	return out, nil
}

type fakeEventsRemover struct {
	owners []string
}

func (f *fakeEventsRemover) DeleteAllByOwner(ctx context.Context, ownerID string) error {
	f.owners = append(f.owners, ownerID)
	return nil
}

func newUserFixture(t *testing.T) (*UserService, *fakeUserRepo, *fakeEventsRemover) {
	t.Helper()
	repo := &fakeUserRepo{users: map[string]*models.User{
		"org-1":  {ID: "org-1", Name: "Dana Silva", Role: models.RoleOrganizer, Active: true},
		"user-1": {ID: "user-1", Name: "Robin Costa", Role: models.RoleRegular, Active: true},
	}}
	events := &fakeEventsRemover{}
	return NewUserService(repo, events, nil, nil), repo, events
}

func TestUserServiceUpdateProfile(t *testing.T) {
	svc, repo, _ := newUserFixture(t)

	phone := "+55 11 99999-0000"
	user, err := svc.UpdateProfile(context.Background(), "user-1", UpdateProfileRequest{
		Name:            "  Robin C. ",
		TelephoneNumber: &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "Robin C.", user.Name)
	require.NotNil(t, repo.users["user-1"].TelephoneNumber)
	assert.Equal(t, phone, *repo.users["user-1"].TelephoneNumber)
}

func TestUserServiceUpdateProfileUnknownUser(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.UpdateProfile(context.Background(), "ghost", UpdateProfileRequest{Name: "Someone"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceDeactivateOrganizerRemovesOwnedEvents(t *testing.T) {
	svc, repo, events := newUserFixture(t)

	require.NoError(t, svc.Deactivate(context.Background(), "org-1"))
	assert.Equal(t, []string{"org-1"}, events.owners)
	assert.Contains(t, repo.deactivated, "org-1")
}

func TestUserServiceDeactivateRegularLeavesEventsAlone(t *testing.T) {
	svc, repo, events := newUserFixture(t)

	require.NoError(t, svc.Deactivate(context.Background(), "user-1"))
	assert.Empty(t, events.owners)
	assert.Contains(t, repo.deactivated, "user-1")
}
