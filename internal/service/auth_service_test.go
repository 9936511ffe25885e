package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/event-nexus-api/internal/models"
	"github.com/noah-isme/event-nexus-api/internal/repository"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
)

type fakeAuthRepo struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{byID: make(map[string]*models.User), byEmail: make(map[string]*models.User)}
}

func (f *fakeAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := f.byEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := f.byID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) Create(ctx context.Context, user *models.User) error {
	if _, exists := f.byEmail[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	user.Active = true
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if user, ok := f.byID[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeAuthRepo) {
	t.Helper()
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "event-nexus-test",
	})
	return svc, repo
}

func registerPayload() RegisterRequest {
	return RegisterRequest{
		Name:     "Dana Silva",
		Email:    "Dana@Example.com",
		Password: "sup3r-secret",
		Role:     "regular",
	}
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerPayload())
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", user.Email, "email is normalised")
	assert.Equal(t, models.RoleRegular, user.Role)
	assert.NotEqual(t, "sup3r-secret", user.PasswordHash)

	res, err := svc.Login(ctx, models.LoginRequest{Email: "dana@example.com", Password: "sup3r-secret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.NotEmpty(t, res.AccessToken)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleRegular, claims.Role)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerPayload())
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerPayload())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAuthServiceRegisterRejectsUnknownRole(t *testing.T) {
	svc, _ := newAuthFixture(t)

	req := registerPayload()
	req.Role = "SUPERUSER"
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerPayload())
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "dana@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerPayload())
	require.NoError(t, err)
	repo.byEmail[user.Email].Active = false

	_, err = svc.Login(ctx, models.LoginRequest{Email: "dana@example.com", Password: "sup3r-secret"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceValidateTokenRejectsForgedSignature(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(newFakeAuthRepo(), nil, nil, AuthConfig{Secret: "different-secret", Expiration: time.Hour})

	user, err := svc.Register(context.Background(), registerPayload())
	require.NoError(t, err)
	token, _, err := svc.IssueToken(user)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, repo := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerPayload())
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "brand-new-pass"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	err = svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "sup3r-secret", NewPassword: "brand-new-pass"})
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.byID[user.ID].PasswordHash), []byte("brand-new-pass")))
}
