package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-nexus-api/internal/models"
	"github.com/noah-isme/event-nexus-api/internal/service"
)

type noopUserRepo struct{}

func (noopUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (noopUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (noopUserRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (noopUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authSvc := service.NewAuthService(noopUserRepo{}, nil, nil, service.AuthConfig{
		Secret:     "middleware-test-secret",
		Expiration: time.Hour,
	})

	r := gin.New()
	secured := r.Group("", JWT(authSvc))
	secured.GET("/whoami", func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})
	secured.GET("/organizer-only", RequireRoles(models.RoleOrganizer), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, authSvc
}

func tokenFor(t *testing.T, svc *service.AuthService, role models.UserRole) string {
	t.Helper()
	user := &models.User{ID: "user-1", Email: "user@example.com", Role: role, Active: true}
	token, _, err := svc.IssueToken(user)
	require.NoError(t, err)
	return token
}

func TestJWTMiddleware(t *testing.T) {
	r, svc := newTestRouter(t)

	// Missing header.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed header.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, models.RoleRegular))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles(t *testing.T) {
	r, svc := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/organizer-only", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, models.RoleRegular))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/organizer-only", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, models.RoleOrganizer))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
