package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-nexus-api/internal/middleware"
	"github.com/noah-isme/event-nexus-api/internal/models"
	"github.com/noah-isme/event-nexus-api/internal/service"
)

type notificationRepoMock struct {
	items      []models.Notification
	lastFilter models.NotificationFilter
	markOK     bool
	unread     int
}

func (m *notificationRepoMock) Create(ctx context.Context, n *models.Notification) error {
	m.items = append(m.items, *n)
	return nil
}

func (m *notificationRepoMock) ListByUser(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error) {
	m.lastFilter = filter
	return m.items, nil
}

func (m *notificationRepoMock) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	return m.markOK, nil
}

func (m *notificationRepoMock) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return int64(m.unread), nil
}

func (m *notificationRepoMock) CountUnread(ctx context.Context, userID string) (int, error) {
	return m.unread, nil
}

func notificationTestContext(t *testing.T, method, target string, authenticated bool) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	c.Request = req
	if authenticated {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleRegular})
	}
	return c, w
}

func TestNotificationHandlerListParsesFilter(t *testing.T) {
	repo := &notificationRepoMock{items: []models.Notification{{ID: "n-1", UserID: "user-1"}}}
	handler := NewNotificationHandler(service.NewNotificationService(repo, nil))

	c, w := notificationTestContext(t, http.MethodGet, "/notifications?unread_only=true", true)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, repo.lastFilter.UnreadOnly)
}

func TestNotificationHandlerListRejectsBadFilter(t *testing.T) {
	handler := NewNotificationHandler(service.NewNotificationService(&notificationRepoMock{}, nil))

	c, w := notificationTestContext(t, http.MethodGet, "/notifications?unread_only=yep", true)
	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationHandlerRequiresAuth(t *testing.T) {
	handler := NewNotificationHandler(service.NewNotificationService(&notificationRepoMock{}, nil))

	c, w := notificationTestContext(t, http.MethodGet, "/notifications", false)
	handler.List(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	repo := &notificationRepoMock{markOK: false}
	handler := NewNotificationHandler(service.NewNotificationService(repo, nil))

	c, w := notificationTestContext(t, http.MethodPut, "/notifications/n-404/read", true)
	c.Params = gin.Params{{Key: "id", Value: "n-404"}}
	handler.MarkRead(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandlerUnreadCount(t *testing.T) {
	repo := &notificationRepoMock{unread: 4}
	handler := NewNotificationHandler(service.NewNotificationService(repo, nil))

	c, w := notificationTestContext(t, http.MethodGet, "/notifications/unread-count", true)
	handler.UnreadCount(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 4, envelope.Data["unread"])
}
