package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/savings-circle/backend/internal/api/middleware"
	"github.com/savings-circle/backend/internal/config"
	"github.com/savings-circle/backend/internal/models"
	"github.com/savings-circle/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testCookie = "session_token"

func newRoutedApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	gdb := testutil.NewDB(t)
	cfg := &config.Config{Chain: config.ChainConfig{TokenDecimals: 6, CacheTTL: time.Second}}
	svc := NewServices(cfg, gdb, nil, nil, nil)
	t.Cleanup(svc.Close)

	auth := middleware.NewAuthenticator(svc.Sessions, svc.Users, middleware.AuthOptions{CookieName: testCookie})

	app := fiber.New(fiber.Config{StrictRouting: true, CaseSensitive: true})
	SetupRoutes(app, svc, auth, nil)
	return app, gdb
}

func signIn(t *testing.T, gdb *gorm.DB, user *models.User) string {
	t.Helper()
	session := &models.Session{Token: "tok-" + user.ID.String(), UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, gdb.Create(session).Error)
	return session.Token
}

func TestHealthIsPublic(t *testing.T) {
	app, _ := newRoutedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateGroupThroughGate(t *testing.T) {
	app, gdb := newRoutedApp(t)
	user := testutil.CreateUser(t, gdb, testutil.Int64(7))
	body := []byte(`{"name":"Circle","groupAddress":"0xabc"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/groups", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/api/groups", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: testCookie, Value: signIn(t, gdb, user)})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var group models.Group
	require.NoError(t, gdb.First(&group).Error)
	assert.Equal(t, user.ID, group.CreatorID)
}

func TestPublicReadsWithoutSession(t *testing.T) {
	app, gdb := newRoutedApp(t)
	group := testutil.CreateGroup(t, gdb, testutil.CreateUser(t, gdb, nil), "0xabc")
	testutil.CreateParticipant(t, gdb, group.ID, "0x1", true, false)

	for _, path := range []string{
		"/api/groups/" + group.ID.String(),
		"/api/groups/" + group.ID.String() + "/participants",
		"/api/groups/" + group.ID.String() + "/participants/status",
		"/api/groups/mock-payout/0xabc",
		"/api/users/0x1/groups",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	// no reader configured
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/groups/"+group.ID.String()+"/circle", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamNotMountedWithoutRedis(t *testing.T) {
	app, _ := newRoutedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/circles/stream", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
