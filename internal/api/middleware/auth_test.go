package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/savings-circle/backend/internal/models"
	"github.com/savings-circle/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("quick-auth-test-key")

type fakeSessions struct {
	users map[string]*models.User
	err   error
}

func (f fakeSessions) Resolve(_ context.Context, token string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, services.ErrSessionNotFound
}

type fakeFarcasterUsers struct {
	user *models.User
}

func (f fakeFarcasterUsers) EnsureFarcasterUser(_ context.Context, p services.FarcasterProfile) (*models.User, error) {
	u := *f.user
	u.Fid = &p.Fid
	return &u, nil
}

func newGateApp(auth *Authenticator) *fiber.App {
	app := fiber.New()
	app.Use(auth.Gate())
	handler := func(c *fiber.Ctx) error {
		s, ok := SessionFrom(c)
		if !ok {
			return c.JSON(fiber.Map{"user": ""})
		}
		return c.JSON(fiber.Map{"user": s.UserID.String()})
	}
	app.Get("/api/groups/:groupId/participants", handler)
	app.Post("/api/groups", handler)
	return app
}

func signQuickAuth(t *testing.T, sub interface{}, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": quickAuthIssuer,
		"sub": sub,
		"aud": "circles.example",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString(testSigningKey)
	require.NoError(t, err)
	return signed
}

func testKeyfunc(*jwt.Token) (interface{}, error) {
	return testSigningKey, nil
}

func TestGateRejectsAnonymousMutation(t *testing.T) {
	app := newGateApp(NewAuthenticator(fakeSessions{}, nil, AuthOptions{CookieName: "session_token"}))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/groups", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGateAllowsAnonymousPublicRead(t *testing.T) {
	app := newGateApp(NewAuthenticator(fakeSessions{}, nil, AuthOptions{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/groups/"+uuid.NewString()+"/participants", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGateResolvesSessionCookie(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	app := newGateApp(NewAuthenticator(fakeSessions{users: map[string]*models.User{"tok": user}}, nil, AuthOptions{CookieName: "session_token"}))

	req := httptest.NewRequest(http.MethodPost, "/api/groups", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "tok"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGateRejectsBannedUser(t *testing.T) {
	app := newGateApp(NewAuthenticator(fakeSessions{err: services.ErrUserBanned}, nil, AuthOptions{}))

	req := httptest.NewRequest(http.MethodPost, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGateAcceptsQuickAuthToken(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	auth := NewAuthenticator(fakeSessions{}, fakeFarcasterUsers{user: user}, AuthOptions{
		Audience: "circles.example",
		Keyfunc:  testKeyfunc,
	})
	app := newGateApp(auth)

	req := httptest.NewRequest(http.MethodPost, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+signQuickAuth(t, 1234, time.Now().Add(time.Hour)))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGateRejectsExpiredQuickAuthToken(t *testing.T) {
	auth := NewAuthenticator(fakeSessions{}, fakeFarcasterUsers{user: &models.User{ID: uuid.New()}}, AuthOptions{
		Keyfunc: testKeyfunc,
	})
	app := newGateApp(auth)

	req := httptest.NewRequest(http.MethodPost, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+signQuickAuth(t, 1234, time.Now().Add(-time.Hour)))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestFidFromSubject(t *testing.T) {
	fid, err := fidFromSubject(float64(77))
	require.NoError(t, err)
	assert.Equal(t, int64(77), fid)

	fid, err = fidFromSubject("78")
	require.NoError(t, err)
	assert.Equal(t, int64(78), fid)

	_, err = fidFromSubject("abc")
	assert.Error(t, err)
	_, err = fidFromSubject(float64(-1))
	assert.Error(t, err)
}

func TestRateLimiterThrottlesMutations(t *testing.T) {
	app := fiber.New()
	app.Use(NewRateLimiter(1, 1).Handler())
	app.Post("/api/groups", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })
	app.Get("/api/groups", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/groups", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/groups", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/groups", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
