/**
 * @description
 * Session gate for every /api route.
 * Resolves the caller from a server-side session token (cookie or Bearer)
 * or from a Farcaster Quick Auth JWT validated against its JWKS.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: HTTP Context
 * - github.com/golang-jwt/jwt/v5: JWT parsing
 * - github.com/MicahParks/keyfunc/v2: JWKS fetching and caching
 *
 * @notes
 * - Allow-listed public routes pass without a session; a session is still
 *   attached when one is presented.
 * - Handlers read the caller through SessionFrom, never from raw locals.
 */

package middleware

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/savings-circle/backend/internal/config"
	"github.com/savings-circle/backend/internal/logger"
	"github.com/savings-circle/backend/internal/models"
	"github.com/savings-circle/backend/internal/services"
)

const (
	sessionLocalsKey = "session"

	quickAuthIssuer = "https://auth.farcaster.xyz"
)

// Session is the authenticated caller of a request
type Session struct {
	UserID uuid.UUID
	Fid    *int64
}

// SessionResolver looks up server-side session tokens
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// FarcasterUsers links a verified fid to a local user
type FarcasterUsers interface {
	EnsureFarcasterUser(ctx context.Context, profile services.FarcasterProfile) (*models.User, error)
}

// PublicRoute is a method plus a path.Match pattern that needs no session
type PublicRoute struct {
	Method  string
	Pattern string
}

// DefaultPublicRoutes are readable without signing in
var DefaultPublicRoutes = []PublicRoute{
	{fiber.MethodGet, "/api/health"},
	{fiber.MethodGet, "/api/groups/*"},
	{fiber.MethodGet, "/api/groups/*/participants"},
	{fiber.MethodGet, "/api/groups/*/participants/status"},
	{fiber.MethodGet, "/api/groups/*/circle"},
	{fiber.MethodGet, "/api/groups/mock-payout/*"},
	{fiber.MethodGet, "/api/users/*"},
	{fiber.MethodGet, "/api/users/*/groups"},
	{fiber.MethodGet, "/api/circles/stream"},
}

// AuthOptions configures the gate
type AuthOptions struct {
	CookieName string
	// Expected "aud" of Quick Auth tokens, empty skips the check
	Audience string
	// Verifies Quick Auth signatures; nil disables JWT sign-in
	Keyfunc jwt.Keyfunc
	Public  []PublicRoute
}

// Authenticator resolves sessions for the gate
type Authenticator struct {
	sessions SessionResolver
	users    FarcasterUsers
	opts     AuthOptions
	now      func() time.Time
}

func NewAuthenticator(sessions SessionResolver, users FarcasterUsers, opts AuthOptions) *Authenticator {
	if opts.Public == nil {
		opts.Public = DefaultPublicRoutes
	}
	return &Authenticator{sessions: sessions, users: users, opts: opts, now: time.Now}
}

// LoadQuickAuthKeys fetches the Quick Auth JWKS and keeps it refreshed.
// Call the returned stop func on shutdown.
func LoadQuickAuthKeys(cfg *config.Config) (jwt.Keyfunc, func(), error) {
	if cfg.Auth.QuickAuthJWKSURL == "" {
		logger.Warn("QUICK_AUTH_JWKS_URL is empty. Quick Auth sign-in is disabled.")
		return nil, func() {}, nil
	}

	jwks, err := keyfunc.Get(cfg.Auth.QuickAuthJWKSURL, keyfunc.Options{
		RefreshInterval: time.Hour,
		RefreshErrorHandler: func(err error) {
			logger.Error("There was an error with the JWKS refresh: %v", err)
		},
	})
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to load quick auth keys: %w", err)
	}

	logger.Info("Quick Auth keys loaded from %s", cfg.Auth.QuickAuthJWKSURL)
	return jwks.Keyfunc, jwks.EndBackground, nil
}

// Gate attaches the caller's session and rejects anonymous calls to non-public routes
func (a *Authenticator) Gate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		public := a.isPublic(c.Method(), c.Path())

		session, err := a.resolve(c)
		switch {
		case err == nil && session != nil:
			c.Locals(sessionLocalsKey, *session)
			return c.Next()
		case public:
			if err != nil && !isAnonymous(err) {
				logger.Warn("Auth: Ignoring unusable credentials on %s: %v", c.Path(), err)
			}
			return c.Next()
		case errors.Is(err, services.ErrUserBanned):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		case err != nil && !isAnonymous(err):
			logger.Error("Auth: Session lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		default:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
	}
}

// errNoCredentials means the request carried no token at all
var errNoCredentials = errors.New("no credentials")

// errInvalidToken covers every JWT verification failure
var errInvalidToken = errors.New("invalid token")

func isAnonymous(err error) bool {
	return errors.Is(err, errNoCredentials) ||
		errors.Is(err, errInvalidToken) ||
		errors.Is(err, services.ErrSessionNotFound) ||
		errors.Is(err, services.ErrSessionExpired)
}

func (a *Authenticator) isPublic(method, p string) bool {
	if method == fiber.MethodHead {
		method = fiber.MethodGet
	}
	for _, r := range a.opts.Public {
		if r.Method != method {
			continue
		}
		if ok, _ := path.Match(r.Pattern, p); ok {
			return true
		}
	}
	return false
}

func (a *Authenticator) resolve(c *fiber.Ctx) (*Session, error) {
	token := a.token(c)
	if token == "" {
		return nil, errNoCredentials
	}

	if a.opts.Keyfunc != nil && strings.Count(token, ".") == 2 {
		return a.resolveQuickAuth(c.UserContext(), token)
	}

	user, err := a.sessions.Resolve(c.UserContext(), token)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: user.ID, Fid: user.Fid}, nil
}

func (a *Authenticator) token(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		if bearer := strings.TrimPrefix(authHeader, "Bearer "); bearer != authHeader {
			return strings.TrimSpace(bearer)
		}
	}
	if a.opts.CookieName != "" {
		return strings.TrimSpace(c.Cookies(a.opts.CookieName))
	}
	return ""
}

func (a *Authenticator) resolveQuickAuth(ctx context.Context, raw string) (*Session, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithIssuer(quickAuthIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(a.opts.Audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, a.opts.Keyfunc, parserOpts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	fid, err := fidFromSubject(claims["sub"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	user, err := a.users.EnsureFarcasterUser(ctx, services.FarcasterProfile{Fid: fid})
	if err != nil {
		return nil, err
	}
	if user.IsBanned(a.now()) {
		return nil, services.ErrUserBanned
	}
	return &Session{UserID: user.ID, Fid: &fid}, nil
}

// fidFromSubject accepts the fid as a JSON number or a decimal string
func fidFromSubject(sub interface{}) (int64, error) {
	switch v := sub.(type) {
	case float64:
		if v > 0 && v == float64(int64(v)) {
			return int64(v), nil
		}
	case string:
		if fid, err := strconv.ParseInt(v, 10, 64); err == nil && fid > 0 {
			return fid, nil
		}
	}
	return 0, fmt.Errorf("subject %v is not a fid", sub)
}

// SessionFrom returns the caller attached by Gate
func SessionFrom(c *fiber.Ctx) (Session, bool) {
	s, ok := c.Locals(sessionLocalsKey).(Session)
	return s, ok
}

// WithSession attaches a fixed session, for tests and internal tooling
func WithSession(s Session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(sessionLocalsKey, s)
		return c.Next()
	}
}
