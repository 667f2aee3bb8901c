/**
 * @description
 * API Route definitions.
 * Builds the services, sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/services
 */

package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/savings-circle/backend/internal/api/handlers"
	"github.com/savings-circle/backend/internal/api/middleware"
	"github.com/savings-circle/backend/internal/config"
	"github.com/savings-circle/backend/internal/services"
	"gorm.io/gorm"
)

// Services is everything the HTTP layer depends on
type Services struct {
	Users        *services.UserService
	Sessions     *services.SessionService
	Groups       *services.GroupService
	Participants *services.ParticipantService
	Profiles     *services.ProfileService
	Circles      *services.CircleService
	Hub          *services.CircleEventHub
}

// NewServices wires the service layer. provider and reader may be nil when the
// matching external endpoint is not configured.
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client, provider services.ProfileProvider, reader services.CircleChainReader) *Services {
	users := services.NewUserService(db)
	groups := services.NewGroupService(db)
	participants := services.NewParticipantService(db)

	svc := &Services{
		Users:        users,
		Sessions:     services.NewSessionService(db),
		Groups:       groups,
		Participants: participants,
		Circles: services.NewCircleService(db, groups, participants, reader, rdb, services.CircleServiceOptions{
			TokenDecimals: cfg.Chain.TokenDecimals,
			CacheTTL:      cfg.Chain.CacheTTL,
		}),
	}
	if provider != nil {
		svc.Profiles = services.NewProfileService(provider, users, rdb)
	}
	if rdb != nil {
		svc.Hub = services.NewCircleEventHub(rdb, services.CircleUpdateChannel)
	}
	return svc
}

// Close releases background resources
func (s *Services) Close() {
	if s.Hub != nil {
		s.Hub.Close()
	}
}

// SetupRoutes configures all API routes behind the session gate
func SetupRoutes(app *fiber.App, svc *Services, auth *middleware.Authenticator, limiter *middleware.RateLimiter) {
	groupHandler := handlers.NewGroupHandler(svc.Groups, svc.Participants)
	participantHandler := handlers.NewParticipantHandler(svc.Groups, svc.Participants)
	userHandler := handlers.NewUserHandler(svc.Groups, svc.Profiles)

	api := app.Group("/api", auth.Gate())
	if limiter != nil {
		api.Use(limiter.Handler())
	}

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	groups := api.Group("/groups")
	groups.Post("", groupHandler.CreateGroup)
	groups.Get("/mock-payout/:address", groupHandler.MockPayout)
	groups.Get("/:groupId", groupHandler.GetGroup)
	groups.Patch("/:groupId", groupHandler.UpdateGroup)

	groups.Get("/:groupId/participants", participantHandler.ListParticipants)
	groups.Post("/:groupId/participants", participantHandler.CreateParticipant)
	groups.Post("/:groupId/participants/batch", participantHandler.CreateParticipantsBatch)
	groups.Patch("/:groupId/participants", participantHandler.UpdateParticipant)

	users := api.Group("/users")
	users.Get("/search", userHandler.SearchUsers)
	users.Get("/:address", userHandler.GetUserByAddress)
	users.Get("/:address/groups", userHandler.GetUserGroups)

	if svc.Circles != nil {
		circleHandler := handlers.NewCircleHandler(svc.Circles, svc.Hub)
		groups.Get("/:groupId/circle", circleHandler.GetCircle)
		groups.Get("/:groupId/participants/status", circleHandler.GetParticipantStatuses)
		if svc.Hub != nil {
			api.Get("/circles/stream", circleHandler.StreamCircleUpdates)
		}
	}
}
