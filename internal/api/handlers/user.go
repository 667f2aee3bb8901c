/**
 * @description
 * User API Handlers.
 * Looks up Farcaster profiles and circles by wallet address.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 */

package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/savings-circle/backend/internal/integrations/neynar"
	"github.com/savings-circle/backend/internal/logger"
	"github.com/savings-circle/backend/internal/models"
	"github.com/savings-circle/backend/internal/services"
)

const defaultSearchLimit = 10

type UserHandler struct {
	Groups   *services.GroupService
	Profiles *services.ProfileService
}

func NewUserHandler(groups *services.GroupService, profiles *services.ProfileService) *UserHandler {
	return &UserHandler{Groups: groups, Profiles: profiles}
}

// GetUserByAddress returns the Farcaster profile and local user behind an address
// GET /api/users/:address
func (h *UserHandler) GetUserByAddress(c *fiber.Ctx) error {
	address := c.Params("address")
	if models.NormalizeAddress(address) == "" {
		return validationError(c, "address is required", []FieldError{{Field: "address", Message: "is required"}})
	}
	if h.Profiles == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "Profile lookups are not configured")
	}

	profile, err := h.Profiles.LookupAddress(c.UserContext(), address)
	if err != nil {
		return respondServiceError(c, "GetUserByAddress", err)
	}
	if profile.NeynarUser == nil && profile.DBUser == nil {
		return errorJSON(c, fiber.StatusNotFound, "User not found")
	}
	return c.JSON(profile)
}

// GetUserGroups returns the circles an address joined or created
// GET /api/users/:address/groups
func (h *UserHandler) GetUserGroups(c *fiber.Ctx) error {
	address := c.Params("address")
	if models.NormalizeAddress(address) == "" {
		return validationError(c, "address is required", []FieldError{{Field: "address", Message: "is required"}})
	}

	var owners services.CreatorResolver
	if h.Profiles != nil {
		owners = h.Profiles
	}

	groups, err := h.Groups.ListForAddress(c.UserContext(), address, owners)
	if err != nil {
		return respondServiceError(c, "GetUserGroups", err)
	}
	if groups == nil {
		groups = []models.Group{}
	}
	return c.JSON(fiber.Map{"groups": groups})
}

// SearchUsers finds Farcaster users by username
// GET /api/users/search?q=
func (h *UserHandler) SearchUsers(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.JSON(fiber.Map{"users": []neynar.User{}})
	}
	if h.Profiles == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "Profile lookups are not configured")
	}

	users, err := h.Profiles.Search(c.UserContext(), query, c.QueryInt("limit", defaultSearchLimit))
	if err != nil {
		logger.Error("SearchUsers: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to search users")
	}
	if users == nil {
		users = []neynar.User{}
	}
	return c.JSON(fiber.Map{"users": users})
}
