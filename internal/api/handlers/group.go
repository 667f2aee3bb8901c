/**
 * @description
 * Group API Handlers.
 * Create, update and fetch savings circles, plus the mock payout lookup.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 *
 * @notes
 * - creatorId always comes from the session, never from the body.
 */

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/savings-circle/backend/internal/services"
)

const noEligibleMessage = "No eligible participants for payout"

type GroupHandler struct {
	Groups       *services.GroupService
	Participants *services.ParticipantService
}

func NewGroupHandler(groups *services.GroupService, participants *services.ParticipantService) *GroupHandler {
	return &GroupHandler{Groups: groups, Participants: participants}
}

// CreateGroupRequest is the body of POST /api/groups
type CreateGroupRequest struct {
	Name         string  `json:"name" validate:"notblank,max=120"`
	Description  *string `json:"description" validate:"omitnil,max=2000"`
	GroupAddress string  `json:"groupAddress" validate:"notblank"`
}

// UpdateGroupRequest is the body of PATCH /api/groups/:groupId
type UpdateGroupRequest struct {
	Name         *string `json:"name" validate:"omitnil,notblank,max=120"`
	Description  *string `json:"description" validate:"omitnil,notblank,max=2000"`
	GroupAddress *string `json:"groupAddress" validate:"omitnil,notblank"`
}

// CreateGroup creates a circle owned by the caller
// POST /api/groups
func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return done(err)
	}

	var req CreateGroupRequest
	if err := bindJSON(c, &req); err != nil {
		return done(err)
	}

	in := services.CreateGroupInput{
		Name:         req.Name,
		GroupAddress: req.GroupAddress,
		CreatorID:    session.UserID,
	}
	if req.Description != nil {
		in.Description = *req.Description
	}

	group, err := h.Groups.Create(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, "CreateGroup", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"group": group})
}

// UpdateGroup applies a partial update; only the creator may call it
// PATCH /api/groups/:groupId
func (h *GroupHandler) UpdateGroup(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return done(err)
	}
	groupID, err := uuidParam(c, "groupId")
	if err != nil {
		return done(err)
	}

	var req UpdateGroupRequest
	if err := bindJSON(c, &req); err != nil {
		return done(err)
	}

	group, err := h.Groups.Update(c.UserContext(), groupID, session.UserID, services.GroupUpdate{
		Name:         req.Name,
		Description:  req.Description,
		GroupAddress: req.GroupAddress,
	})
	if err != nil {
		return respondServiceError(c, "UpdateGroup", err)
	}
	return c.JSON(fiber.Map{"group": group})
}

// GetGroup returns a group with its participants
// GET /api/groups/:groupId
func (h *GroupHandler) GetGroup(c *fiber.Ctx) error {
	groupID, err := uuidParam(c, "groupId")
	if err != nil {
		return done(err)
	}

	group, err := h.Groups.GetWithParticipants(c.UserContext(), groupID)
	if err != nil {
		return respondServiceError(c, "GetGroup", err)
	}
	return c.JSON(fiber.Map{"group": group})
}

// MockPayout lists the addresses eligible for the next payout
// GET /api/groups/mock-payout/:address
func (h *GroupHandler) MockPayout(c *fiber.Ctx) error {
	address := c.Params("address")
	if address == "" {
		return validationError(c, "address is required", []FieldError{{Field: "address", Message: "is required"}})
	}

	group, err := h.Groups.GetByAddress(c.UserContext(), address)
	if err != nil {
		return respondServiceError(c, "MockPayout", err)
	}

	eligible, err := h.Participants.ListPayoutEligible(c.UserContext(), group.ID)
	if err != nil {
		return respondServiceError(c, "MockPayout", err)
	}

	if len(eligible) == 0 {
		return c.JSON(fiber.Map{
			"message":   noEligibleMessage,
			"addresses": []string{},
		})
	}

	addresses := make([]string, len(eligible))
	for i, p := range eligible {
		addresses[i] = p.UserAddress
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"addresses":     addresses,
		"totalEligible": len(addresses),
	})
}
