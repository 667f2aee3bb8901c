/**
 * @description
 * Participant API Handlers.
 * Lists, adds (single and batch) and updates the members of a circle.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 *
 * @notes
 * - Every mutation requires the caller to be the group creator.
 */

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/savings-circle/backend/internal/services"
)

type ParticipantHandler struct {
	Groups       *services.GroupService
	Participants *services.ParticipantService
}

func NewParticipantHandler(groups *services.GroupService, participants *services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{Groups: groups, Participants: participants}
}

// ParticipantRequest is one participant in a create body
type ParticipantRequest struct {
	UserAddress string `json:"userAddress" validate:"notblank"`
	Accepted    *bool  `json:"accepted"`
	Paid        *bool  `json:"paid"`
	Contributed *bool  `json:"contributed"`
}

func (r ParticipantRequest) input() services.ParticipantInput {
	return services.ParticipantInput{
		UserAddress: r.UserAddress,
		Accepted:    r.Accepted,
		Paid:        r.Paid,
		Contributed: r.Contributed,
	}
}

// BatchParticipantsRequest is the body of POST .../participants/batch
type BatchParticipantsRequest struct {
	Participants []ParticipantRequest `json:"participants" validate:"required,min=1,dive"`
	AdminAddress string               `json:"adminAddress"`
}

// UpdateParticipantRequest is the body of PATCH .../participants.
// acceptedAt/paidAt may be an ISO-8601 string or null.
type UpdateParticipantRequest struct {
	ParticipantID string       `json:"participantId" validate:"required,uuid"`
	Accepted      *bool        `json:"accepted"`
	Paid          *bool        `json:"paid"`
	Contributed   *bool        `json:"contributed"`
	AcceptedAt    OptionalTime `json:"acceptedAt"`
	PaidAt        OptionalTime `json:"paidAt"`
}

func (r UpdateParticipantRequest) update() services.ParticipantUpdate {
	upd := services.ParticipantUpdate{
		Accepted:    r.Accepted,
		Paid:        r.Paid,
		Contributed: r.Contributed,
	}
	if r.AcceptedAt.Set {
		upd.AcceptedAt = &services.TimeOverride{Value: r.AcceptedAt.Value}
	}
	if r.PaidAt.Set {
		upd.PaidAt = &services.TimeOverride{Value: r.PaidAt.Value}
	}
	return upd
}

// ListParticipants returns every participant of the group
// GET /api/groups/:groupId/participants
func (h *ParticipantHandler) ListParticipants(c *fiber.Ctx) error {
	groupID, err := uuidParam(c, "groupId")
	if err != nil {
		return done(err)
	}

	participants, err := h.Participants.ListByGroup(c.UserContext(), groupID)
	if err != nil {
		return respondServiceError(c, "ListParticipants", err)
	}
	return c.JSON(fiber.Map{"participants": participants})
}

// CreateParticipant adds one participant
// POST /api/groups/:groupId/participants
func (h *ParticipantHandler) CreateParticipant(c *fiber.Ctx) error {
	groupID, err := h.authorizeCreator(c)
	if err != nil {
		return done(err)
	}

	var req ParticipantRequest
	if err := bindJSON(c, &req); err != nil {
		return done(err)
	}

	participant, err := h.Participants.Create(c.UserContext(), groupID, req.input())
	if err != nil {
		return respondServiceError(c, "CreateParticipant", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"participant": participant})
}

// CreateParticipantsBatch adds every participant not yet in the group
// POST /api/groups/:groupId/participants/batch
func (h *ParticipantHandler) CreateParticipantsBatch(c *fiber.Ctx) error {
	groupID, err := h.authorizeCreator(c)
	if err != nil {
		return done(err)
	}

	var req BatchParticipantsRequest
	if err := bindJSON(c, &req); err != nil {
		return done(err)
	}

	inputs := make([]services.ParticipantInput, len(req.Participants))
	for i, p := range req.Participants {
		inputs[i] = p.input()
	}

	result, err := h.Participants.CreateBatch(c.UserContext(), groupID, inputs, req.AdminAddress)
	if err != nil {
		return respondServiceError(c, "CreateParticipantsBatch", err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// UpdateParticipant changes a participant's flags and timestamps
// PATCH /api/groups/:groupId/participants
func (h *ParticipantHandler) UpdateParticipant(c *fiber.Ctx) error {
	groupID, err := h.authorizeCreator(c)
	if err != nil {
		return done(err)
	}

	var req UpdateParticipantRequest
	if err := bindJSON(c, &req); err != nil {
		return done(err)
	}

	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		return validationError(c, "participantId must be a UUID", []FieldError{{Field: "participantId", Message: "must be a valid UUID"}})
	}

	participant, err := h.Participants.Update(c.UserContext(), groupID, participantID, req.update())
	if err != nil {
		return respondServiceError(c, "UpdateParticipant", err)
	}
	return c.JSON(fiber.Map{"participant": participant})
}

// authorizeCreator checks session, path and ownership, writing the error response itself
func (h *ParticipantHandler) authorizeCreator(c *fiber.Ctx) (uuid.UUID, error) {
	session, err := requireSession(c)
	if err != nil {
		return uuid.Nil, err
	}
	groupID, err := uuidParam(c, "groupId")
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := h.Groups.RequireCreator(c.UserContext(), groupID, session.UserID); err != nil {
		_ = respondServiceError(c, "authorizeCreator", err)
		return uuid.Nil, errResponded
	}
	return groupID, nil
}
