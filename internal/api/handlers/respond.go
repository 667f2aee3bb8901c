package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/savings-circle/backend/internal/api/middleware"
	"github.com/savings-circle/backend/internal/logger"
	"github.com/savings-circle/backend/internal/services"
)

// errResponded signals that the handler already wrote its response
var errResponded = errors.New("response already written")

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// respondServiceError maps service sentinels to status codes.
// Anything unrecognised is logged under op and hidden behind a generic 500.
func respondServiceError(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, services.ErrGroupNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Group not found")
	case errors.Is(err, services.ErrParticipantNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Participant not found")
	case errors.Is(err, services.ErrUserNotFound):
		return errorJSON(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrForbidden):
		return errorJSON(c, fiber.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrAllParticipantsExist),
		errors.Is(err, services.ErrParticipantExists):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrParticipantGroupMismatch),
		errors.Is(err, services.ErrInvalidAddress),
		errors.Is(err, services.ErrNoParticipants):
		return validationError(c, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidViewer):
		return validationError(c, "viewer must be a wallet address", []FieldError{{Field: "viewer", Message: services.ErrInvalidViewer.Error()}})
	case errors.Is(err, services.ErrCircleNotDeployed):
		return errorJSON(c, fiber.StatusNotFound, "No circle contract at this group's address")
	case errors.Is(err, services.ErrCircleUnavailable):
		return errorJSON(c, fiber.StatusServiceUnavailable, "Circle data is unavailable, try again shortly")
	default:
		logger.Error("%s: %v", op, err)
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
	}
}

// requireSession returns the caller or writes a 401
func requireSession(c *fiber.Ctx) (middleware.Session, error) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		_ = errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
		return middleware.Session{}, errResponded
	}
	return s, nil
}

// uuidParam parses a path parameter or writes a 400
func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Params(name)
	if raw == "" {
		_ = validationError(c, name+" is required", []FieldError{{Field: name, Message: "is required"}})
		return uuid.Nil, errResponded
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		_ = validationError(c, name+" must be a UUID", []FieldError{{Field: name, Message: "must be a valid UUID"}})
		return uuid.Nil, errResponded
	}
	return id, nil
}

// done converts the errResponded sentinel back into a nil handler error
func done(err error) error {
	if errors.Is(err, errResponded) {
		return nil
	}
	return err
}
