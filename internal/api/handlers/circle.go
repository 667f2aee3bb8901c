/**
 * @description
 * Circle API Handlers.
 * Serves the derived on-chain circle view, participant states and the live update stream.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 *
 * @notes
 * - The view is only returned once every contract read resolved; otherwise 503.
 */

package handlers

import (
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/savings-circle/backend/internal/services"
)

const streamKeepAlive = 25 * time.Second

type CircleHandler struct {
	Circles *services.CircleService
	Hub     *services.CircleEventHub
}

func NewCircleHandler(circles *services.CircleService, hub *services.CircleEventHub) *CircleHandler {
	return &CircleHandler{Circles: circles, Hub: hub}
}

// GetCircle returns the derived circle view, optionally for a viewer wallet
// GET /api/groups/:groupId/circle?viewer=0x...
func (h *CircleHandler) GetCircle(c *fiber.Ctx) error {
	groupID, err := uuidParam(c, "groupId")
	if err != nil {
		return done(err)
	}

	view, err := h.Circles.GetView(c.UserContext(), groupID, c.Query("viewer"))
	if err != nil {
		return respondServiceError(c, "GetCircle", err)
	}
	return c.JSON(fiber.Map{"circle": view})
}

// GetParticipantStatuses returns every participant's lifecycle state
// GET /api/groups/:groupId/participants/status
func (h *CircleHandler) GetParticipantStatuses(c *fiber.Ctx) error {
	groupID, err := uuidParam(c, "groupId")
	if err != nil {
		return done(err)
	}

	statuses, err := h.Circles.ParticipantStatuses(c.UserContext(), groupID)
	if err != nil {
		return respondServiceError(c, "GetParticipantStatuses", err)
	}
	return c.JSON(fiber.Map{"statuses": statuses})
}

// StreamCircleUpdates streams refreshed circle views over SSE
// GET /api/circles/stream
func (h *CircleHandler) StreamCircleUpdates(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	updates, unsubscribe := h.Hub.Subscribe()
	requestDone := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		// Opening comment so clients see the stream immediately
		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-requestDone:
				return
			case <-keepAlive.C:
				fmt.Fprint(w, ": ping\n\n")
			case msg, ok := <-updates:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: circle\ndata: %s\n\n", msg)
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})

	return nil
}
