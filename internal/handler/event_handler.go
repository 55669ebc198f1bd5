package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/middleware"
	"agenda-eventos/internal/service/cascade"
)

type EventHandler struct {
	cascadeService cascade.Service
}

func NewEventHandler(cascadeService cascade.Service) *EventHandler {
	return &EventHandler{cascadeService: cascadeService}
}

type eventActionInput struct {
	Reason string `json:"reason"`
}

func (h *EventHandler) Cancel(c *fiber.Ctx) error {
	return h.run(c, h.cascadeService.Cancel)
}

func (h *EventHandler) Delete(c *fiber.Ctx) error {
	return h.run(c, h.cascadeService.Delete)
}

func (h *EventHandler) run(c *fiber.Ctx, op func(ctx context.Context, actor *domain.User, eventID uuid.UUID, reason string) (*cascade.Result, error)) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return middleware.Unauthorized("User not authenticated")
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.BadRequest("Invalid event ID")
	}

	var input eventActionInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return middleware.BadRequest("Invalid request body")
		}
	}

	result, err := op(c.UserContext(), user, eventID, input.Reason)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
