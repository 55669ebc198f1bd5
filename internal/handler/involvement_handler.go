package handler

import (
	"github.com/gofiber/fiber/v2"

	"agenda-eventos/internal/middleware"
	"agenda-eventos/internal/service/involvement"
)

type InvolvementHandler struct {
	involvementService involvement.Service
}

func NewInvolvementHandler(involvementService involvement.Service) *InvolvementHandler {
	return &InvolvementHandler{involvementService: involvementService}
}

func (h *InvolvementHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	result, err := h.involvementService.Aggregate(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
