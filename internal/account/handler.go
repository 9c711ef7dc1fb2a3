package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/biogate/biogate/internal/identity"
	"github.com/biogate/biogate/internal/middleware"
)

// Handler exposes account endpoints over HTTP. Routes are expected behind middleware.JWTAuth.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// Profile returns the authenticated user's profile.
func (h *Handler) Profile(c *fiber.Ctx) error {
	profile, err := h.service.Profile(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"success": true, "user": profile})
}

// History returns the latest login attempts.
func (h *Handler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"success": true, "history": entries})
}

// Logout revokes the presented token and records the event.
func (h *Handler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing credentials")
	}
	if err := h.service.Logout(c.UserContext(), claims, c.IP()); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Logged out successfully"})
}

func mapError(err error) error {
	if errors.Is(err, identity.ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return err
}
