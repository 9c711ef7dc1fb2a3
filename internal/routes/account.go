package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/biogate/biogate/internal/account"
)

// RegisterAccountRoutes wires the authenticated account endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
    r.Get("/user", h.Profile)
    r.Get("/login-history", h.History)
    r.Post("/logout", h.Logout)
}
