package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/biogate/biogate/internal/biometric"
)

// RegisterBiometricRoutes wires enrollment and verification endpoints.
func RegisterBiometricRoutes(r fiber.Router, h *biometric.Handler, enrollGuard, verifyLimit fiber.Handler) {
    r.Post("/register", enrollGuard, h.RegisterFace)
    r.Post("/login", verifyLimit, h.LoginFace)

    voice := r.Group("/voice")
    voice.Post("/register", enrollGuard, h.RegisterVoice)
    voice.Post("/login", verifyLimit, h.LoginVoice)
}
