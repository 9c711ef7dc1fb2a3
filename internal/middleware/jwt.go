package middleware

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/gofiber/fiber/v2"

    "github.com/biogate/biogate/internal/auth"
)

const (
    localUserID = "user_id"
    localClaims = "claims"
)

// Authenticator validates a bearer credential.
type Authenticator interface {
    Authenticate(ctx context.Context, token string) (auth.Claims, error)
}

// JWTAuth returns a middleware that validates bearer tokens and rejects revoked ones.
func JWTAuth(authn Authenticator) fiber.Handler {
    return func(c *fiber.Ctx) error {
        authz := c.Get(fiber.HeaderAuthorization)
        if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
            return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
        }
        tokenStr := strings.TrimSpace(authz[len("Bearer "):])
        claims, err := authn.Authenticate(c.UserContext(), tokenStr)
        if err != nil {
            if errors.Is(err, auth.ErrInvalidToken) {
                return fiber.NewError(http.StatusUnauthorized, "invalid token")
            }
            return fiber.NewError(http.StatusInternalServerError, "token check failed")
        }

        c.Locals(localUserID, claims.UserID())
        c.Locals(localClaims, claims)
        return c.Next()
    }
}

// UserID returns the authenticated user set by JWTAuth.
func UserID(c *fiber.Ctx) string {
    id, _ := c.Locals(localUserID).(string)
    return id
}

// ClaimsFrom returns the verified claims set by JWTAuth.
func ClaimsFrom(c *fiber.Ctx) (auth.Claims, bool) {
    claims, ok := c.Locals(localClaims).(auth.Claims)
    return claims, ok
}
