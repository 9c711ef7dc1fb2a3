package middleware

import (
    "net/http"
    "strings"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/redis/go-redis/v9"
)

const verifyLimitPrefix = "rl:verify:"

// VerifyRateLimit limits biometric verification attempts per username, or per IP
// when no username is supplied. Without Redis it is a no-op.
func VerifyRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
    if maxPerMin <= 0 {
        maxPerMin = 5
    }
    return func(c *fiber.Ctx) error {
        if cache == nil {
            return c.Next()
        }
        // Usernames are case-sensitive identities, so the bucket uses the exact value.
        key := verifyLimitPrefix + "ip:" + c.IP()
        if username := strings.TrimSpace(c.FormValue("username")); username != "" {
            key = verifyLimitPrefix + "user:" + username
        }
        cnt, err := cache.Incr(c.UserContext(), key).Result()
        if err != nil {
            return c.Next() // fail-open on cache errors
        }
        if cnt == 1 {
            cache.Expire(c.UserContext(), key, time.Minute)
        }
        if cnt > int64(maxPerMin) {
            return fiber.NewError(http.StatusTooManyRequests, "too many verification attempts, try again later")
        }
        return c.Next()
    }
}
