package routes

import (
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/biogate/biogate/internal/account"
    "github.com/biogate/biogate/internal/auth"
    "github.com/biogate/biogate/internal/biometric"
    "github.com/biogate/biogate/internal/config"
    "github.com/biogate/biogate/internal/decision"
    "github.com/biogate/biogate/internal/extractor"
    "github.com/biogate/biogate/internal/history"
    "github.com/biogate/biogate/internal/identity"
    "github.com/biogate/biogate/internal/middleware"
    "github.com/biogate/biogate/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Logger *slog.Logger
    // Extractor overrides the HTTP embedding client, used by tests.
    Extractor biometric.Extractor
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
    // Enforce DB/Redis presence outside of dev, even though config also checks.
    if !d.Cfg.IsDev() {
        if d.DB == nil {
            return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
        if d.Cache == nil {
            return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
    }

    app.Use(recover.New())
    app.Use(middleware.RequestID())
    app.Use(middleware.Audit(d.Logger))

    RegisterHealthRoutes(app, d)

    var (
        users    identity.Repository
        attempts history.Repository
        revoker  auth.Revoker
    )
    if d.DB != nil {
        users = identity.NewPostgresRepository(d.DB)
        attempts = history.NewPostgresLog(d.DB)
    } else {
        users = identity.NewMemoryRepository()
        attempts = history.NewInMemory()
    }
    if d.Cache != nil {
        revoker = auth.NewRedisRevoker(d.Cache)
    } else {
        revoker = auth.NewMemoryRevoker()
    }

    issuer, err := auth.NewIssuer(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
    if err != nil {
        return fmt.Errorf("token issuer: %w", err)
    }
    authSvc := auth.NewService(issuer, revoker)

    ext := d.Extractor
    if ext == nil {
        ext = extractor.NewClient(d.Cfg.ExtractorURL, d.Cfg.ExtractTimeout)
    }

    bioSvc, err := biometric.NewService(biometric.Deps{
        Users:     users,
        History:   attempts,
        Extractor: ext,
        Tokens:    authSvc,
        Notifier:  notification.NewLoggerNotifier(d.Logger),
        Logger:    d.Logger,
    }, biometric.Config{
        UploadDir:      d.Cfg.UploadDir,
        MaxSampleBytes: d.Cfg.MaxUploadBytes,
        ExtractTimeout: d.Cfg.ExtractTimeout,
        Policy:         decision.DefaultPolicy(),
    })
    if err != nil {
        return err
    }
    accountSvc := account.NewService(users, attempts, authSvc, d.Cfg.HistoryLimit, d.Logger)

    api := app.Group("/api")
    api.Get("/ping", func(c *fiber.Ctx) error {
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "status":     "ok",
            "request_id": middleware.RequestIDFrom(c),
            "timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
        })
    })

    // Public routes
    enrollGuard := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
    verifyLimit := middleware.VerifyRateLimit(d.Cache, d.Cfg.VerifyPerMinute)
    RegisterBiometricRoutes(api, biometric.NewHandler(bioSvc), enrollGuard, verifyLimit)

    // Protected routes
    protected := api.Group("", middleware.JWTAuth(authSvc))
    RegisterAccountRoutes(protected, account.NewHandler(accountSvc))

    return nil
}
