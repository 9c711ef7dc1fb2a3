// Package notification delivers account security notices.
package notification

import (
    "context"
    "fmt"
    "log/slog"
    "time"
)

const (
    // KindSignIn is sent after a successful biometric verification.
    KindSignIn = "sign_in"
)

// Message describes a notification payload.
type Message struct {
    Kind        string
    UserID      string
    Destination string
    Body        string
    SentAt      time.Time
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// SignIn builds the notice for an accepted verification.
func SignIn(userID, email, username, method, ip string, at time.Time) Message {
    body := fmt.Sprintf("New sign-in to %s using %s verification", username, method)
    if ip != "" {
        body += " from " + ip
    }
    return Message{
        Kind:        KindSignIn,
        UserID:      userID,
        Destination: email,
        Body:        body,
        SentAt:      at.UTC(),
    }
}

// LoggerNotifier writes notifications to the structured logger in place of a mail relay.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    n.logger.InfoContext(ctx, "notification",
        slog.String("kind", message.Kind),
        slog.String("user_id", message.UserID),
        slog.String("destination", message.Destination),
        slog.String("body", message.Body),
        slog.Time("sent_at", message.SentAt),
    )
    return nil
}
