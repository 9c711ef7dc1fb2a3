// Package history stores the append-only log of authentication attempts.
package history

import (
	"context"
	"time"
)

// Methods recorded in the log.
const (
	MethodFace   = "face"
	MethodVoice  = "voice"
	MethodLogout = "logout"
)

// DefaultLimit is the number of attempts returned when the caller does not ask for a specific amount.
const DefaultLimit = 10

// Attempt is one immutable login history entry.
type Attempt struct {
	ID              int64
	UserID          string
	Method          string
	Success         bool
	SimilarityScore *float64
	BiometricScore  *float64
	IPAddress       string
	CreatedAt       time.Time
}

// Repository appends and reads attempts. Entries are never updated or removed.
type Repository interface {
	Append(ctx context.Context, attempt Attempt) (Attempt, error)
	Recent(ctx context.Context, userID string, limit int) ([]Attempt, error)
}
