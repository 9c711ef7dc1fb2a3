// Package account serves the authenticated user's profile, login history and logout.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/biogate/biogate/internal/auth"
	"github.com/biogate/biogate/internal/history"
	"github.com/biogate/biogate/internal/identity"
	"github.com/biogate/biogate/internal/logging"
)

// Revoker invalidates a presented credential.
type Revoker interface {
	Revoke(ctx context.Context, claims auth.Claims) error
}

// Profile is the public view of a user. Embeddings are never exposed.
type Profile struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	FaceRegistered  bool        `json:"face_registered"`
	VoiceRegistered bool        `json:"voice_registered"`
	AuthMethods     AuthMethods `json:"auth_methods"`
	CreatedAt       time.Time   `json:"created_at"`
}

// AuthMethods lists which modalities the user can verify with.
type AuthMethods struct {
	Face  bool `json:"face"`
	Voice bool `json:"voice"`
}

// Entry is the public view of a login history record.
type Entry struct {
	Method          string    `json:"auth_method"`
	Success         bool      `json:"success"`
	SimilarityScore *float64  `json:"similarity_score"`
	BiometricScore  *float64  `json:"biometric_score,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Service implements the account operations.
type Service struct {
	users   identity.Repository
	history history.Repository
	revoker Revoker
	limit   int
	logger  *slog.Logger
}

// NewService wires the account service. A non-positive limit uses history.DefaultLimit.
func NewService(users identity.Repository, log history.Repository, revoker Revoker, limit int, logger *slog.Logger) *Service {
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{users: users, history: log, revoker: revoker, limit: limit, logger: logger}
}

// Profile returns the user's public profile.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		FaceRegistered:  user.FaceEnrolled,
		VoiceRegistered: user.VoiceEnrolled,
		AuthMethods:     AuthMethods{Face: user.HasFace(), Voice: user.HasVoice()},
		CreatedAt:       user.CreatedAt,
	}, nil
}

// History returns the latest attempts of the user, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Entry, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	attempts, err := s.history.Recent(ctx, userID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("read login history: %w", err)
	}
	out := make([]Entry, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, Entry{
			Method:          a.Method,
			Success:         a.Success,
			SimilarityScore: a.SimilarityScore,
			BiometricScore:  a.BiometricScore,
			IPAddress:       a.IPAddress,
			Timestamp:       a.CreatedAt,
		})
	}
	return out, nil
}

// Logout records a logout entry and revokes the presented credential.
func (s *Service) Logout(ctx context.Context, claims auth.Claims, ip string) error {
	userID := claims.UserID()
	if userID == "" {
		return errors.New("logout: missing subject")
	}
	if _, err := s.history.Append(ctx, history.Attempt{
		UserID:    userID,
		Method:    history.MethodLogout,
		Success:   true,
		IPAddress: ip,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("record logout: %w", err)
	}
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, claims); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}
	s.logger.Info("account.logout", slog.String("user_id", userID))
	return nil
}
