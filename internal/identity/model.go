package identity

import (
	"errors"
	"time"

	"github.com/biogate/biogate/internal/acoustic"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrIdentityMismatch is returned when an enrollment names an existing
	// username with a different email.
	ErrIdentityMismatch = errors.New("username is registered with a different email")
)

// User is the biometric record of a registered user.
type User struct {
	ID            string
	Username      string
	Email         string
	FaceEmbedding []float64
	FaceEnrolled  bool
	Voice         *VoiceProfile
	VoiceEnrolled bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VoiceProfile is the enrolled voice reference.
type VoiceProfile struct {
	Embedding []float64       `json:"embedding"`
	Features  acoustic.Bundle `json:"voice_features"`
}

// Enrollment identifies who is enrolling.
type Enrollment struct {
	Username string
	Email    string
}

// HasFace reports whether a usable face reference is stored.
func (u User) HasFace() bool {
	return u.FaceEnrolled && len(u.FaceEmbedding) > 0
}

// HasVoice reports whether a usable voice reference is stored.
func (u User) HasVoice() bool {
	return u.VoiceEnrolled && u.Voice != nil && len(u.Voice.Embedding) > 0
}
