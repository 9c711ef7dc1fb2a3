// Package biometric enrolls and verifies users by face or voice. It owns the
// temporary sample files, calls the embedding service, applies the decision
// policy and appends one login history entry per decision.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/biogate/biogate/internal/auth"
	"github.com/biogate/biogate/internal/decision"
	"github.com/biogate/biogate/internal/extractor"
	"github.com/biogate/biogate/internal/history"
	"github.com/biogate/biogate/internal/identity"
	"github.com/biogate/biogate/internal/logging"
	"github.com/biogate/biogate/internal/notification"
	"github.com/biogate/biogate/internal/similarity"
)

const (
	defaultUploadDir      = "uploads"
	defaultMaxSampleBytes = 10 << 20
	defaultExtractTimeout = 5 * time.Second
	maxUsernameLength     = 64
)

// Extractor turns a sample file into embeddings.
type Extractor interface {
	ExtractFace(ctx context.Context, path string) (extractor.FaceResult, error)
	ExtractVoice(ctx context.Context, path string) (extractor.VoiceResult, error)
}

// TokenIssuer creates access credentials.
type TokenIssuer interface {
	Issue(userID string) (auth.Token, error)
}

// Deps aggregates the collaborators of the Service.
type Deps struct {
	Users     identity.Repository
	History   history.Repository
	Extractor Extractor
	Tokens    TokenIssuer
	Notifier  notification.Notifier
	Logger    *slog.Logger
}

// Config tunes sample handling and the decision policy.
type Config struct {
	UploadDir      string
	MaxSampleBytes int64
	ExtractTimeout time.Duration
	Policy         decision.Policy
}

// Service is the enrollment/verification orchestrator.
type Service struct {
	users     identity.Repository
	history   history.Repository
	extractor Extractor
	tokens    TokenIssuer
	notifier  notification.Notifier
	logger    *slog.Logger
	cfg       Config
}

// NewService validates dependencies and fills configuration defaults.
func NewService(d Deps, cfg Config) (*Service, error) {
	if d.Users == nil || d.History == nil || d.Extractor == nil || d.Tokens == nil {
		return nil, errors.New("biometric: users, history, extractor and tokens are required")
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = defaultUploadDir
	}
	if cfg.MaxSampleBytes <= 0 {
		cfg.MaxSampleBytes = defaultMaxSampleBytes
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = defaultExtractTimeout
	}
	if cfg.Policy == (decision.Policy{}) {
		cfg.Policy = decision.DefaultPolicy()
	}
	return &Service{
		users:     d.Users,
		history:   d.History,
		extractor: d.Extractor,
		tokens:    d.Tokens,
		notifier:  d.Notifier,
		logger:    d.Logger,
		cfg:       cfg,
	}, nil
}

// EnrollInput carries the identity fields and the uploaded sample.
type EnrollInput struct {
	Username string
	Email    string
	Sample   SampleInput
}

// VerifyInput carries the claimed identity and the uploaded sample.
type VerifyInput struct {
	Username  string
	IPAddress string
	Sample    SampleInput
}

// Scores are the diagnostic values behind a decision.
type Scores struct {
	Combined  *float64 `json:"combined,omitempty"`
	Embedding float64  `json:"embedding"`
	Biometric *float64 `json:"biometric,omitempty"`
}

// EnrollResult describes a completed enrollment.
type EnrollResult struct {
	User    identity.User
	Token   *auth.Token
	Message string
}

// VerifyResult describes a verification decision. Token is set only when accepted.
type VerifyResult struct {
	User     identity.User
	Accepted bool
	Token    *auth.Token
	Scores   Scores
	Attempt  history.Attempt
}

// EnrollFace stores the face embedding of the sample and returns a credential.
func (s *Service) EnrollFace(ctx context.Context, in EnrollInput) (EnrollResult, error) {
	enrollment, err := validateEnrollment(in)
	if err != nil {
		return EnrollResult{}, err
	}

	smp, err := acquireSample(s.cfg.UploadDir, in.Sample, s.cfg.MaxSampleBytes)
	if err != nil {
		return EnrollResult{}, err
	}
	defer s.release(smp)

	res, err := s.extractFace(ctx, smp)
	if err != nil {
		return EnrollResult{}, err
	}

	user, err := s.users.UpsertFace(ctx, enrollment, res.Embedding)
	if err != nil {
		return EnrollResult{}, fmt.Errorf("store face embedding: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return EnrollResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("biometric.enroll completed",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID),
		slog.String("modality", string(decision.Face)),
		slog.Int("embedding_dim", len(res.Embedding)),
	)
	return EnrollResult{User: user, Token: &token, Message: "Face registered successfully"}, nil
}

// EnrollVoice stores the voice embedding and acoustic statistics of the sample.
func (s *Service) EnrollVoice(ctx context.Context, in EnrollInput) (EnrollResult, error) {
	enrollment, err := validateEnrollment(in)
	if err != nil {
		return EnrollResult{}, err
	}

	smp, err := acquireSample(s.cfg.UploadDir, in.Sample, s.cfg.MaxSampleBytes)
	if err != nil {
		return EnrollResult{}, err
	}
	defer s.release(smp)

	res, err := s.extractVoice(ctx, smp)
	if err != nil {
		return EnrollResult{}, err
	}

	user, err := s.users.UpsertVoice(ctx, enrollment, identity.VoiceProfile{Embedding: res.Embedding, Features: res.Features})
	if err != nil {
		return EnrollResult{}, fmt.Errorf("store voice profile: %w", err)
	}

	s.logger.Info("biometric.enroll completed",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID),
		slog.String("modality", string(decision.Voice)),
		slog.Int("embedding_dim", len(res.Embedding)),
	)
	return EnrollResult{User: user, Message: "Voice registered successfully"}, nil
}

// VerifyFace compares the sample against the enrolled face of the claimed user.
func (s *Service) VerifyFace(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	user, err := s.lookup(ctx, in, decision.Face)
	if err != nil {
		return VerifyResult{}, err
	}

	smp, err := acquireSample(s.cfg.UploadDir, in.Sample, s.cfg.MaxSampleBytes)
	if err != nil {
		return VerifyResult{}, err
	}
	defer s.release(smp)

	res, err := s.extractFace(ctx, smp)
	if err != nil {
		return VerifyResult{}, err
	}

	outcome, err := s.cfg.Policy.Face(res.Embedding, user.FaceEmbedding)
	if err != nil {
		return VerifyResult{}, s.compareError(user, decision.Face, err)
	}
	return s.conclude(ctx, user, outcome, in.IPAddress)
}

// VerifyVoice compares the sample against the enrolled voice profile of the claimed user.
func (s *Service) VerifyVoice(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	user, err := s.lookup(ctx, in, decision.Voice)
	if err != nil {
		return VerifyResult{}, err
	}

	smp, err := acquireSample(s.cfg.UploadDir, in.Sample, s.cfg.MaxSampleBytes)
	if err != nil {
		return VerifyResult{}, err
	}
	defer s.release(smp)

	res, err := s.extractVoice(ctx, smp)
	if err != nil {
		return VerifyResult{}, err
	}

	outcome, err := s.cfg.Policy.Voice(res.Embedding, user.Voice.Embedding, res.Features, user.Voice.Features)
	if err != nil {
		return VerifyResult{}, s.compareError(user, decision.Voice, err)
	}
	return s.conclude(ctx, user, outcome, in.IPAddress)
}

func (s *Service) lookup(ctx context.Context, in VerifyInput, modality decision.Modality) (identity.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return identity.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if in.Sample.Data == nil {
		return identity.User{}, fmt.Errorf("%w: sample file is required", ErrInvalidInput)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.User{}, ErrUserNotFound
		}
		return identity.User{}, fmt.Errorf("find user: %w", err)
	}

	enrolled := user.HasFace()
	if modality == decision.Voice {
		enrolled = user.HasVoice()
	}
	if !enrolled {
		return identity.User{}, fmt.Errorf("%w: %s", ErrModalityNotEnrolled, modality)
	}
	return user, nil
}

// conclude records the decision and, when accepted, issues a credential.
func (s *Service) conclude(ctx context.Context, user identity.User, outcome decision.Outcome, ip string) (VerifyResult, error) {
	sim := outcome.Similarity
	attempt, err := s.history.Append(ctx, history.Attempt{
		UserID:          user.ID,
		Method:          string(outcome.Modality),
		Success:         outcome.Accepted,
		SimilarityScore: &sim,
		BiometricScore:  outcome.Biometric,
		IPAddress:       ip,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("record login attempt: %w", err)
	}

	scores := Scores{Embedding: outcome.Similarity, Biometric: outcome.Biometric}
	if outcome.Modality == decision.Voice {
		combined := outcome.Score
		scores.Combined = &combined
	}

	attrs := []any{
		slog.String("username", user.Username),
		slog.String("modality", string(outcome.Modality)),
		slog.Bool("accepted", outcome.Accepted),
		slog.Float64("score", outcome.Score),
		slog.Float64("threshold", outcome.Threshold),
		slog.Float64("embedding_similarity", outcome.Similarity),
	}
	if outcome.Biometric != nil {
		attrs = append(attrs, slog.Float64("biometric_similarity", *outcome.Biometric))
	}
	s.logger.Info("biometric.verify decision", attrs...)

	result := VerifyResult{User: user, Accepted: outcome.Accepted, Scores: scores, Attempt: attempt}
	if !outcome.Accepted {
		return result, nil
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("issue token: %w", err)
	}
	result.Token = &token

	if s.notifier != nil && user.Email != "" {
		msg := notification.SignIn(user.ID, user.Email, user.Username, string(outcome.Modality), ip, attempt.CreatedAt)
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("sign-in notification failed", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}
	return result, nil
}

func (s *Service) compareError(user identity.User, modality decision.Modality, err error) error {
	if errors.Is(err, similarity.ErrLengthMismatch) {
		s.logger.Error("enrolled embedding incompatible with live sample",
			slog.String("username", user.Username),
			slog.String("modality", string(modality)),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrEmbeddingMismatch, err)
	}
	return err
}

func (s *Service) extractFace(ctx context.Context, smp *sample) (extractor.FaceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()
	res, err := s.extractor.ExtractFace(ctx, smp.Path())
	if err != nil {
		s.logger.Warn("face extraction failed", slog.Any("error", err))
		return extractor.FaceResult{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if len(res.Embedding) == 0 {
		return extractor.FaceResult{}, fmt.Errorf("%w: empty face embedding", ErrUpstream)
	}
	return res, nil
}

func (s *Service) extractVoice(ctx context.Context, smp *sample) (extractor.VoiceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()
	res, err := s.extractor.ExtractVoice(ctx, smp.Path())
	if err != nil {
		s.logger.Warn("voice extraction failed", slog.Any("error", err))
		return extractor.VoiceResult{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if len(res.Embedding) == 0 || res.Features.Empty() {
		return extractor.VoiceResult{}, fmt.Errorf("%w: incomplete voice extraction", ErrUpstream)
	}
	return res, nil
}

func (s *Service) release(smp *sample) {
	if err := smp.Release(); err != nil {
		s.logger.Error("release sample file", slog.String("path", smp.Path()), slog.Any("error", err))
	}
}

func validateEnrollment(in EnrollInput) (identity.Enrollment, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" {
		return identity.Enrollment{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(username) > maxUsernameLength {
		return identity.Enrollment{}, fmt.Errorf("%w: username must be at most %d characters", ErrInvalidInput, maxUsernameLength)
	}
	if email == "" {
		return identity.Enrollment{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return identity.Enrollment{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if in.Sample.Data == nil {
		return identity.Enrollment{}, fmt.Errorf("%w: sample file is required", ErrInvalidInput)
	}
	return identity.Enrollment{Username: username, Email: email}, nil
}
