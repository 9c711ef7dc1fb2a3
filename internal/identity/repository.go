package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Repository persists user biometric records. Every method reads or writes a
// whole record atomically.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpsertFace(ctx context.Context, e Enrollment, embedding []float64) (User, error)
	UpsertVoice(ctx context.Context, e Enrollment, profile VoiceProfile) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, email, face_embedding, face_registered, voice_data, voice_registered, created_at, updated_at`

// FindByUsername fetches a user by username.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// UpsertFace creates the user or replaces its face embedding.
func (r *PostgresRepository) UpsertFace(ctx context.Context, e Enrollment, embedding []float64) (User, error) {
	now := time.Now().UTC()
	row := r.db.QueryRow(ctx, `INSERT INTO users (id, username, email, face_embedding, face_registered, voice_registered, created_at, updated_at)
        VALUES ($1, $2, $3, $4, true, false, $5, $5)
        ON CONFLICT (username) DO UPDATE
            SET face_embedding = EXCLUDED.face_embedding, face_registered = true, updated_at = EXCLUDED.updated_at
            WHERE users.email = EXCLUDED.email
        RETURNING `+userColumns, uuid.New(), e.Username, e.Email, pgvector.NewVector(toFloat32(embedding)), now)
	user, err := scanUser(row)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrIdentityMismatch
	}
	return user, err
}

// UpsertVoice creates the user or replaces its voice profile.
func (r *PostgresRepository) UpsertVoice(ctx context.Context, e Enrollment, profile VoiceProfile) (User, error) {
	payload, err := json.Marshal(profile)
	if err != nil {
		return User{}, fmt.Errorf("encode voice profile: %w", err)
	}
	now := time.Now().UTC()
	row := r.db.QueryRow(ctx, `INSERT INTO users (id, username, email, face_registered, voice_data, voice_registered, created_at, updated_at)
        VALUES ($1, $2, $3, false, $4, true, $5, $5)
        ON CONFLICT (username) DO UPDATE
            SET voice_data = EXCLUDED.voice_data, voice_registered = true, updated_at = EXCLUDED.updated_at
            WHERE users.email = EXCLUDED.email
        RETURNING `+userColumns, uuid.New(), e.Username, e.Email, payload, now)
	user, err := scanUser(row)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrIdentityMismatch
	}
	return user, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		face      *pgvector.Vector
		voiceData []byte
		user      User
	)
	err := row.Scan(&id, &user.Username, &user.Email, &face, &user.FaceEnrolled, &voiceData, &user.VoiceEnrolled, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	if face != nil {
		user.FaceEmbedding = toFloat64(face.Slice())
	}
	if len(voiceData) > 0 {
		var profile VoiceProfile
		if err := json.Unmarshal(voiceData, &profile); err != nil {
			return User{}, fmt.Errorf("decode voice profile: %w", err)
		}
		user.Voice = &profile
	}
	return user, nil
}

// storedFace returns the embedding as the vector column holds it: single precision.
// Both repositories keep this form so scores do not depend on the backend.
func storedFace(v []float64) []float64 {
	return toFloat64(toFloat32(v))
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
