package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLog persists attempts in the login_history table.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog constructs a Postgres-backed login history.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append inserts an attempt and returns it with its identifier.
func (l *PostgresLog) Append(ctx context.Context, attempt Attempt) (Attempt, error) {
	userID, err := uuid.Parse(attempt.UserID)
	if err != nil {
		return Attempt{}, fmt.Errorf("parse user id: %w", err)
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	var ip *string
	if attempt.IPAddress != "" {
		ip = &attempt.IPAddress
	}
	err = l.db.QueryRow(ctx, `INSERT INTO login_history (user_id, auth_method, success, similarity_score, biometric_score, ip_address, timestamp)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		userID, attempt.Method, attempt.Success, attempt.SimilarityScore, attempt.BiometricScore, ip, attempt.CreatedAt).Scan(&attempt.ID)
	if err != nil {
		return Attempt{}, err
	}
	return attempt, nil
}

// Recent returns the latest attempts for the user, newest first.
func (l *PostgresLog) Recent(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	rows, err := l.db.Query(ctx, `SELECT id, auth_method, success, similarity_score, biometric_score, COALESCE(ip_address, ''), timestamp
        FROM login_history WHERE user_id = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`, uid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Attempt, 0, limit)
	for rows.Next() {
		a := Attempt{UserID: userID}
		if err := rows.Scan(&a.ID, &a.Method, &a.Success, &a.SimilarityScore, &a.BiometricScore, &a.IPAddress, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
