package identity

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an in-memory user store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.ID == id {
			return clone(user), nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) UpsertFace(_ context.Context, e Enrollment, embedding []float64) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, err := r.prepare(e)
	if err != nil {
		return User{}, err
	}
	user.FaceEmbedding = storedFace(embedding)
	user.FaceEnrolled = true
	r.users[e.Username] = user
	return clone(user), nil
}

func (r *memoryRepository) UpsertVoice(_ context.Context, e Enrollment, profile VoiceProfile) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, err := r.prepare(e)
	if err != nil {
		return User{}, err
	}
	p := cloneProfile(profile)
	user.Voice = &p
	user.VoiceEnrolled = true
	r.users[e.Username] = user
	return clone(user), nil
}

// prepare returns the record to update; callers hold the write lock.
func (r *memoryRepository) prepare(e Enrollment) (User, error) {
	now := time.Now().UTC()
	user, ok := r.users[e.Username]
	if !ok {
		return User{ID: uuid.NewString(), Username: e.Username, Email: e.Email, CreatedAt: now, UpdatedAt: now}, nil
	}
	if user.Email != e.Email {
		return User{}, ErrIdentityMismatch
	}
	user.UpdatedAt = now
	return user, nil
}

func clone(u User) User {
	u.FaceEmbedding = slices.Clone(u.FaceEmbedding)
	if u.Voice != nil {
		p := cloneProfile(*u.Voice)
		u.Voice = &p
	}
	return u
}

func cloneProfile(p VoiceProfile) VoiceProfile {
	return VoiceProfile{Embedding: slices.Clone(p.Embedding), Features: p.Features.Clone()}
}
