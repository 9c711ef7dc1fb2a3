package history

import (
	"context"
	"sync"
	"time"
)

type inMemoryLog struct {
	mu      sync.RWMutex
	nextID  int64
	entries []Attempt
}

// NewInMemory creates a concurrency-safe in-memory log useful for development and tests.
func NewInMemory() Repository {
	return &inMemoryLog{}
}

func (l *inMemoryLog) Append(_ context.Context, attempt Attempt) (Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	attempt.ID = l.nextID
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	l.entries = append(l.entries, attempt)
	return attempt, nil
}

func (l *inMemoryLog) Recent(_ context.Context, userID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Attempt, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].UserID == userID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}
