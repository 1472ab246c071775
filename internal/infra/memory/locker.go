package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/ports/repository"
)

var _ repository.Locker = (*Locker)(nil)

// Locker is a process-local Locker with the same TTL semantics as the Redis one.
type Locker struct {
	mu    sync.Mutex
	held  map[string]heldLock
	clock func() time.Time
}

type heldLock struct {
	token   string
	expires time.Time
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]heldLock), clock: time.Now}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return "", domain.ErrLocked
	}
	token := uuid.NewString()
	l.held[key] = heldLock{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
	return nil
}
