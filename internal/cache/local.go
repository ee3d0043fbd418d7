package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prescripto/booking/internal/domain"
)

type localLock struct {
	token string
	until time.Time
}

// LocalLocker is the single-process stand-in for the Redis slot lock.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLock
	clock func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLock), clock: time.Now}
}

func (l *LocalLocker) AcquireSlotLock(_ context.Context, key domain.SlotKey, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	k := key.String()
	if lock, ok := l.held[k]; ok && now.Before(lock.until) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[k] = localLock{token: token, until: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLocker) ReleaseSlotLock(_ context.Context, key domain.SlotKey, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key.String()
	if lock, ok := l.held[k]; ok && lock.token == token {
		delete(l.held, k)
	}
	return nil
}
