package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLocked means another holder owns the lock.
var ErrLocked = errors.New("lock is held by another run")

// Release gives a lock back. Releasing twice is a no-op.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Release, error)
}

// LocalLocker guards runs inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire ignores ttl: the lock lives until released.
func (l *LocalLocker) Acquire(_ context.Context, name string, _ time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return nil, ErrLocked
	}
	l.held[name] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
