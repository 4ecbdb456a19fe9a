package moderation

import (
	"context"
	"sync"
)

// Locker grants a per-job lease. ok is false when another run holds the job.
type Locker interface {
	TryLock(ctx context.Context, jobID string) (release func(), ok bool, err error)
}

// MemoryLocker serializes runs of the same job inside one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]struct{}{}}
}

func (m *MemoryLocker) TryLock(_ context.Context, jobID string) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.held[jobID]; found {
		return nil, false, nil
	}
	m.held[jobID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.held, jobID)
		})
	}, true, nil
}
