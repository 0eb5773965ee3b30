package adapter

import (
	"context"
	"sync"
)

// MemoryAttemptGuard 在单实例内限制每个会话只有一次进行中的尝试。
type MemoryAttemptGuard struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryAttemptGuard() *MemoryAttemptGuard {
	return &MemoryAttemptGuard{owners: make(map[string]string)}
}

func (g *MemoryAttemptGuard) Acquire(_ context.Context, sessionID, attemptID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.owners[sessionID]; busy {
		return false, nil
	}
	g.owners[sessionID] = attemptID
	return true, nil
}

func (g *MemoryAttemptGuard) Release(_ context.Context, sessionID, attemptID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owners[sessionID] == attemptID {
		delete(g.owners, sessionID)
	}
	return nil
}
