package port

import "context"

// AttemptGuard 保证同一会话同一时刻最多只有一次进行中的结算尝试。
type AttemptGuard interface {
	// Acquire 为会话占用尝试名额，名额已被占用时返回 false。
	Acquire(ctx context.Context, sessionID, attemptID string) (bool, error)

	// Release 释放名额。只有持有者能释放。
	Release(ctx context.Context, sessionID, attemptID string) error
}
