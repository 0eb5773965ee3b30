package adapter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "paysheet:checkout:session:"

// releaseScript 只在值仍为本次尝试 id 时删除，避免释放别人的名额。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisAttemptGuard 用 SET NX 在多个实例之间限制每个会话一次进行中的尝试。
// TTL 兜底进程崩溃后遗留的名额。
type RedisAttemptGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisAttemptGuard(client redis.UniversalClient, ttl time.Duration) *RedisAttemptGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisAttemptGuard{client: client, ttl: ttl}
}

func (g *RedisAttemptGuard) Acquire(ctx context.Context, sessionID, attemptID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKeyPrefix+sessionID, attemptID, g.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire checkout session %s", sessionID)
	}
	return ok, nil
}

func (g *RedisAttemptGuard) Release(ctx context.Context, sessionID, attemptID string) error {
	if err := releaseScript.Run(ctx, g.client, []string{guardKeyPrefix + sessionID}, attemptID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrapf(err, "failed to release checkout session %s", sessionID)
	}
	return nil
}
