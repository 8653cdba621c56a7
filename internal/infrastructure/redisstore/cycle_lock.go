package redisstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riskibarqy/prediction-settlement/internal/platform/id"
)

// releaseLua deletes the key only while it still holds the caller's token, so
// a holder whose TTL lapsed cannot drop a lock that another worker now owns.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

type CycleLock struct {
	rdb     *redis.Client
	release *redis.Script
	tokens  id.Generator
}

func NewCycleLock(c *Client, tokens id.Generator) *CycleLock {
	if tokens == nil {
		tokens = id.NewUUIDGenerator()
	}
	return &CycleLock{
		rdb:     c.rdb,
		release: redis.NewScript(releaseLua),
		tokens:  tokens,
	}
}

// TryLock sets key with SET NX PX. The returned release func is safe to call
// more than once.
func (l *CycleLock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token, err := l.tokens.NewID()
	if err != nil {
		return nil, false, fmt.Errorf("generate lock token: %w", err)
	}
	lockKey := "lock:" + key

	ok, err := l.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	var releaseErr error
	release := func(releaseCtx context.Context) error {
		once.Do(func() {
			if err := l.release.Run(releaseCtx, l.rdb, []string{lockKey}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("release lock %s: %w", key, err)
			}
		})
		return releaseErr
	}
	return release, true, nil
}
