package implementation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/memory"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockRetryInterval = 100 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisThreadLocker is a lease per key shared by every API and worker process.
// The lease expires after ttl so a crashed holder cannot block a key forever.
type RedisThreadLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var (
	_ graph.ThreadLocker = (*RedisThreadLocker)(nil)
	_ memory.Locker      = (*RedisThreadLocker)(nil)
)

func NewRedisThreadLocker(client *redis.Client, ttl time.Duration) *RedisThreadLocker {
	return &RedisThreadLocker{client: client, prefix: "thread_lock:", ttl: ttl}
}

// NewRedisMemoryLocker leases memory documents during a read-merge-write.
func NewRedisMemoryLocker(client *redis.Client, ttl time.Duration) *RedisThreadLocker {
	return &RedisThreadLocker{client: client, prefix: "memory_lock:", ttl: ttl}
}

// Acquire polls until the lease is free or ctx ends.
func (l *RedisThreadLocker) Acquire(ctx context.Context, threadID string) (func(), error) {
	key := l.prefix + threadID
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire thread lease: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", graph.ErrThreadBusy, threadID)
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The turn context may already be cancelled; the release must still run.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
		})
	}, nil
}
