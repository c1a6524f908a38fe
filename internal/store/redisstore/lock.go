package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a chat.Locker shared by every server instance. The TTL bounds how
// long a crashed holder can block a session.
type Locker struct {
	store *Store
	ttl   time.Duration
	retry time.Duration
	log   *zap.Logger
}

func NewLocker(s *Store, ttl time.Duration, log *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locker{store: s, ttl: ttl, retry: 50 * time.Millisecond, log: log}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.store.key("lock", key)
	token := uuid.NewString()

	for {
		ok, err := l.store.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// the caller's context may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.store.rdb, []string{k}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			// the TTL frees the key eventually
			l.log.Warn("redis: release lock failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
