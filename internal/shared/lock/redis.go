package lock

import (
	"context"
	"time"

	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockTTL       = 10 * time.Second
	retryInterval = 25 * time.Millisecond
)

// release only deletes the key when it still carries our token, so an
// expired lock taken over by another holder is never removed.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds locks as volatile Redis keys, serializing writers
// across instances.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := "lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, lockTTL).Result()
		if err != nil {
			return nil, apperr.Unavailable("acquire lock "+key, err)
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.Background(), l.client, []string{redisKey}, token).Err()
			}, nil
		}

		select {
		case <-time.After(retryInterval):
		case <-ctx.Done():
			return nil, apperr.Unavailable("acquire lock "+key, ctx.Err())
		}
	}
}
