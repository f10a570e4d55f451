package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// incrScript bumps the window counter and arms its expiry in one atomic
// step so two instances can never observe a half-initialized window.
const incrScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

type RedisStore struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		script: redis.NewScript(incrScript),
	}
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.script.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
}
