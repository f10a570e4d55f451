// Package cache is the content-addressed response cache. Entries are keyed
// by a fingerprint of (model, normalized prompt, sampling params) so
// equivalent requests share one paid upstream call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrMiss means the fingerprint has no live entry.
	ErrMiss = errors.New("cache miss")
	// ErrStoreUnavailable means the cache store could not be reached. The
	// gateway treats it as a miss; a miss is recoverable, a wrong answer
	// is not.
	ErrStoreUnavailable = errors.New("cache store unavailable")
)

const keyPrefix = "cache:response:"

// Payload is everything needed to serve a hit without the provider.
type Payload struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (p *Payload) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (p *Payload) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, p)
}

type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the live payload for a fingerprint, ErrMiss when there is
// none, or ErrStoreUnavailable when the store cannot answer.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*Payload, error) {
	var p Payload
	err := c.rdb.Get(ctx, keyPrefix+fingerprint).Scan(&p)
	if err == nil {
		return &p, nil
	}
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Set stores a payload under its fingerprint. Best effort: a failed write
// costs a future cache miss, so it is logged and swallowed.
func (c *Cache) Set(ctx context.Context, fingerprint string, p *Payload) {
	if err := c.rdb.Set(ctx, keyPrefix+fingerprint, p, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}

// InvalidatePattern deletes entries whose fingerprint matches a glob
// pattern and returns how many were removed. Used by operators and
// data-changing events.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, keyPrefix+pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
