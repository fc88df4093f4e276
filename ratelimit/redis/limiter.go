// Package redislimiter implements a fixed-window rate limiter on Redis, so
// the window is shared across server instances.
package redislimiter

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/fOmar24/Medical-Research-Data-Sharing/ratelimit"
	redisstore "github.com/fOmar24/Medical-Research-Data-Sharing/storage/redis"
)

type Limiter struct {
	kv     *redisstore.KV
	limits ratelimit.Limits
}

func New(rdb *redis.Client, limits ratelimit.Limits) *Limiter {
	return &Limiter{kv: redisstore.NewKV(rdb), limits: limits}
}

// AllowNamed counts one event against key in the named bucket. Errors reaching
// Redis are returned so the caller can decide to fail open.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	lim, ok := l.limits[bucket]
	if !ok || lim.Max <= 0 {
		return true, nil
	}
	n, err := l.kv.Incr(context.Background(), key, lim.Window)
	if err != nil {
		return false, err
	}
	return n <= int64(lim.Max), nil
}
