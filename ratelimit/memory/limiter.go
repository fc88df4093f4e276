// Package memorylimiter implements a fixed-window rate limiter in process
// memory. Suitable for single-instance deployments; multi-instance hosts
// should use the Redis-backed limiter so the window is shared.
package memorylimiter

import (
	"sync"
	"time"

	"github.com/fOmar24/Medical-Research-Data-Sharing/ratelimit"
)

type window struct {
	start time.Time
	count int
}

type Limiter struct {
	mu      sync.Mutex
	limits  ratelimit.Limits
	windows map[string]*window
}

func New(limits ratelimit.Limits) *Limiter {
	return &Limiter{limits: limits, windows: make(map[string]*window)}
}

// AllowNamed counts one event against key in the named bucket. Buckets with
// no configured limit always allow.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	lim, ok := l.limits[bucket]
	if !ok || lim.Max <= 0 {
		return true, nil
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= lim.Window {
		l.windows[key] = &window{start: now, count: 1}
		return true, nil
	}
	if w.count >= lim.Max {
		return false, nil
	}
	w.count++
	return true, nil
}
