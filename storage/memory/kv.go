package memorystore

import (
	"context"
	"sync"
	"time"
)

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// KV is an in-process key-value store with per-key TTLs. It backs the chain
// verification cache when no Redis is configured; entries vanish on restart,
// which is fine because cached transaction lookups can always be re-fetched
// from the fullnode.
type KV struct {
	mu      sync.Mutex
	entries map[string]kvEntry
}

func NewKV() *KV {
	return &KV{entries: make(map[string]kvEntry)}
}

// Get returns the value for key, or ok=false when absent or expired. Expired
// entries are dropped on read; there is no background sweeper.
func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(k.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores a copy of value under key. A non-positive ttl means no expiry.
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	k.entries[key] = kvEntry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	return nil
}

func (k *KV) Del(ctx context.Context, key string) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.entries, key)
	return nil
}
