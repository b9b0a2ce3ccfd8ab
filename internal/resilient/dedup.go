package resilient

import (
	"sync"
	"time"

	"procurement/internal/apperr"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultDedupCapacity = 1024
	defaultDedupTTL      = time.Hour
)

// DedupCache tracks, per retry key, how many retries were spent and which
// failure classes were already shown to the user. One cache is shared by
// every call made on behalf of a session. Keys that never succeed age out
// after the TTL or when the cache is full.
type DedupCache struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *dedupEntry]
}

type dedupEntry struct {
	attempts int
	notified map[apperr.Kind]bool
}

type dedupConfig struct {
	capacity int
	ttl      time.Duration
}

type DedupOption func(*dedupConfig)

func WithCapacity(n int) DedupOption {
	return func(c *dedupConfig) { c.capacity = n }
}

func WithTTL(ttl time.Duration) DedupOption {
	return func(c *dedupConfig) { c.ttl = ttl }
}

func NewDedupCache(opts ...DedupOption) *DedupCache {
	cfg := dedupConfig{capacity: defaultDedupCapacity, ttl: defaultDedupTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &DedupCache{entries: expirable.NewLRU[string, *dedupEntry](cfg.capacity, nil, cfg.ttl)}
}

func (d *DedupCache) entry(key string) *dedupEntry {
	if e, ok := d.entries.Get(key); ok {
		return e
	}
	e := &dedupEntry{notified: make(map[apperr.Kind]bool)}
	d.entries.Add(key, e)
	return e
}

// Attempts returns the retries spent on key since its last success.
func (d *DedupCache) Attempts(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries.Peek(key); ok {
		return e.attempts
	}
	return 0
}

// nextAttempt reserves one retry for key. It returns the number of retries
// spent before this one, or false once max is reached.
func (d *DedupCache) nextAttempt(key string, max int) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.entry(key)
	if e.attempts >= max {
		return e.attempts, false
	}
	spent := e.attempts
	e.attempts++
	return spent, true
}

// MarkNotified records that kind was reported for key. It returns true only
// for the first report since the last success.
func (d *DedupCache) MarkNotified(key string, kind apperr.Kind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.entry(key)
	if e.notified[kind] {
		return false
	}
	e.notified[kind] = true
	return true
}

func (d *DedupCache) Notified(key string, kind apperr.Kind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries.Peek(key); ok {
		return e.notified[kind]
	}
	return false
}

// Reset forgets attempts and notifications for key.
func (d *DedupCache) Reset(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries.Remove(key)
}

// Len is the number of keys currently tracked.
func (d *DedupCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries.Len()
}
