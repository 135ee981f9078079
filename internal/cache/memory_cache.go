package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"pinksync/internal/models"
)

var (
	_ FingerprintCache = (*MemoryCache)(nil)
	_ InFlightRegistry = (*MemoryInFlight)(nil)
)

// MemoryCache is a process-local FingerprintCache. A zero ttl keeps entries
// forever.
type MemoryCache struct {
	items   *ttlcache.Cache[string, models.Artifact]
	expires bool
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	items := ttlcache.New(
		ttlcache.WithTTL[string, models.Artifact](ttl),
	)
	c := &MemoryCache{items: items, expires: ttl != ttlcache.NoTTL}
	if c.expires {
		go items.Start()
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*models.Artifact, bool, error) {
	item := c.items.Get(fingerprint)
	if item == nil {
		return nil, false, nil
	}
	artifact := item.Value()
	return &artifact, true, nil
}

func (c *MemoryCache) Put(_ context.Context, fingerprint string, artifact models.Artifact) error {
	c.items.Set(fingerprint, artifact, ttlcache.DefaultTTL)
	return nil
}

// Close stops the expiration loop, if one was started.
func (c *MemoryCache) Close() {
	if c.expires {
		c.items.Stop()
	}
}

// MemoryInFlight is a process-local InFlightRegistry. Slots expire after ttl
// so a crashed worker cannot pin a fingerprint forever.
type MemoryInFlight struct {
	mu    sync.Mutex
	slots *ttlcache.Cache[string, string]
}

func NewMemoryInFlight(ttl time.Duration) *MemoryInFlight {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	return &MemoryInFlight{
		slots: ttlcache.New(
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

func (r *MemoryInFlight) Acquire(_ context.Context, fingerprint, jobID string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item := r.slots.Get(fingerprint); item != nil {
		return item.Value(), item.Value() == jobID, nil
	}
	r.slots.Set(fingerprint, jobID, ttlcache.DefaultTTL)
	return jobID, true, nil
}

func (r *MemoryInFlight) Release(_ context.Context, fingerprint, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item := r.slots.Get(fingerprint); item != nil && item.Value() == jobID {
		r.slots.Delete(fingerprint)
	}
	return nil
}
