package calculator

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultValidatorTTL   = 30 * time.Minute
	validatorCleanupEvery = time.Hour
)

// validatorCache keeps compiled validators keyed by calculator id and version,
// so a schema change (version bump or reload) never reuses a stale validator.
type validatorCache struct {
	cache *gocache.Cache
}

func newValidatorCache(ttl time.Duration) *validatorCache {
	if ttl <= 0 {
		ttl = DefaultValidatorTTL
	}
	return &validatorCache{cache: gocache.New(ttl, validatorCleanupEvery)}
}

func validatorKey(id string, version int) string {
	return id + "@" + strconv.Itoa(version)
}

func (c *validatorCache) get(d Descriptor) *validator {
	key := validatorKey(d.ID, d.Version)
	if v, ok := c.cache.Get(key); ok {
		if compiled, ok := v.(*validator); ok {
			return compiled
		}
	}
	compiled := compile(d.InputSchema)
	c.cache.Set(key, compiled, gocache.DefaultExpiration)
	return compiled
}

func (c *validatorCache) invalidate(id string, version int) {
	c.cache.Delete(validatorKey(id, version))
}

func (c *validatorCache) len() int {
	return c.cache.ItemCount()
}
