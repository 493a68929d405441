package persistence

import (
	"fmt"
	"sync"

	"github.com/asaidimu/go-folio/core/schema"
	lru "github.com/hashicorp/golang-lru/v2"
)

// validatorCache keeps compiled validators by template id. A validator
// compiled from a template read before an invalidation is never stored, so a
// load racing with UpdateTemplate cannot leave the previous schema cached.
type validatorCache struct {
	cache *lru.Cache[string, *schema.Validator]

	mu sync.Mutex
	// generation is bumped by every invalidation.
	generation uint64
}

func newValidatorCache(size int) (*validatorCache, error) {
	cache, err := lru.New[string, *schema.Validator](size)
	if err != nil {
		return nil, fmt.Errorf("could not initialize validator cache: %w", err)
	}
	return &validatorCache{cache: cache}, nil
}

func (c *validatorCache) Get(templateID string) (*schema.Validator, bool) {
	return c.cache.Get(templateID)
}

// Generation returns a token to pass to Add once the template is loaded.
func (c *validatorCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Add stores v unless an invalidation happened since gen was taken.
func (c *validatorCache) Add(templateID string, v *schema.Validator, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.cache.Add(templateID, v)
	return true
}

// Invalidate drops the validator of a template.
func (c *validatorCache) Invalidate(templateID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.cache.Remove(templateID)
}
