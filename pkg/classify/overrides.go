package classify

import (
	"sync"

	"github.com/consentry/consentry/db"
	"github.com/rs/zerolog/log"
)

// OverrideLister is the repository surface the override cache reads from.
type OverrideLister interface {
	ListDomainOverrides(domainConfigID string) ([]*db.DomainOverride, error)
}

// OverrideCache lazily loads per-domain cookie overrides, one fetch per
// domain_config_id per process.
type OverrideCache struct {
	store OverrideLister

	mu     sync.Mutex
	loaded map[string]map[string]*db.DomainOverride
}

func NewOverrideCache(store OverrideLister) *OverrideCache {
	return &OverrideCache{
		store:  store,
		loaded: make(map[string]map[string]*db.DomainOverride),
	}
}

// Lookup returns the override for a cookie name under a domain config, or
// nil. A failed load is treated as no overrides and retried on the next
// domain.
func (c *OverrideCache) Lookup(domainConfigID, cookieName string) *db.DomainOverride {
	if domainConfigID == "" {
		return nil
	}
	c.mu.Lock()
	byName, ok := c.loaded[domainConfigID]
	c.mu.Unlock()
	if !ok {
		items, err := c.store.ListDomainOverrides(domainConfigID)
		if err != nil {
			log.Warn().Err(err).Str("domain_config_id", domainConfigID).Msg("Could not load domain overrides")
			return nil
		}
		byName = make(map[string]*db.DomainOverride, len(items))
		for _, item := range items {
			byName[item.CookieName] = item
		}
		c.mu.Lock()
		c.loaded[domainConfigID] = byName
		c.mu.Unlock()
	}
	return byName[cookieName]
}
