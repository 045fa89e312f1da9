package application

import (
	"sync"
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

// CacheTTLs sets the lifetime of each VolatileCache slot.
type CacheTTLs struct {
	Credentials time.Duration
	TokenStatus time.Duration
	Validation  time.Duration
}

type cacheEntry[T any] struct {
	value    T
	storedAt time.Time
}

func (e *cacheEntry[T]) fresh(now time.Time, ttl time.Duration) bool {
	return e != nil && now.Sub(e.storedAt) < ttl
}

// VolatileCache is a process-lifetime cache of credentials, the token status
// summary and named validation results. Expired entries are evicted lazily on
// read or by Sweep.
type VolatileCache struct {
	mu          sync.Mutex
	ttls        CacheTTLs
	now         func() time.Time
	credentials *cacheEntry[model.CredentialRecord]
	tokenStatus *cacheEntry[model.TokenStatus]
	validations map[string]*cacheEntry[model.AuthResult]
}

// NewVolatileCache creates an empty cache. now may be nil to use time.Now.
func NewVolatileCache(ttls CacheTTLs, now func() time.Time) *VolatileCache {
	if now == nil {
		now = time.Now
	}
	return &VolatileCache{
		ttls:        ttls,
		now:         now,
		validations: make(map[string]*cacheEntry[model.AuthResult]),
	}
}

// Credentials returns the cached credential record if it is still fresh.
func (c *VolatileCache) Credentials() (model.CredentialRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.credentials.fresh(c.now(), c.ttls.Credentials) {
		c.credentials = nil
		return model.CredentialRecord{}, false
	}
	return c.credentials.value, true
}

// SetCredentials replaces the cached credential record.
func (c *VolatileCache) SetCredentials(rec model.CredentialRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials = &cacheEntry[model.CredentialRecord]{value: rec, storedAt: c.now()}
}

// TokenStatus returns the cached token status summary if it is still fresh.
func (c *VolatileCache) TokenStatus() (model.TokenStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tokenStatus.fresh(c.now(), c.ttls.TokenStatus) {
		c.tokenStatus = nil
		return model.TokenStatus{}, false
	}
	return c.tokenStatus.value, true
}

// SetTokenStatus replaces the cached token status summary.
func (c *VolatileCache) SetTokenStatus(st model.TokenStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenStatus = &cacheEntry[model.TokenStatus]{value: st, storedAt: c.now()}
}

// InvalidateTokenStatus drops the token status summary.
func (c *VolatileCache) InvalidateTokenStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenStatus = nil
}

// Validation returns the named validation result if it is still fresh.
func (c *VolatileCache) Validation(name string) (model.AuthResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.validations[name]
	if !ok {
		return model.AuthResult{}, false
	}
	if !e.fresh(c.now(), c.ttls.Validation) {
		delete(c.validations, name)
		return model.AuthResult{}, false
	}
	return e.value, true
}

// SetValidation stores a validation result under name.
func (c *VolatileCache) SetValidation(name string, result model.AuthResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validations[name] = &cacheEntry[model.AuthResult]{value: result, storedAt: c.now()}
}

// Clear drops every entry.
func (c *VolatileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials = nil
	c.tokenStatus = nil
	clear(c.validations)
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *VolatileCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	if c.credentials != nil && !c.credentials.fresh(now, c.ttls.Credentials) {
		c.credentials = nil
		removed++
	}
	if c.tokenStatus != nil && !c.tokenStatus.fresh(now, c.ttls.TokenStatus) {
		c.tokenStatus = nil
		removed++
	}
	for name, e := range c.validations {
		if !e.fresh(now, c.ttls.Validation) {
			delete(c.validations, name)
			removed++
		}
	}
	return removed
}
