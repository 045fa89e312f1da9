package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache() (*VolatileCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewVolatileCache(CacheTTLs{
		Credentials: 10 * time.Minute,
		TokenStatus: time.Minute,
		Validation:  5 * time.Minute,
	}, clock.now)
	return cache, clock
}

func TestVolatileCache_IndependentTTLs(t *testing.T) {
	cache, clock := newTestCache()
	cache.SetCredentials(model.CredentialRecord{WorkspaceID: "ws1", Version: 3})
	cache.SetTokenStatus(model.TokenStatus{HasToken: true})
	cache.SetValidation("token:abc", model.AuthResult{Success: true})

	clock.advance(2 * time.Minute)

	_, ok := cache.TokenStatus()
	assert.False(t, ok, "token status outlived its TTL")
	rec, ok := cache.Credentials()
	assert.True(t, ok)
	assert.Equal(t, 3, rec.Version)
	_, ok = cache.Validation("token:abc")
	assert.True(t, ok)

	clock.advance(3 * time.Minute)
	_, ok = cache.Validation("token:abc")
	assert.False(t, ok, "validation is invalid once now - timestamp reaches the TTL")
}

func TestVolatileCache_ClearDropsEverything(t *testing.T) {
	cache, _ := newTestCache()
	cache.SetCredentials(model.CredentialRecord{WorkspaceID: "ws1"})
	cache.SetTokenStatus(model.TokenStatus{HasToken: true})
	cache.SetValidation("a", model.AuthResult{Success: true})

	cache.Clear()

	_, ok := cache.Credentials()
	assert.False(t, ok)
	_, ok = cache.TokenStatus()
	assert.False(t, ok)
	_, ok = cache.Validation("a")
	assert.False(t, ok)
}

func TestVolatileCache_InvalidateTokenStatusOnly(t *testing.T) {
	cache, _ := newTestCache()
	cache.SetCredentials(model.CredentialRecord{WorkspaceID: "ws1"})
	cache.SetTokenStatus(model.TokenStatus{HasToken: true})

	cache.InvalidateTokenStatus()

	_, ok := cache.TokenStatus()
	assert.False(t, ok)
	_, ok = cache.Credentials()
	assert.True(t, ok)
}

func TestVolatileCache_SweepCountsExpired(t *testing.T) {
	cache, clock := newTestCache()
	cache.SetCredentials(model.CredentialRecord{WorkspaceID: "ws1"})
	cache.SetTokenStatus(model.TokenStatus{})
	cache.SetValidation("a", model.AuthResult{})
	cache.SetValidation("b", model.AuthResult{})

	assert.Equal(t, 0, cache.Sweep())

	clock.advance(6 * time.Minute)
	assert.Equal(t, 3, cache.Sweep())

	_, ok := cache.Credentials()
	assert.True(t, ok)
	assert.Equal(t, 0, cache.Sweep())
}
