package zotok

import (
	"crypto/sha256"
	"net/http"
	"sync"

	"github.com/gregjones/httpcache"
)

// bearerCache wraps an httpcache transport whose entries belong to a single
// Authorization header. httpcache keys entries by URL alone, so a request
// carrying a different bearer starts a fresh cache. Unauthenticated
// requests bypass caching.
type bearerCache struct {
	next http.RoundTripper

	mu     sync.Mutex
	bearer [sha256.Size]byte
	cache  *httpcache.Transport
}

func (b *bearerCache) RoundTrip(req *http.Request) (*http.Response, error) {
	auth := req.Header.Get("Authorization")
	if auth == "" {
		return b.next.RoundTrip(req)
	}
	return b.transportFor(auth).RoundTrip(req)
}

func (b *bearerCache) transportFor(auth string) *httpcache.Transport {
	sum := sha256.Sum256([]byte(auth))

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cache == nil || sum != b.bearer {
		t := httpcache.NewMemoryCacheTransport()
		t.Transport = b.next
		b.cache = t
		b.bearer = sum
	}
	return b.cache
}
