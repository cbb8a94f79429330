package membership

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedResolver wraps a Resolver with a bounded TTL cache.
// This avoids hitting the database on every request of a busy user.
type CachedResolver struct {
	inner Resolver
	cache *expirable.LRU[string, Membership]
}

// NewCachedResolver wraps inner. size bounds the number of cached
// memberships and ttl is how long one is served before re-fetching.
func NewCachedResolver(inner Resolver, size int, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: expirable.NewLRU[string, Membership](size, nil, ttl),
	}
}

func cacheKey(userID, slug string) string { return userID + "|" + slug }

// Resolve returns the cached membership or asks the inner resolver. Misses,
// including ErrNotMember, are not cached.
func (r *CachedResolver) Resolve(ctx context.Context, userID, slug string) (*Membership, error) {
	if m, ok := r.cache.Get(cacheKey(userID, slug)); ok {
		return &m, nil
	}
	m, err := r.inner.Resolve(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	r.cache.Add(cacheKey(userID, slug), *m)
	cp := *m
	return &cp, nil
}

// Invalidate drops one cached membership.
func (r *CachedResolver) Invalidate(userID, slug string) {
	r.cache.Remove(cacheKey(userID, slug))
}

// InvalidateOrganization drops every cached membership of slug. Call it
// after the organization itself changes (owner, slug, deletion).
func (r *CachedResolver) InvalidateOrganization(slug string) {
	suffix := "|" + slug
	for _, k := range r.cache.Keys() {
		if strings.HasSuffix(k, suffix) {
			r.cache.Remove(k)
		}
	}
}

// InvalidateAll clears the entire cache.
func (r *CachedResolver) InvalidateAll() {
	r.cache.Purge()
}
