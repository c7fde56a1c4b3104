package swiftftr

import (
	"context"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// rdnsEntry is one cached reverse-DNS answer with the time it was
// resolved, so TTL expiry can be checked lazily on read.
type rdnsEntry struct {
	hostname  string
	ok        bool
	resolvedAt time.Time
}

// rdnsCache is a TTL-bounded, size-bounded, LRU-evicted mapping from
// IP to hostname (spec §2, component 6). It wraps any
// HostnameResolver collaborator; the resolver itself is out of scope
// (spec §1).
type rdnsCache struct {
	resolver HostnameResolver
	ttl      time.Duration
	clock    func() time.Time

	mu sync.Mutex
	c  *lru.Cache[string, rdnsEntry]
}

func newRDNSCache(resolver HostnameResolver, size int, ttl time.Duration, clock func() time.Time) *rdnsCache {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, rdnsEntry](size)
	if err != nil {
		panic(err)
	}
	return &rdnsCache{resolver: resolver, ttl: ttl, clock: clock, c: c}
}

// Lookup returns ip's hostname, using a cached answer if it is still
// within TTL, and otherwise querying the resolver and caching the
// result (including a negative result, so a name that doesn't resolve
// isn't re-queried on every call within the TTL window).
func (r *rdnsCache) Lookup(ctx context.Context, ip net.IP) (string, bool) {
	key := ip.String()

	r.mu.Lock()
	entry, found := r.c.Get(key)
	r.mu.Unlock()
	if found && r.clock().Sub(entry.resolvedAt) < r.ttl {
		return entry.hostname, entry.ok
	}

	hostname, ok := r.resolver.ReverseLookup(ctx, ip)
	r.mu.Lock()
	r.c.Add(key, rdnsEntry{hostname: hostname, ok: ok, resolvedAt: r.clock()})
	r.mu.Unlock()
	return hostname, ok
}

// systemHostnameResolver is the default HostnameResolver: an ordinary
// PTR lookup through net.DefaultResolver. Named so it can be swapped
// out for a test double without touching rdnsCache.
type systemHostnameResolver struct {
	timeout time.Duration
}

func (s systemHostnameResolver) ReverseLookup(ctx context.Context, ip net.IP) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	names, err := net.DefaultResolver.LookupAddr(ctx, ip.String())
	if err != nil || len(names) == 0 {
		return "", false
	}
	name := names[0]
	for len(name) > 0 && name[len(name)-1] == '.' {
		name = name[:len(name)-1]
	}
	return name, true
}
