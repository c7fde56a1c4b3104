package swiftftr

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// asnCacheEntry distinguishes a resolved ASNInfo from a definitive
// miss (spec §4.9: "a caching wrapper memoizes per-IP results
// process-wide... None caches a definitive miss").
type asnCacheEntry struct {
	info ASNInfo
	miss bool
}

// asnCache is the thread-safe, process-wide ASN memoization wrapper.
// The spec places no TTL or size requirement on it ("cached
// indefinitely within a process"); a generously large LRU still
// bounds worst-case memory for a long-lived process probing many
// distinct hosts, without ever evicting in ordinary use.
type asnCache struct {
	c *lru.Cache[string, asnCacheEntry]
}

const asnCacheCapacity = 1 << 20

func newASNCache() *asnCache {
	c, err := lru.New[string, asnCacheEntry](asnCacheCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// asnCacheCapacity never is.
		panic(err)
	}
	return &asnCache{c: c}
}

func (a *asnCache) get(ip string) (info ASNInfo, miss bool, ok bool) {
	e, ok := a.c.Get(ip)
	if !ok {
		return ASNInfo{}, false, false
	}
	return e.info, e.miss, true
}

func (a *asnCache) put(ip string, info ASNInfo, miss bool) {
	a.c.Add(ip, asnCacheEntry{info: info, miss: miss})
}
