package swiftftr

import (
	"context"
	"net"
	"time"
)

// privateV4Ranges are the non-globally-routable IPv4 ranges spec §4.9
// requires be filtered out before ASN resolution: RFC 1918 private
// space, CGNAT (100.64/10), loopback, and multicast.
var privateV4Ranges = []*net.IPNet{
	mustCIDR("10.0.0.0/8"),
	mustCIDR("172.16.0.0/12"),
	mustCIDR("192.168.0.0/16"),
	mustCIDR("100.64.0.0/10"),
	mustCIDR("127.0.0.0/8"),
	mustCIDR("224.0.0.0/4"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// isPrivateOrReserved reports whether ip falls in any non-globally-
// routable range (private, CGNAT, loopback, multicast).
func isPrivateOrReserved(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range privateV4Ranges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// isCGNAT reports whether ip falls specifically in 100.64.0.0/10.
func isCGNAT(ip net.IP) bool {
	return ip != nil && privateV4Ranges[3].Contains(ip)
}

// publicIPv4s filters ips down to the globally-routable, non-empty,
// parseable IPv4 subset spec §4.9 requires as ASN-resolver input.
func publicIPv4s(ips []net.IP) []net.IP {
	out := make([]net.IP, 0, len(ips))
	seen := make(map[string]bool)
	for _, ip := range ips {
		if ip == nil {
			continue
		}
		v4 := ip.To4()
		if v4 == nil || isPrivateOrReserved(v4) {
			continue
		}
		key := v4.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v4)
	}
	return out
}

// asnBackend is the capability an ASNStrategy implements: batch
// resolution of public IPv4 addresses to ASNInfo, given a shared
// timeout (spec §4.9).
type asnBackend interface {
	Resolve(ctx context.Context, ips []net.IP, timeout time.Duration) map[string]ASNInfo
}

// newASNBackend builds the configured backend. The DNS backend needs
// no setup; the embedded backend loads its database lazily on first
// use (spec §4.9).
func newASNBackend(cfg Config) asnBackend {
	dns := &dnsASNBackend{logger: cfg.logger()}
	switch cfg.ASNStrategy {
	case ASNStrategyDNS:
		return dns
	case ASNStrategyEmbedded:
		return &embeddedASNBackend{path: cfg.ASNDatabasePath, logger: cfg.logger()}
	case ASNStrategyHybrid:
		return &hybridASNBackend{
			embedded: &embeddedASNBackend{path: cfg.ASNDatabasePath, logger: cfg.logger()},
			dns:      dns,
		}
	default:
		return dns
	}
}

// hybridASNBackend tries the embedded database first and falls back
// to DNS only for addresses it could not find (spec §4.9).
type hybridASNBackend struct {
	embedded *embeddedASNBackend
	dns      *dnsASNBackend
}

func (h *hybridASNBackend) Resolve(ctx context.Context, ips []net.IP, timeout time.Duration) map[string]ASNInfo {
	out := h.embedded.Resolve(ctx, ips, timeout)
	var missing []net.IP
	for _, ip := range ips {
		if _, ok := out[ip.String()]; !ok {
			missing = append(missing, ip)
		}
	}
	if len(missing) == 0 {
		return out
	}
	for k, v := range h.dns.Resolve(ctx, missing, timeout) {
		out[k] = v
	}
	return out
}

// ASNResolver is the caching, process-wide-memoized facade over an
// asnBackend. A *ASNResolver is safe for concurrent use.
type ASNResolver struct {
	backend asnBackend
	cache   *asnCache
}

// NewASNResolver builds a resolver for the given Config.
func NewASNResolver(cfg Config) *ASNResolver {
	return &ASNResolver{backend: newASNBackend(cfg), cache: newASNCache()}
}

// Resolve resolves ips to ASNInfo, consulting the cache first and
// only querying the backend for cache misses. A definitive miss
// (no ASN found) is itself cached so repeated lookups don't re-query.
func (r *ASNResolver) Resolve(ctx context.Context, ips []net.IP, timeout time.Duration) map[string]ASNInfo {
	out := make(map[string]ASNInfo)
	public := publicIPv4s(ips)

	var uncached []net.IP
	for _, ip := range public {
		if info, miss, ok := r.cache.get(ip.String()); ok {
			if !miss {
				out[ip.String()] = info
			}
			continue
		}
		uncached = append(uncached, ip)
	}
	if len(uncached) == 0 {
		return out
	}

	resolved := r.backend.Resolve(ctx, uncached, timeout)
	for _, ip := range uncached {
		key := ip.String()
		if info, ok := resolved[key]; ok {
			out[key] = info
			r.cache.put(key, info, false)
		} else {
			r.cache.put(key, ASNInfo{}, true)
		}
	}
	return out
}
