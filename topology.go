package swiftftr

import "net"

// UniqueHops returns the union of responding hops across every path in
// t, deduplicated by IP and sorted by the lowest TTL each was first
// seen at (spec §4.8).
func (t NetworkTopology) UniqueHops() []TraceHop {
	firstSeen := make(map[string]TraceHop)
	order := make(map[string]int)
	for _, p := range t.Paths {
		for _, h := range p.Trace.Hops {
			if h.IP == nil {
				continue
			}
			key := h.IP.String()
			if existing, ok := order[key]; !ok || h.TTL < existing {
				order[key] = h.TTL
				firstSeen[key] = h.TraceHop
			}
		}
	}
	out := make([]TraceHop, 0, len(firstSeen))
	for _, h := range firstSeen {
		out = append(out, h)
	}
	sortHopsByTTL(out)
	return out
}

func sortHopsByTTL(hops []TraceHop) {
	for i := 1; i < len(hops); i++ {
		for j := i; j > 0 && hops[j].TTL < hops[j-1].TTL; j-- {
			hops[j], hops[j-1] = hops[j-1], hops[j]
		}
	}
}

// CommonPrefix returns the longest prefix of (ttl, ip) pairs identical
// across every path in t (spec §4.8). An empty topology has an empty
// prefix.
func (t NetworkTopology) CommonPrefix() []TraceHop {
	if len(t.Paths) == 0 {
		return nil
	}
	var prefix []TraceHop
	first := t.Paths[0].Trace.Hops
	for ttl := range first {
		ip := first[ttl].IP
		agree := true
		for _, p := range t.Paths[1:] {
			if ttl >= len(p.Trace.Hops) || !ipEqual(p.Trace.Hops[ttl].IP, ip) {
				agree = false
				break
			}
		}
		if !agree {
			break
		}
		prefix = append(prefix, first[ttl])
	}
	return prefix
}

// DivergencePoint returns the lowest TTL at which any two paths
// disagree (including timeout-vs-IP disagreement), and whether such a
// TTL exists at all (spec §4.8: "none if all identical").
func (t NetworkTopology) DivergencePoint() (ttl int, ok bool) {
	if len(t.Paths) < 2 {
		return 0, false
	}
	maxLen := 0
	for _, p := range t.Paths {
		if len(p.Trace.Hops) > maxLen {
			maxLen = len(p.Trace.Hops)
		}
	}
	for i := 0; i < maxLen; i++ {
		var ref net.IP
		refSet := false
		for _, p := range t.Paths {
			var ip net.IP
			if i < len(p.Trace.Hops) {
				ip = p.Trace.Hops[i].IP
			}
			if !refSet {
				ref = ip
				refSet = true
				continue
			}
			if !ipEqual(ref, ip) {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// PathsThroughIP filters t's paths to those that responded at some hop
// with the given IP (spec §4.8).
func (t NetworkTopology) PathsThroughIP(ip net.IP) []DiscoveredPath {
	var out []DiscoveredPath
	for _, p := range t.Paths {
		for _, h := range p.Trace.Hops {
			if ipEqual(h.IP, ip) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// PathsThroughASN filters t's paths to those with some hop classified
// to the given ASN (spec §4.8).
func (t NetworkTopology) PathsThroughASN(asn uint32) []DiscoveredPath {
	var out []DiscoveredPath
	for _, p := range t.Paths {
		for _, h := range p.Trace.Hops {
			if h.HasASN && h.ASN == asn {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// Summary reports the size of the discovered topology: how many
// variations were tried, how many distinct paths were found, and
// whether a divergence point exists (a supplemented convenience spec
// §4.8's analytical queries don't name individually, but that a CLI or
// dashboard consuming NetworkTopology would want without re-deriving
// it from Paths).
type TopologySummary struct {
	VariationsTried   int
	UniquePaths       int
	DivergenceTTL     int
	HasDivergence     bool
	DiscoveryDuration string
}

func (t NetworkTopology) Summary() TopologySummary {
	ttl, ok := t.DivergencePoint()
	return TopologySummary{
		VariationsTried:   len(t.Paths),
		UniquePaths:       t.UniquePathCount,
		DivergenceTTL:     ttl,
		HasDivergence:     ok,
		DiscoveryDuration: t.DiscoveryDuration.String(),
	}
}

func ipEqual(a, b net.IP) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
