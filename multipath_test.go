package swiftftr

import "testing"

func TestFingerprint(t *testing.T) {
	trace := TraceResult{
		Hops: []TraceHop{
			{TTL: 1, IP: ip("192.168.1.1")},
			{TTL: 2},
			{TTL: 3, IP: ip("203.0.113.1")},
		},
	}
	got := fingerprint(trace)
	want := "192.168.1.1|*|203.0.113.1"
	if got != want {
		t.Fatalf("fingerprint = %q, want %q", got, want)
	}
}

func TestFingerprintIdenticalPathsMatch(t *testing.T) {
	a := TraceResult{Hops: []TraceHop{{TTL: 1, IP: ip("10.0.0.1")}, {TTL: 2, IP: ip("9.9.9.9")}}}
	b := TraceResult{Hops: []TraceHop{{TTL: 1, IP: ip("10.0.0.1")}, {TTL: 2, IP: ip("9.9.9.9")}}}
	if fingerprint(a) != fingerprint(b) {
		t.Fatal("expected identical hop sequences to produce identical fingerprints")
	}
}

func buildTopology(paths ...[]TraceHop) NetworkTopology {
	top := NetworkTopology{}
	for _, hops := range paths {
		trace := TraceResult{Hops: hops}
		top.Paths = append(top.Paths, DiscoveredPath{Trace: ClassifiedTrace{Hops: toClassifiedHops(trace.Hops)}})
	}
	return top
}

func toClassifiedHops(hops []TraceHop) []ClassifiedHop {
	out := make([]ClassifiedHop, len(hops))
	for i, h := range hops {
		out[i] = ClassifiedHop{TraceHop: h}
	}
	return out
}

func TestDivergencePoint(t *testing.T) {
	top := buildTopology(
		[]TraceHop{{TTL: 1, IP: ip("10.0.0.1")}, {TTL: 2, IP: ip("1.1.1.1")}, {TTL: 3, IP: ip("9.9.9.9")}},
		[]TraceHop{{TTL: 1, IP: ip("10.0.0.1")}, {TTL: 2, IP: ip("1.1.1.1")}, {TTL: 3, IP: ip("8.8.8.8")}},
	)
	ttl, ok := top.DivergencePoint()
	if !ok || ttl != 3 {
		t.Fatalf("divergence point = %d/%v, want 3/true", ttl, ok)
	}
}

func TestDivergencePointNoneWhenIdentical(t *testing.T) {
	top := buildTopology(
		[]TraceHop{{TTL: 1, IP: ip("10.0.0.1")}, {TTL: 2, IP: ip("1.1.1.1")}},
		[]TraceHop{{TTL: 1, IP: ip("10.0.0.1")}, {TTL: 2, IP: ip("1.1.1.1")}},
	)
	_, ok := top.DivergencePoint()
	if ok {
		t.Fatal("expected no divergence for identical paths")
	}
}

func TestCommonPrefix(t *testing.T) {
	top := buildTopology(
		[]TraceHop{{TTL: 1, IP: ip("10.0.0.1")}, {TTL: 2, IP: ip("1.1.1.1")}, {TTL: 3, IP: ip("9.9.9.9")}},
		[]TraceHop{{TTL: 1, IP: ip("10.0.0.1")}, {TTL: 2, IP: ip("1.1.1.1")}, {TTL: 3, IP: ip("8.8.8.8")}},
	)
	prefix := top.CommonPrefix()
	if len(prefix) != 2 {
		t.Fatalf("common prefix length = %d, want 2", len(prefix))
	}
}
