package swiftftr

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestParseOriginTXT(t *testing.T) {
	ans, ok := parseOriginTXT("15169 | 8.8.8.0/24 | US | arin | 2014-03-14")
	if !ok {
		t.Fatal("expected ok")
	}
	if ans.asn != 15169 {
		t.Errorf("asn = %d, want 15169", ans.asn)
	}
	if ans.prefix != "8.8.8.0/24" {
		t.Errorf("prefix = %q", ans.prefix)
	}
	if ans.country != "US" {
		t.Errorf("country = %q", ans.country)
	}
	if ans.registry != "arin" {
		t.Errorf("registry = %q", ans.registry)
	}
}

func TestParseOriginTXTMultiHomed(t *testing.T) {
	ans, ok := parseOriginTXT("13335 209242 | 1.1.1.0/24 | US | arin |")
	if !ok {
		t.Fatal("expected ok")
	}
	if ans.asn != 13335 {
		t.Errorf("asn = %d, want 13335 (first of multiple origins)", ans.asn)
	}
}

func TestParseOriginTXTEmpty(t *testing.T) {
	if _, ok := parseOriginTXT(""); ok {
		t.Error("expected not ok for empty TXT")
	}
}

func TestParseOriginTXTMalformedASN(t *testing.T) {
	if _, ok := parseOriginTXT("notanumber | 1.1.1.0/24"); ok {
		t.Error("expected not ok for non-numeric ASN field")
	}
}

func TestParseASNameTXT(t *testing.T) {
	name, ok := parseASNameTXT("15169   | US | arin | 2000-03-30 | GOOGLE, US")
	if !ok {
		t.Fatal("expected ok")
	}
	if name != "GOOGLE, US" {
		t.Errorf("name = %q, want %q", name, "GOOGLE, US")
	}
}

func TestParseASNameTXTEmpty(t *testing.T) {
	if _, ok := parseASNameTXT(""); ok {
		t.Error("expected not ok for empty TXT")
	}
}

func TestSplitPipeFields(t *testing.T) {
	got := splitPipeFields("  a  | b|c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReverseQueryName(t *testing.T) {
	got := reverseQueryName(net.ParseIP("8.8.4.4"))
	want := "4.4.8.8." + cymruOriginZone
	if got != want {
		t.Errorf("reverseQueryName = %q, want %q", got, want)
	}
}

func TestPrefixTableLookup(t *testing.T) {
	info, ok := builtinASNTable.lookup(net.ParseIP("8.8.8.8"))
	if !ok {
		t.Fatal("expected a hit for 8.8.8.8")
	}
	if info.ASN != 15169 || info.Name != "GOOGLE" {
		t.Errorf("got %+v, want ASN 15169 GOOGLE", info)
	}
}

func TestPrefixTableLookupMiss(t *testing.T) {
	if _, ok := builtinASNTable.lookup(net.ParseIP("203.0.113.1")); ok {
		t.Error("expected a miss for an address with no built-in entry")
	}
}

func TestPrefixTableLookupPrefersLongestMatch(t *testing.T) {
	table := &prefixTable{entries: []prefixEntry{
		{mustCIDR("93.184.0.0/16"), ASNInfo{ASN: 1, Name: "WIDE"}},
		{mustCIDR("93.184.216.0/24"), ASNInfo{ASN: 2, Name: "NARROW"}},
	}}
	info, ok := table.lookup(net.ParseIP("93.184.216.34"))
	if !ok {
		t.Fatal("expected a hit")
	}
	if info.ASN != 2 {
		t.Errorf("asn = %d, want 2 (longest-prefix match)", info.ASN)
	}
}

func TestIsPrivateOrReserved(t *testing.T) {
	cases := map[string]bool{
		"10.1.2.3":      true,
		"172.16.5.5":    true,
		"192.168.1.1":   true,
		"100.64.0.1":    true,
		"127.0.0.1":     true,
		"224.0.0.1":     true,
		"8.8.8.8":       false,
		"93.184.216.34": false,
	}
	for addr, want := range cases {
		got := isPrivateOrReserved(net.ParseIP(addr))
		if got != want {
			t.Errorf("isPrivateOrReserved(%s) = %v, want %v", addr, got, want)
		}
	}
}

func TestPublicIPv4sDedupsAndFilters(t *testing.T) {
	in := []net.IP{
		net.ParseIP("8.8.8.8"),
		net.ParseIP("10.0.0.1"),
		net.ParseIP("8.8.8.8"),
		nil,
		net.ParseIP("1.1.1.1"),
	}
	out := publicIPv4s(in)
	if len(out) != 2 {
		t.Fatalf("got %d addrs, want 2: %v", len(out), out)
	}
}

func TestASNResolverCachesMiss(t *testing.T) {
	backend := &countingBackend{}
	r := &ASNResolver{backend: backend, cache: newASNCache()}
	ip := net.ParseIP("203.0.113.9")

	r.Resolve(context.Background(), []net.IP{ip}, time.Second)
	r.Resolve(context.Background(), []net.IP{ip}, time.Second)

	if backend.calls != 1 {
		t.Errorf("backend called %d times, want 1 (second lookup should hit the cached miss)", backend.calls)
	}
}

func TestASNResolverCachesHit(t *testing.T) {
	ip := net.ParseIP("93.184.216.34")
	backend := &countingBackend{result: map[string]ASNInfo{ip.String(): {ASN: 15133, Name: "EDGECAST"}}}
	r := &ASNResolver{backend: backend, cache: newASNCache()}

	first := r.Resolve(context.Background(), []net.IP{ip}, time.Second)
	second := r.Resolve(context.Background(), []net.IP{ip}, time.Second)

	if backend.calls != 1 {
		t.Errorf("backend called %d times, want 1", backend.calls)
	}
	if first[ip.String()].ASN != 15133 || second[ip.String()].ASN != 15133 {
		t.Errorf("got %+v / %+v, want ASN 15133 both times", first, second)
	}
}

func TestEmbeddedBackendBuiltinTableFallback(t *testing.T) {
	embeddedIP := net.ParseIP("8.8.8.8")
	outsideTable := net.ParseIP("203.0.113.50")

	backend := &embeddedASNBackend{}
	out := backend.Resolve(context.Background(), []net.IP{embeddedIP, outsideTable}, time.Second)
	if _, ok := out[embeddedIP.String()]; !ok {
		t.Fatal("expected embedded backend to resolve a built-in-table address")
	}
	if _, ok := out[outsideTable.String()]; ok {
		t.Fatal("did not expect the embedded backend to resolve an address outside its table")
	}
}

// countingBackend is a test double for asnBackend that records how
// many times Resolve was called and returns a fixed result map.
type countingBackend struct {
	calls  int
	result map[string]ASNInfo
}

func (c *countingBackend) Resolve(_ context.Context, _ []net.IP, _ time.Duration) map[string]ASNInfo {
	c.calls++
	if c.result == nil {
		return map[string]ASNInfo{}
	}
	return c.result
}
