package swiftftr

import (
	"net"
	"testing"
	"time"
)

func ip(s string) net.IP { return net.ParseIP(s) }

func TestClassifySyntheticScenario(t *testing.T) {
	trace := TraceResult{
		Destination:   "example.com",
		DestinationIP: ip("93.184.216.34"),
		Reached:       true,
		Hops: []TraceHop{
			{TTL: 1, IP: ip("192.168.1.1"), RTT: time.Millisecond, HasRTT: true},
			{TTL: 2, IP: ip("100.64.0.5"), RTT: 2 * time.Millisecond, HasRTT: true},
			{TTL: 3, IP: ip("203.0.113.10"), RTT: 3 * time.Millisecond, HasRTT: true},
			{TTL: 4},
			{TTL: 5, IP: ip("93.184.216.34"), RTT: 10 * time.Millisecond, HasRTT: true, ReachedDestination: true},
		},
	}
	asnByIP := map[string]ASNInfo{
		"203.0.113.10":   {ASN: 64500, Name: "TransitNet"},
		"93.184.216.34":  {ASN: 15133, Name: "ExampleNet"},
		"198.51.100.50":  {ASN: 64501, Name: "ISPNet"},
	}
	ct := ClassifyTrace(trace, ip("198.51.100.50"), true, asnByIP, nil, nil)

	want := []Category{CategoryLocal, CategoryISP, CategoryTransit, CategoryUnknown, CategoryDestination}
	for i, w := range want {
		if ct.Hops[i].Category != w {
			t.Errorf("hop %d: got %s want %s", i+1, ct.Hops[i].Category, w)
		}
	}
	if !ct.HasClientASN || ct.ClientASN != 64501 {
		t.Errorf("client asn = %v/%v", ct.ClientASN, ct.HasClientASN)
	}
	if !ct.HasDestASN || ct.DestinationASN != 15133 {
		t.Errorf("dest asn = %v/%v", ct.DestinationASN, ct.HasDestASN)
	}
}

func TestClassifyHoleFillIdentical(t *testing.T) {
	trace := TraceResult{
		DestinationIP: ip("9.9.9.9"),
		Hops: []TraceHop{
			{TTL: 1, IP: ip("203.0.113.1"), HasRTT: true},
			{TTL: 2},
			{TTL: 3, IP: ip("203.0.113.2"), HasRTT: true},
		},
	}
	asnByIP := map[string]ASNInfo{
		"203.0.113.1": {ASN: 64500},
		"203.0.113.2": {ASN: 64500},
	}
	ct := ClassifyTrace(trace, nil, false, asnByIP, nil, nil)
	mid := ct.Hops[1]
	if mid.Category != CategoryTransit || !mid.HasASN || mid.ASN != 64500 {
		t.Errorf("got %+v", mid)
	}
}

func TestClassifyHoleFillMismatchedASN(t *testing.T) {
	trace := TraceResult{
		DestinationIP: ip("9.9.9.9"),
		Hops: []TraceHop{
			{TTL: 1, IP: ip("203.0.113.1"), HasRTT: true},
			{TTL: 2},
			{TTL: 3, IP: ip("203.0.113.2"), HasRTT: true},
		},
	}
	asnByIP := map[string]ASNInfo{
		"203.0.113.1": {ASN: 64500},
		"203.0.113.2": {ASN: 64501},
	}
	ct := ClassifyTrace(trace, nil, false, asnByIP, nil, nil)
	mid := ct.Hops[1]
	if mid.Category != CategoryTransit || mid.HasASN {
		t.Errorf("got %+v", mid)
	}
}

func TestClassifyVPN(t *testing.T) {
	trace := TraceResult{
		DestinationIP: ip("1.1.1.1"),
		Reached:       true,
		Hops: []TraceHop{
			{TTL: 1, IP: ip("10.35.0.1"), HasRTT: true},
			{TTL: 2, IP: ip("100.120.205.29"), Hostname: "peer.ts.net", HasRTT: true},
			{TTL: 3, IP: ip("192.168.1.1"), Hostname: "unifi.localdomain", HasRTT: true},
			{TTL: 4, IP: ip("157.131.132.109"), Hostname: "edge.isp.example.net", HasRTT: true},
			{TTL: 5, IP: ip("1.1.1.1"), HasRTT: true, ReachedDestination: true},
		},
	}
	asnByIP := map[string]ASNInfo{
		"1.1.1.1": {ASN: 13335, Name: "CLOUDFLARENET"},
	}
	vpn := &VPNContext{TraceInterface: "utun15"}
	ct := ClassifyTrace(trace, nil, false, asnByIP, nil, vpn)

	want := []Category{CategoryLocal, CategoryVPN, CategoryVPN, CategoryVPN, CategoryDestination}
	for i, w := range want {
		if ct.Hops[i].Category != w {
			t.Errorf("hop %d: got %s want %s", i+1, ct.Hops[i].Category, w)
		}
	}
}

func TestClassifyAllLocalWhenNoPublicSeen(t *testing.T) {
	trace := TraceResult{
		Hops: []TraceHop{
			{TTL: 1, IP: ip("192.168.1.1"), HasRTT: true},
			{TTL: 2, IP: ip("192.168.1.254"), HasRTT: true},
		},
	}
	ct := ClassifyTrace(trace, nil, false, nil, nil, nil)
	for i, h := range ct.Hops {
		if h.Category != CategoryLocal {
			t.Errorf("hop %d: got %s want LOCAL", i+1, h.Category)
		}
	}
}
