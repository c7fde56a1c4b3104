package swiftftr

import (
	"net"
	"strings"
)

// VPNContext carries the signals spec §4.10 uses to recognize a VPN
// tunnel along a trace: the interface the probes went out (if its
// name matches a known tunnel-driver pattern) and/or a hostname match
// against known VPN provider suffixes.
type VPNContext struct {
	TraceInterface string
	IsVPNTrace     bool
}

var vpnInterfacePrefixes = []string{"utun", "ipsec", "ppp", "tun", "tap", "wg"}

// InterfaceLooksLikeVPN reports whether name matches one of the
// tunnel-driver naming conventions spec §4.10 lists.
func InterfaceLooksLikeVPN(name string) bool {
	for _, p := range vpnInterfacePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

var vpnHostnameSuffixes = []string{
	".ts.net", ".tailscale.com", ".wg.run", ".mullvad.net", ".nordvpn.com", ".expressvpn.com",
}

// hostnameLooksLikeVPN reports whether hostname matches one of the
// known VPN-provider reverse-DNS suffixes.
func hostnameLooksLikeVPN(hostname string) bool {
	h := strings.ToLower(hostname)
	for _, suf := range vpnHostnameSuffixes {
		if strings.HasSuffix(h, suf) {
			return true
		}
	}
	return false
}

// active reports whether the VPN-aware classification rules should
// apply at all: either the caller explicitly flagged the trace as a
// VPN trace, or the interface it went out on looks like a tunnel
// driver.
func (v *VPNContext) active() bool {
	if v == nil {
		return false
	}
	return v.IsVPNTrace || InterfaceLooksLikeVPN(v.TraceInterface)
}

// publicHopRule implements spec §4.10 rule 3's public-IP branch: ASN
// equality against the client/destination ASN, falling through to
// TRANSIT (with or without an ASN answer).
func publicHopRule(info ASNInfo, hasInfo bool, clientASN uint32, hasClientASN bool, destASN uint32, hasDestASN bool) (Category, uint32, bool, string) {
	if hasInfo {
		switch {
		case hasClientASN && info.ASN == clientASN:
			return CategoryISP, info.ASN, true, info.Name
		case hasDestASN && info.ASN == destASN:
			return CategoryDestination, info.ASN, true, info.Name
		default:
			return CategoryTransit, info.ASN, true, info.Name
		}
	}
	return CategoryTransit, 0, false, ""
}

// ClassifyTrace assigns each responding hop a category (spec §4.10),
// using asnByIP for hop/destination/public-IP ASN lookups and
// hostnames for rDNS-derived names (both keyed by IP string; absent
// entries are treated as "no answer", which the rules downgrade
// gracefully rather than fail on).
func ClassifyTrace(trace TraceResult, publicIP net.IP, hasPublicIP bool, asnByIP map[string]ASNInfo, hostnames map[string]string, vpn *VPNContext) ClassifiedTrace {
	ct := ClassifiedTrace{
		Destination:   trace.Destination,
		DestinationIP: trace.DestinationIP,
		Reached:       trace.Reached,
		Duration:      trace.Duration,
		PublicIP:      publicIP,
		HasPublicIP:   hasPublicIP,
	}

	var clientASN, destASN uint32
	var hasClientASN, hasDestASN bool
	if hasPublicIP {
		if info, ok := asnByIP[publicIP.String()]; ok {
			clientASN, hasClientASN = info.ASN, true
		}
	}
	if trace.DestinationIP != nil {
		if info, ok := asnByIP[trace.DestinationIP.String()]; ok {
			destASN, hasDestASN = info.ASN, true
		}
	}
	ct.ClientASN, ct.HasClientASN = clientASN, hasClientASN
	ct.DestinationASN, ct.HasDestASN = destASN, hasDestASN

	hops := make([]ClassifiedHop, len(trace.Hops))
	vpnActive := vpn.active()
	seenPublicHop := false
	vpnRegionStarted := false

	for i, hop := range trace.Hops {
		ch := ClassifiedHop{TraceHop: hop}
		if hop.Hostname == "" {
			if h, ok := hostnames[ipKey(hop.IP)]; ok {
				ch.Hostname = h
			}
		}

		isLast := i == len(trace.Hops)-1
		reachedHop := trace.Reached && isLast && hop.IP != nil

		switch {
		case hop.IP == nil:
			ch.Category = CategoryUnknown

		case vpnActive && hostnameLooksLikeVPN(ch.Hostname):
			ch.Category = CategoryVPN
			vpnRegionStarted = true

		case vpnActive && isPrivateOrReservedHop(hop.IP):
			switch {
			case !seenPublicHop && !vpnRegionStarted:
				ch.Category = CategoryLocal
			case vpnRegionStarted:
				ch.Category = CategoryVPN
			default:
				ch.Category = CategoryISP
			}

		case vpnActive && vpnRegionStarted && !reachedHop:
			ch.Category = CategoryVPN

		case isCGNAT(hop.IP):
			ch.Category = CategoryISP

		case isPrivateOrReservedHop(hop.IP):
			if !seenPublicHop {
				ch.Category = CategoryLocal
			} else {
				ch.Category = CategoryISP
			}

		default:
			info, ok := asnByIP[hop.IP.String()]
			cat, asn, hasASN, name := publicHopRule(info, ok, clientASN, hasClientASN, destASN, hasDestASN)
			ch.Category = cat
			ch.ASN, ch.HasASN, ch.ASName = asn, hasASN, name
		}

		if hop.IP != nil && !isPrivateOrReservedHop(hop.IP) {
			seenPublicHop = true
		}

		hops[i] = ch
	}

	interpolateUnknown(hops)
	ct.Hops = hops
	return ct
}

// isPrivateOrReservedHop treats CGNAT as private too, for the
// private/public-hop-order tracking used above; isCGNAT is
// still checked first where the spec calls it out as its own rule
// (ISP unconditionally).
func isPrivateOrReservedHop(ip net.IP) bool {
	return isPrivateOrReserved(ip)
}

func ipKey(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// interpolateUnknown fills a maximal run of UNKNOWN hops flanked by
// identically-categorized neighbors with that category (and, if the
// neighbors additionally share an ASN, that ASN/name too), per spec
// §4.10's hole-filling rule.
func interpolateUnknown(hops []ClassifiedHop) {
	n := len(hops)
	i := 0
	for i < n {
		if hops[i].Category != CategoryUnknown {
			i++
			continue
		}
		start := i
		for i < n && hops[i].Category == CategoryUnknown {
			i++
		}
		end := i // exclusive
		if start == 0 || end == n {
			continue // no flanking neighbor on one side
		}
		left, right := hops[start-1], hops[end]
		if left.Category != right.Category {
			continue
		}
		sameASN := left.HasASN && right.HasASN && left.ASN == right.ASN
		for j := start; j < end; j++ {
			hops[j].Category = left.Category
			if sameASN {
				hops[j].ASN, hops[j].HasASN, hops[j].ASName = left.ASN, true, left.ASName
			}
		}
	}
}
