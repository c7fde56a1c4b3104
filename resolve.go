package swiftftr

import (
	"context"
	"net"
)

// resolveIPv4 implements the numeric-first address resolution policy
// of spec §4.4: a literal IPv4 address is used as-is with no DNS
// involved; otherwise name resolution is attempted and restricted to
// IPv4 results.
func resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, &ResolutionFailedError{Host: host, Details: "address is IPv6, which this revision does not support"}
	}

	addrs, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, &ResolutionFailedError{Host: host, Details: err.Error()}
	}
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, &ResolutionFailedError{Host: host, Details: "no IPv4 address found"}
}
