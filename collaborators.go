package swiftftr

import (
	"context"
	"net"
	"time"
)

// HostnameResolver is the reverse-DNS collaborator: given an IP, it
// returns a hostname if one resolves. The resolver itself (its
// protocol, retry policy, upstream servers) is outside this engine's
// scope; the engine only consumes this narrow interface and caches
// its answers (see rdnsCache).
type HostnameResolver interface {
	ReverseLookup(ctx context.Context, ip net.IP) (hostname string, ok bool)
}

// BindOptions describes the local binding a PublicIPDiscoverer should
// honor while probing for the caller's public IP (so discovery goes
// out the same interface/source address a trace would use).
type BindOptions struct {
	Interface  string
	SourceIPv4 net.IP
}

// PublicIPDiscoverer is the STUN collaborator: discovers the caller's
// public IPv4 address. A failure here is downgraded (spec §7): the
// classifier proceeds with public IP unknown.
type PublicIPDiscoverer interface {
	DiscoverPublicIP(ctx context.Context, opts BindOptions, timeout time.Duration) (ip net.IP, ok bool)
}

// LoadDirection selects which direction(s) a LoadGenerator should
// saturate during a bufferbloat test.
type LoadDirection string

const (
	LoadUpload        LoadDirection = "upload"
	LoadDownload       LoadDirection = "download"
	LoadBidirectional  LoadDirection = "bidirectional"
)

// LoadGenerator is the bulk-transfer collaborator bufferbloat testing
// composes with a ping session: it saturates the link for the
// requested duration while the engine measures latency concurrently.
// HTTP upload/download mechanics are outside this engine's scope.
type LoadGenerator interface {
	GenerateLoad(ctx context.Context, target string, direction LoadDirection, streams int, d time.Duration) error
}

// NoopLoadGenerator is a LoadGenerator that does nothing but wait out
// the requested duration. It lets Engine.TestBufferbloat be exercised
// end-to-end (e.g. in tests) without a real bulk-transfer
// collaborator wired in.
type NoopLoadGenerator struct{}

func (NoopLoadGenerator) GenerateLoad(ctx context.Context, target string, direction LoadDirection, streams int, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
