package swiftftr

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Engine is the long-lived facade over one Config: it owns the ASN
// resolver and reverse-DNS cache (both safe to share across
// concurrent operations) and tracks in-flight operations so
// Invalidate can cancel them atomically when the network is known to
// have changed (spec §5).
type Engine struct {
	cfg    Config
	clock  func() time.Time
	logger *zap.Logger

	asnResolver *ASNResolver
	rdns        *rdnsCache
	publicIP    PublicIPDiscoverer

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	nextID  int
}

// EngineOption customizes an Engine at construction time, beyond what
// Config covers — currently only the optional PublicIPDiscoverer
// collaborator (spec §1: STUN discovery is outside this engine's
// scope, so it is injected rather than built in).
type EngineOption func(*Engine)

// WithPublicIPDiscoverer installs the collaborator classify and
// multipath use to learn the caller's public IP when Config.PublicIP
// is not set.
func WithPublicIPDiscoverer(d PublicIPDiscoverer) EngineOption {
	return func(e *Engine) { e.publicIP = d }
}

// NewEngine validates cfg and constructs an Engine ready to run
// traces, pings, and multipath discovery against it.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:         cfg,
		clock:       cfg.clock(),
		logger:      cfg.logger(),
		asnResolver: NewASNResolver(cfg),
		cancels:     make(map[int]context.CancelFunc),
	}
	if cfg.RDNSEnabled {
		e.rdns = newRDNSCache(systemHostnameResolver{timeout: 2 * time.Second}, cfg.RDNSCacheSize, cfg.RDNSTTL, e.clock)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// track registers an operation's cancel func with the engine, so
// Invalidate can cancel every operation started before it returns. It returns a derived context and a detach
// function the caller must invoke (deferred) when the operation
// completes normally, so the bookkeeping doesn't grow unbounded.
func (e *Engine) track(ctx context.Context) (context.Context, func()) {
	child, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.cancels[id] = cancel
	e.mu.Unlock()
	return child, func() {
		e.mu.Lock()
		delete(e.cancels, id)
		e.mu.Unlock()
		cancel()
	}
}

// Invalidate cancels every operation currently in flight on this
// Engine (spec's supplemented "network changed" operation: a route or
// interface change invalidates outstanding traces/pings/discoveries
// rather than let them keep reporting on a topology that no longer
// exists). It also empties the ASN and rDNS caches, so answers learned
// on the old network are not reused.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.cancels))
	for _, c := range e.cancels {
		cancels = append(cancels, c)
	}
	e.cancels = make(map[int]context.CancelFunc)
	e.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	e.asnResolver.cache.c.Purge()
	if e.rdns != nil {
		e.rdns.mu.Lock()
		e.rdns.c.Purge()
		e.rdns.mu.Unlock()
	}
}

// resolvePublicIP returns the engine's notion of the client's public
// IP: the configured override if set, otherwise the PublicIPDiscoverer
// collaborator if one was installed, otherwise "unknown" — classify
// degrades gracefully without it (spec §4.10 treats an absent public
// IP the same as an absent ASN answer for it).
func (e *Engine) resolvePublicIP(ctx context.Context) (net.IP, bool) {
	if e.cfg.PublicIP != nil {
		return e.cfg.PublicIP, true
	}
	if e.publicIP != nil {
		return e.publicIP.DiscoverPublicIP(ctx, BindOptions{Interface: e.cfg.Interface, SourceIPv4: e.cfg.SourceIPv4}, 2*time.Second)
	}
	return nil, false
}

// lookupHostnames resolves every hop IP's reverse-DNS name through the
// engine's cache, in parallel, when rDNS is enabled; it returns an
// empty map immediately otherwise.
func (e *Engine) lookupHostnames(ctx context.Context, ips []net.IP) map[string]string {
	out := make(map[string]string, len(ips))
	if e.rdns == nil {
		return out
	}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ip := range ips {
		if ip == nil {
			continue
		}
		ip := ip
		wg.Add(1)
		go func() {
			defer wg.Done()
			if name, ok := e.rdns.Lookup(ctx, ip); ok {
				mu.Lock()
				out[ip.String()] = name
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return out
}
