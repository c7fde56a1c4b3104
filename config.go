package swiftftr

import (
	"net"
	"time"

	"go.uber.org/zap"
)

// ASNStrategy selects the ASN resolution back-end.
type ASNStrategy int

const (
	// ASNStrategyDNS resolves ASNs via WHOIS-over-DNS TXT queries.
	ASNStrategyDNS ASNStrategy = iota
	// ASNStrategyEmbedded resolves ASNs from an offline prefix-trie
	// database (file-backed or embedded).
	ASNStrategyEmbedded
	// ASNStrategyHybrid tries the embedded database first and falls
	// back to DNS for addresses it cannot find.
	ASNStrategyHybrid
)

// Config holds the immutable configuration for an Engine. It is
// validated once, at NewEngine time; nothing about it changes for the
// lifetime of the Engine.
type Config struct {
	// MaxHops bounds the TTL range probed by a traceroute. Must be in
	// 1..=255.
	MaxHops int
	// MaxWait bounds a batched traceroute's receive phase end-to-end.
	MaxWait time.Duration
	// PayloadSize is the number of filler bytes appended to each ICMP
	// Echo Request, beyond the 8-byte header. Must fit in one ICMP
	// datagram.
	PayloadSize int

	// PublicIP, if set, overrides public-IP discovery (normally
	// delegated to the PublicIPDiscoverer collaborator).
	PublicIP net.IP
	// Interface, if set, restricts outbound probes to this network
	// interface.
	Interface string
	// SourceIPv4, if set, binds outbound probes to this local
	// address.
	SourceIPv4 net.IP

	// RDNSEnabled turns on reverse-DNS hostname lookups during
	// classification.
	RDNSEnabled bool
	// RDNSTTL bounds how long a reverse-DNS cache entry is trusted.
	RDNSTTL time.Duration
	// RDNSCacheSize bounds the number of entries the reverse-DNS
	// cache holds before evicting the least recently used.
	RDNSCacheSize int

	// ASNStrategy selects the ASN resolution back-end.
	ASNStrategy ASNStrategy
	// ASNDatabasePath, when ASNStrategy is Embedded or Hybrid, names
	// an MMDB-format IPv4-to-ASN database file. Empty uses a small
	// built-in table covering well-known ranges only.
	ASNDatabasePath string

	// Logger receives structured diagnostic-engine logs. A nil Logger
	// is treated as zap.NewNop().
	Logger *zap.Logger

	// now returns the current time; overridable for deterministic
	// tests of time-derived fields. Defaults to time.Now.
	now func() time.Time
}

// DefaultConfig returns a Config with the spec's suggested defaults:
// 30 hops, a three second receive budget, a 56-byte payload (the
// traditional ping(8) default), reverse DNS on with a five minute TTL
// and a 1024-entry cache, and hybrid ASN resolution.
func DefaultConfig() Config {
	return Config{
		MaxHops:       30,
		MaxWait:       3 * time.Second,
		PayloadSize:   56,
		RDNSEnabled:   true,
		RDNSTTL:       5 * time.Minute,
		RDNSCacheSize: 1024,
		ASNStrategy:   ASNStrategyHybrid,
	}
}

// validate checks the invariants spec §3 requires of a Config and
// returns the first violation found.
func (c Config) validate() error {
	if c.MaxHops < 1 || c.MaxHops > 255 {
		return &InvalidConfigurationError{Reason: "max_hops must be in 1..=255"}
	}
	if c.PayloadSize < 0 {
		return &InvalidConfigurationError{Reason: "payload_size must be >= 0"}
	}
	// A single ICMP datagram must fit within one IPv4 packet; 65507 is
	// the largest UDP/ICMP payload that can fit under a 65535-byte
	// IPv4 total length with minimal headers.
	if c.PayloadSize > 65507-8 {
		return &InvalidConfigurationError{Reason: "payload_size too large for one ICMP datagram"}
	}
	if c.MaxWait <= 0 {
		return &InvalidConfigurationError{Reason: "max_wait must be positive"}
	}
	return nil
}

func (c Config) clock() func() time.Time {
	if c.now != nil {
		return c.now
	}
	return time.Now
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
