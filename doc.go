// Package swiftftr implements a parallel, non-privileged network path
// diagnostics engine: traceroute (batched and streaming), ASN/segment
// classification, ping, multipath (ECMP) discovery, and bufferbloat
// measurement, all built on the unprivileged ICMP datagram socket
// facility (no raw-socket privilege required).
//
// An Engine owns the long-lived, shareable state — ASN and rDNS
// caches — across many independent diagnostic calls; each call owns
// its own socket session for its lifetime and releases it on every
// exit path. Engine configuration is immutable after construction and
// an Engine may be used concurrently from any number of goroutines.
package swiftftr
