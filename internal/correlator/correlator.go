// Package correlator implements the per-session probe correlation
// model shared by the traceroute and ping engines: a stable 16-bit
// session identifier, a map from sequence number to the TTL and send
// time it represents, and the matching policy for inbound replies.
package correlator

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// outstanding is one in-flight probe: the TTL it was sent for and the
// monotonic time it was sent.
type outstanding struct {
	ttl    int
	sentAt time.Time
}

// Correlator tracks outstanding probes for one socket session. It is
// safe for concurrent use by a sender and a receiver goroutine.
type Correlator struct {
	id uint16

	mu      sync.Mutex
	pending map[uint16]outstanding
}

// New creates a Correlator with a fresh random session identifier.
func New() *Correlator {
	return &Correlator{id: randomID(), pending: make(map[uint16]outstanding)}
}

// NewWithID creates a Correlator pinned to a caller-chosen identifier,
// used by the multipath enumerator to steer ECMP hashing via a
// deterministic sequence of identifiers instead of a random one.
func NewWithID(id uint16) *Correlator {
	return &Correlator{id: id, pending: make(map[uint16]outstanding)}
}

func randomID() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable entropy
		// starvation; fall back to a fixed, still-valid identifier
		// rather than propagate an error from every session open.
		return 0xBEEF
	}
	return binary.BigEndian.Uint16(b[:])
}

// ID returns this session's ICMP echo identifier.
func (c *Correlator) ID() uint16 { return c.id }

// Track records that a probe for ttl was sent, under sequence number
// seq, at time sentAt.
func (c *Correlator) Track(seq uint16, ttl int, sentAt time.Time) {
	c.mu.Lock()
	c.pending[seq] = outstanding{ttl: ttl, sentAt: sentAt}
	c.mu.Unlock()
}

// Pending reports whether seq is still awaiting a reply: it was
// tracked and has not yet been matched by Resolve (which removes it).
func (c *Correlator) Pending(seq uint16) (ttl int, sentAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.pending[seq]
	return o.ttl, o.sentAt, ok
}

// Resolve matches an inbound message against the tracked probe for
// seq and, if accepted, removes it from the pending set (first
// responder for a given TTL wins; a later duplicate reply for the
// same sequence finds nothing pending and is ignored).
//
// id is the echo identifier carried by the message, hasID reports
// whether the message carried one at all (embedded-header recovery
// can fail to produce one, in which case the spec's matching policy
// still accepts the reply).
func (c *Correlator) Resolve(seq uint16, id uint16, hasID bool, now time.Time) (ttl int, rtt time.Duration, ok bool) {
	if hasID && id != c.id {
		return 0, 0, false
	}
	c.mu.Lock()
	o, found := c.pending[seq]
	if found {
		delete(c.pending, seq)
	}
	c.mu.Unlock()
	if !found {
		return 0, 0, false
	}
	return o.ttl, now.Sub(o.sentAt), true
}

// Outstanding returns the sequence numbers still awaiting a reply.
func (c *Correlator) Outstanding() []uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seqs := make([]uint16, 0, len(c.pending))
	for seq := range c.pending {
		seqs = append(seqs, seq)
	}
	return seqs
}
