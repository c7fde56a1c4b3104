package swiftftr

import (
	"context"
	"net"
	"time"

	"github.com/Network-Weather/swiftftr/internal/correlator"
	"github.com/Network-Weather/swiftftr/internal/probesock"
	"github.com/Network-Weather/swiftftr/internal/wire"
)

// TraceEvent is one newly-resolved hop yielded by TraceStream, in
// arrival order (spec §4.6: "sorted only by arrival").
type TraceEvent struct {
	Hop TraceHop
}

// TraceStream runs a streaming traceroute to host (spec §4.6): the
// same send phase as Trace, but the receive phase yields each hop on
// the returned channel as soon as it is known, retries an
// unresponsive TTL once after retryAfter, and emits the remaining
// timeouts when the deadline fires. The channel is closed when the
// stream ends, whether by deadline, by ctx cancellation, or once every
// TTL up to the destination (or MaxHops) has been emitted.
func (e *Engine) TraceStream(ctx context.Context, host string, retryAfter time.Duration) (<-chan TraceEvent, error) {
	ctx, done := e.track(ctx)

	cfg := e.cfg
	dst, err := resolveIPv4(ctx, host)
	if err != nil {
		done()
		return nil, err
	}
	sess, err := probesock.Open(probesock.Options{Interface: cfg.Interface, SourceIPv4: cfg.SourceIPv4})
	if err != nil {
		done()
		return nil, err
	}

	corr := correlator.New()
	out := make(chan TraceEvent)

	go func() {
		defer done()
		defer sess.Close()
		defer close(out)
		e.runStream(ctx, sess, corr, dst, cfg, retryAfter, out)
	}()

	return out, nil
}

// runStream drives the send/receive/retry/timeout logic for one
// streaming trace, emitting to out as each TTL resolves.
func (e *Engine) runStream(ctx context.Context, sess *probesock.Session, corr *correlator.Correlator, dst net.IP, cfg Config, retryAfter time.Duration, out chan<- TraceEvent) {
	start := e.clock()
	sentAt := make([]time.Time, cfg.MaxHops+1) // 1-indexed by ttl
	retried := make([]bool, cfg.MaxHops+1)
	filled := make([]bool, cfg.MaxHops+1)
	reachedTTL := -1

	send := func(ttl int) bool {
		if err := sess.SetTTL(ttl); err != nil {
			return false
		}
		seq := uint16(ttl)
		now := e.clock()
		pkt := wire.BuildEchoRequest(corr.ID(), seq, cfg.PayloadSize)
		if err := sess.Send(pkt, dst); err != nil {
			return false
		}
		corr.Track(seq, ttl, now)
		sentAt[ttl] = now
		return true
	}

	for ttl := 1; ttl <= cfg.MaxHops; ttl++ {
		if !send(ttl) {
			return
		}
	}

	deadline := start.Add(cfg.MaxWait)

	for {
		now := e.clock()
		if now.After(deadline) || ctx.Err() != nil {
			break
		}
		if reachedTTL != -1 && allFilledBelow(filled, reachedTTL) {
			break
		}

		wait := pollInterval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		sess.Drain(wait, func(dg probesock.Datagram) {
			msg, ok := wire.Parse(dg.Payload)
			if !ok {
				return
			}
			ttl, rtt, ok := corr.Resolve(msg.Seq, msg.ID, msg.HasID, e.clock())
			if !ok || ttl < 1 || ttl > cfg.MaxHops || filled[ttl] {
				return
			}
			filled[ttl] = true
			hop := TraceHop{TTL: ttl, IP: dg.Src, RTT: rtt, HasRTT: true}
			if msg.Type == wire.TypeEchoReply && dg.Src.Equal(dst) {
				hop.ReachedDestination = true
				if reachedTTL == -1 || ttl < reachedTTL {
					reachedTTL = ttl
				}
			}
			select {
			case out <- TraceEvent{Hop: hop}:
			case <-ctx.Done():
			}
		})

		now = e.clock()
		for ttl := 1; ttl <= cfg.MaxHops; ttl++ {
			if filled[ttl] || retried[ttl] {
				continue
			}
			if now.Sub(sentAt[ttl]) >= retryAfter {
				retried[ttl] = true
				send(ttl)
			}
		}
	}

	limit := cfg.MaxHops
	if reachedTTL != -1 {
		limit = reachedTTL
	}
	for ttl := 1; ttl <= limit; ttl++ {
		if filled[ttl] {
			continue
		}
		select {
		case out <- TraceEvent{Hop: TraceHop{TTL: ttl}}:
		case <-ctx.Done():
			return
		}
	}
}

func allFilledBelow(filled []bool, reachedTTL int) bool {
	for ttl := 1; ttl < reachedTTL; ttl++ {
		if !filled[ttl] {
			return false
		}
	}
	return true
}
