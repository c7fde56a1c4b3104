package swiftftr

import (
	"context"
	"time"

	"github.com/Network-Weather/swiftftr/internal/correlator"
	"github.com/Network-Weather/swiftftr/internal/probesock"
	"github.com/Network-Weather/swiftftr/internal/wire"
)

// pollInterval bounds how long a single receive-phase drain waits for
// readiness before re-checking the early-termination condition and the
// overall deadline. The spec's receive loop waits "up to (deadline -
// now)"; a short, fixed poll keeps the early-termination check
// responsive without busy-looping.
const pollInterval = 50 * time.Millisecond

// Trace runs a single batched traceroute to host against the engine's
// Config (spec §4.5): one burst of Echo Requests, TTLs 1..=MaxHops,
// followed by one receive loop that drains replies until the
// destination is reached (and every lower TTL is accounted for) or the
// deadline passes.
func (e *Engine) Trace(ctx context.Context, host string) (TraceResult, error) {
	ctx, done := e.track(ctx)
	defer done()
	corr := correlator.New()
	return e.traceWithCorrelator(ctx, host, corr)
}

// traceWithCorrelator is the shared batched-traceroute core. The
// multipath enumerator calls it directly with a correlator pinned to a
// flow-variation identifier instead of a random one; Trace uses a
// fresh random identifier per call, per spec §4.3.
func (e *Engine) traceWithCorrelator(ctx context.Context, host string, corr *correlator.Correlator) (TraceResult, error) {
	cfg := e.cfg
	start := e.clock()

	dst, err := resolveIPv4(ctx, host)
	if err != nil {
		return TraceResult{}, err
	}

	sess, err := probesock.Open(probesock.Options{Interface: cfg.Interface, SourceIPv4: cfg.SourceIPv4})
	if err != nil {
		return TraceResult{}, err
	}
	defer sess.Close()

	slots := make([]TraceHop, cfg.MaxHops)
	for i := range slots {
		slots[i] = TraceHop{TTL: i + 1}
	}
	filled := make([]bool, cfg.MaxHops)

	for ttl := 1; ttl <= cfg.MaxHops; ttl++ {
		if err := sess.SetTTL(ttl); err != nil {
			return TraceResult{}, err
		}
		seq := uint16(ttl)
		sendTime := e.clock()
		pkt := wire.BuildEchoRequest(corr.ID(), seq, cfg.PayloadSize)
		if err := sess.Send(pkt, dst); err != nil {
			return TraceResult{}, err
		}
		corr.Track(seq, ttl, sendTime)
	}

	deadline := start.Add(cfg.MaxWait)
	reachedTTL := -1

	for {
		now := e.clock()
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}
		_, derr := sess.Drain(wait, func(dg probesock.Datagram) {
			msg, ok := wire.Parse(dg.Payload)
			if !ok {
				return
			}
			ttl, rtt, ok := corr.Resolve(msg.Seq, msg.ID, msg.HasID, e.clock())
			if !ok || ttl < 1 || ttl > cfg.MaxHops {
				return
			}
			idx := ttl - 1
			if filled[idx] {
				return
			}
			filled[idx] = true
			slots[idx].IP = dg.Src
			slots[idx].RTT = rtt
			slots[idx].HasRTT = true
			if msg.Type == wire.TypeEchoReply && dg.Src.Equal(dst) {
				slots[idx].ReachedDestination = true
				if reachedTTL == -1 || ttl < reachedTTL {
					reachedTTL = ttl
				}
			}
		})
		if derr != nil {
			break
		}
		if reachedTTL != -1 && allAccountedFor(filled, corr, reachedTTL) {
			break
		}
	}

	limit := cfg.MaxHops
	reached := reachedTTL != -1
	if reached {
		limit = reachedTTL
	}
	hops := make([]TraceHop, 0, limit)
	for i := 0; i < limit; i++ {
		hops = append(hops, slots[i])
	}

	return TraceResult{
		Destination:   host,
		DestinationIP: dst,
		Reached:       reached,
		Hops:          hops,
		Duration:      e.clock().Sub(start),
	}, nil
}

// allAccountedFor reports whether every TTL below reachedTTL is either
// filled or no longer outstanding (the correlator dropped it, meaning
// there is nothing left to wait for at that TTL).
func allAccountedFor(filled []bool, corr *correlator.Correlator, reachedTTL int) bool {
	outstanding := make(map[int]bool, len(filled))
	for _, seq := range corr.Outstanding() {
		outstanding[int(seq)] = true
	}
	for ttl := 1; ttl < reachedTTL; ttl++ {
		if filled[ttl-1] {
			continue
		}
		if outstanding[ttl] {
			return false
		}
	}
	return true
}
