package swiftftr

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/Network-Weather/swiftftr/internal/correlator"
	"github.com/Network-Weather/swiftftr/internal/probesock"
	"github.com/Network-Weather/swiftftr/internal/wire"
)

// PingConfig parameterizes a single Ping call (spec §4.7's
// count/interval/timeout/payload_size), independent of the engine's
// traceroute-oriented MaxHops/MaxWait.
type PingConfig struct {
	Count       int
	Interval    time.Duration
	Timeout     time.Duration
	PayloadSize int
}

// Ping runs count Echo Requests to host over one socket session, with
// a concurrent sender and receiver (spec §4.7). Multiple Ping calls on
// the same Engine run independently and in parallel; nothing here is
// restricted to one instance per engine.
func (e *Engine) Ping(ctx context.Context, host string, pc PingConfig) (PingResult, error) {
	ctx, done := e.track(ctx)
	defer done()

	dst, err := resolveIPv4(ctx, host)
	if err != nil {
		return PingResult{}, err
	}
	sess, err := probesock.Open(probesock.Options{Interface: e.cfg.Interface, SourceIPv4: e.cfg.SourceIPv4})
	if err != nil {
		return PingResult{}, err
	}
	defer sess.Close()
	if err := sess.SetTTL(64); err != nil {
		return PingResult{}, err
	}

	corr := correlator.New()
	responses := make([]PingResponse, pc.Count)
	for i := range responses {
		responses[i] = PingResponse{Sequence: i + 1}
	}

	var lastSend time.Time
	sendDone := make(chan struct{})

	go func() {
		defer close(sendDone)
		for seq := 1; seq <= pc.Count; seq++ {
			now := e.clock()
			pkt := wire.BuildEchoRequest(corr.ID(), uint16(seq), pc.PayloadSize)
			corr.Track(uint16(seq), 64, now)
			if err := sess.Send(pkt, dst); err != nil {
				return
			}
			responses[seq-1].Timestamp = now
			lastSend = now
			if seq < pc.Count {
				select {
				case <-time.After(pc.Interval):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	sending := true
	var deadline time.Time

	for {
		if sending {
			select {
			case <-sendDone:
				sending = false
				deadline = lastSend.Add(pc.Timeout)
			default:
			}
		}
		now := e.clock()
		remaining := deadline.Sub(now)
		if (!sending && remaining <= 0) || ctx.Err() != nil {
			break
		}
		wait := pollInterval
		if !sending && remaining < wait {
			wait = remaining
		}
		_, derr := sess.Drain(wait, func(dg probesock.Datagram) {
			msg, ok := wire.Parse(dg.Payload)
			if !ok || msg.Type != wire.TypeEchoReply {
				return
			}
			_, rtt, ok := corr.Resolve(msg.Seq, msg.ID, msg.HasID, e.clock())
			if !ok {
				return
			}
			seq := int(msg.Seq)
			if seq < 1 || seq > pc.Count {
				return
			}
			responses[seq-1].RTT = rtt
			responses[seq-1].HasRTT = true
			responses[seq-1].TTL = 64
			responses[seq-1].HasTTL = true
		})
		if derr != nil {
			break
		}
		if !sending && len(corr.Outstanding()) == 0 {
			break
		}
	}
	<-sendDone

	return PingResult{Responses: responses, Stats: computePingStatistics(responses)}, nil
}

// computePingStatistics derives PingStatistics from a completed set of
// responses (spec §4.7): loss, min/avg/max over received RTTs, and
// jitter as the population standard deviation of received RTTs.
func computePingStatistics(responses []PingResponse) PingStatistics {
	st := PingStatistics{Sent: len(responses)}

	var rttsMs []float64
	for _, r := range responses {
		if r.HasRTT {
			st.Received++
			rttsMs = append(rttsMs, float64(r.RTT.Microseconds())/1000.0)
		}
	}
	if st.Sent > 0 {
		st.Loss = 1 - float64(st.Received)/float64(st.Sent)
	}
	if st.Received >= 1 {
		min, _ := stats.Min(rttsMs)
		max, _ := stats.Max(rttsMs)
		avg, _ := stats.Mean(rttsMs)
		st.Min = msToDuration(min)
		st.Max = msToDuration(max)
		st.Avg = msToDuration(avg)
		st.HasRTTStats = true
	}
	if st.Received >= 2 {
		sd, err := stats.StandardDeviationPopulation(rttsMs)
		if err == nil {
			st.Jitter = msToDuration(sd)
			st.HasJitter = true
		}
	}
	return st
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
