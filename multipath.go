package swiftftr

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Network-Weather/swiftftr/internal/correlator"
)

// multipathIDStride is the fixed prime spec §4.8 spaces successive
// flow variations' ICMP identifiers by, chosen so identifiers stay
// well-distributed across the 16-bit space given a small variation
// count.
const multipathIDStride = 173

// multipathBatchSize bounds how many flow variations run concurrently
// per round; batches themselves run sequentially so a round's results
// can feed the early-stop decision before the next round starts.
const multipathBatchSize = 5

// MultipathConfig parameterizes DiscoverPaths (spec §4.8).
type MultipathConfig struct {
	FlowVariations     int
	MaxPaths           int
	EarlyStopThreshold int
}

// DiscoverPaths runs flow-varied traceroutes to host to enumerate the
// distinct ECMP paths toward it (spec §4.8). Variation k's ICMP
// identifier is the session's base identifier plus k*173 mod 2^16;
// a path's fingerprint is its hop-IP sequence (or "*" for a timeout)
// joined by "|".
func (e *Engine) DiscoverPaths(ctx context.Context, host string, mc MultipathConfig) (NetworkTopology, error) {
	ctx, done := e.track(ctx)
	defer done()
	start := e.clock()

	base := correlator.New().ID()
	seen := make(map[string]bool)
	var paths []DiscoveredPath
	consecutiveDup := 0

	for variation := 0; variation < mc.FlowVariations; variation += multipathBatchSize {
		end := variation + multipathBatchSize
		if end > mc.FlowVariations {
			end = mc.FlowVariations
		}

		batch, err := e.runMultipathBatch(ctx, host, base, variation, end)
		if err != nil {
			return NetworkTopology{}, err
		}

		for _, dp := range batch {
			fp := dp.Fingerprint
			if seen[fp] {
				dp.Unique = false
				consecutiveDup++
			} else {
				dp.Unique = true
				seen[fp] = true
				consecutiveDup = 0
			}
			paths = append(paths, dp)

			if len(seen) >= mc.MaxPaths {
				return finalizeTopology(host, paths, len(seen), e.clock().Sub(start)), nil
			}
			if mc.EarlyStopThreshold > 0 && consecutiveDup >= mc.EarlyStopThreshold {
				return finalizeTopology(host, paths, len(seen), e.clock().Sub(start)), nil
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	return finalizeTopology(host, paths, len(seen), e.clock().Sub(start)), nil
}

func finalizeTopology(host string, paths []DiscoveredPath, uniqueCount int, dur time.Duration) NetworkTopology {
	return NetworkTopology{
		Destination:       host,
		Paths:             paths,
		UniquePathCount:   uniqueCount,
		DiscoveryDuration: dur,
	}
}

// runMultipathBatch runs variations [start, end) in parallel and
// returns their classified traces, fingerprints, and flow identifiers
// in variation order (so early-stop bookkeeping stays deterministic
// regardless of which goroutine finishes first).
func (e *Engine) runMultipathBatch(ctx context.Context, host string, base uint16, start, end int) ([]DiscoveredPath, error) {
	results := make([]DiscoveredPath, end-start)
	g, gctx := errgroup.WithContext(ctx)
	for i := start; i < end; i++ {
		i := i
		g.Go(func() error {
			id := base + uint16(i*multipathIDStride)
			flow := FlowIdentifier{ICMPID: id, Variation: i}
			corr := correlator.NewWithID(id)
			trace, err := e.traceWithCorrelator(gctx, host, corr)
			if err != nil {
				return err
			}
			ct := e.classify(gctx, trace)
			results[i-start] = DiscoveredPath{
				Flow:        flow,
				Trace:       ct,
				Fingerprint: fingerprint(trace),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fingerprint builds the path fingerprint spec §4.8 defines: hop IPs
// ("*" for a timeout) joined by "|".
func fingerprint(trace TraceResult) string {
	parts := make([]string, len(trace.Hops))
	for i, h := range trace.Hops {
		if h.IP == nil {
			parts[i] = "*"
		} else {
			parts[i] = h.IP.String()
		}
	}
	return strings.Join(parts, "|")
}
