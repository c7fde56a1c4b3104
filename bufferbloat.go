package swiftftr

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

// BufferbloatConfig parameterizes TestBufferbloat (spec §4.11).
type BufferbloatConfig struct {
	Target           string
	BaselineDuration time.Duration
	LoadDuration     time.Duration
	LoadType         LoadDirection
	ParallelStreams  int
	PingInterval     time.Duration
	CalculateRPM     bool
}

// TestBufferbloat measures latency-under-load inflation against
// Target (spec §4.11): a baseline ping phase, then a ping phase
// running concurrently with the engine's LoadGenerator collaborator,
// compared via p50/p99 inflation, an A-F grade, an optional RPM
// score, and a qualitative video-call-impact label.
func (e *Engine) TestBufferbloat(ctx context.Context, bc BufferbloatConfig, load LoadGenerator) (BufferbloatResult, error) {
	if load == nil {
		load = NoopLoadGenerator{}
	}

	baselineCount := pingCountFor(bc.BaselineDuration, bc.PingInterval)
	baseline, err := e.Ping(ctx, bc.Target, PingConfig{Count: baselineCount, Interval: bc.PingInterval, Timeout: pingTimeoutFor(bc.PingInterval), PayloadSize: 56})
	if err != nil {
		return BufferbloatResult{}, err
	}

	loadedCount := pingCountFor(bc.LoadDuration, bc.PingInterval)
	g, gctx := errgroup.WithContext(ctx)
	var loaded PingResult
	g.Go(func() error {
		var err error
		loaded, err = e.Ping(gctx, bc.Target, PingConfig{Count: loadedCount, Interval: bc.PingInterval, Timeout: pingTimeoutFor(bc.PingInterval), PayloadSize: 56})
		return err
	})
	g.Go(func() error {
		return load.GenerateLoad(gctx, bc.Target, bc.LoadType, bc.ParallelStreams, bc.LoadDuration)
	})
	if err := g.Wait(); err != nil {
		return BufferbloatResult{}, err
	}

	baselineSample := computeLatencySample(baseline.Responses)
	loadedSample := computeLatencySample(loaded.Responses)

	result := BufferbloatResult{Baseline: baselineSample, Loaded: loadedSample}
	result.InflationAbsolute = loadedSample.P50 - baselineSample.P50
	if baselineSample.P50 > 0 {
		result.InflationPercent = float64(result.InflationAbsolute) / float64(baselineSample.P50) * 100
	}
	result.P99Inflation = loadedSample.P99 - baselineSample.P99
	result.Grade = gradeBufferbloat(result.InflationPercent, result.InflationAbsolute)
	result.VideoCallImpact = videoCallImpact(loadedSample.P95, loadedSample.Jitter)

	if bc.CalculateRPM {
		result.RPM = computeRPM(baseline.Responses, loaded.Responses)
		result.HasRPM = true
	}

	return result, nil
}

func pingCountFor(d, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int(d / interval)
	if n < 1 {
		n = 1
	}
	return n
}

func pingTimeoutFor(interval time.Duration) time.Duration {
	if interval < time.Second {
		return time.Second
	}
	return interval
}

// computeLatencySample summarizes one ping phase's RTT distribution
// (spec §4.11 step 1): count, min/avg/max, p50/p95/p99, and population
// stddev (jitter) — all in terms of the received responses only.
func computeLatencySample(responses []PingResponse) LatencySample {
	var rttsMs []float64
	for _, r := range responses {
		if r.HasRTT {
			rttsMs = append(rttsMs, float64(r.RTT.Microseconds())/1000.0)
		}
	}
	var sample LatencySample
	sample.Count = len(rttsMs)
	if sample.Count == 0 {
		return sample
	}
	min, _ := stats.Min(rttsMs)
	max, _ := stats.Max(rttsMs)
	avg, _ := stats.Mean(rttsMs)
	p50, _ := stats.Percentile(rttsMs, 50)
	p95, _ := stats.Percentile(rttsMs, 95)
	p99, _ := stats.Percentile(rttsMs, 99)
	sample.Min = msToDuration(min)
	sample.Max = msToDuration(max)
	sample.Avg = msToDuration(avg)
	sample.P50 = msToDuration(p50)
	sample.P95 = msToDuration(p95)
	sample.P99 = msToDuration(p99)
	if sample.Count >= 2 {
		sd, err := stats.StandardDeviationPopulation(rttsMs)
		if err == nil {
			sample.Jitter = msToDuration(sd)
		}
	}
	return sample
}

// gradeBufferbloat applies spec §4.11 step 4's grade table.
func gradeBufferbloat(percent float64, absolute time.Duration) Grade {
	ms := float64(absolute) / float64(time.Millisecond)
	switch {
	case percent < 5 && ms < 5:
		return GradeA
	case percent < 25 && ms < 30:
		return GradeB
	case percent < 100 && ms < 100:
		return GradeC
	case percent < 400 && ms < 300:
		return GradeD
	default:
		return GradeF
	}
}

// computeRPM derives the optional round-trips-per-minute score (spec
// §4.11 step 5): 60 divided by the mean RTT in seconds, for the loaded
// and baseline phases respectively.
func computeRPM(baseline, loaded []PingResponse) RPMResult {
	workingRPM := rpmFrom(loaded)
	idleRPM := rpmFrom(baseline)
	return RPMResult{WorkingRPM: workingRPM, IdleRPM: idleRPM, Grade: gradeRPM(workingRPM)}
}

func rpmFrom(responses []PingResponse) float64 {
	var secs []float64
	for _, r := range responses {
		if r.HasRTT {
			secs = append(secs, r.RTT.Seconds())
		}
	}
	if len(secs) == 0 {
		return 0
	}
	avg, _ := stats.Mean(secs)
	if avg <= 0 {
		return 0
	}
	return 60 / avg
}

func gradeRPM(rpm float64) RPMGrade {
	switch {
	case rpm >= 6000:
		return RPMExcellent
	case rpm >= 1000:
		return RPMGood
	case rpm >= 300:
		return RPMFair
	default:
		return RPMPoor
	}
}

// videoCallImpact qualifies how much latency-under-load would disrupt
// a video call (spec §4.11 step 6): impact is judged from the loaded
// phase's p95 and jitter, with severity scaled by how far past the
// "impacts video" threshold they are.
func videoCallImpact(p95, jitter time.Duration) VideoCallSeverity {
	const (
		p95Threshold    = 150 * time.Millisecond
		jitterThreshold = 50 * time.Millisecond
	)
	if p95 < p95Threshold && jitter < jitterThreshold {
		return VideoCallNone
	}
	switch {
	case p95 >= 500*time.Millisecond || jitter >= 150*time.Millisecond:
		return VideoCallSevere
	case p95 >= 300*time.Millisecond || jitter >= 100*time.Millisecond:
		return VideoCallModerate
	default:
		return VideoCallMinor
	}
}
