package swiftftr

import (
	"testing"
	"time"
)

func TestComputePingStatistics(t *testing.T) {
	rtts := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		20 * time.Millisecond,
		20 * time.Millisecond,
	}
	responses := make([]PingResponse, len(rtts))
	for i, rtt := range rtts {
		responses[i] = PingResponse{Sequence: i + 1, RTT: rtt, HasRTT: true}
	}
	st := computePingStatistics(responses)

	if st.Sent != 5 || st.Received != 5 || st.Loss != 0 {
		t.Fatalf("sent/received/loss = %d/%d/%v", st.Sent, st.Received, st.Loss)
	}
	if st.Min != 10*time.Millisecond || st.Max != 30*time.Millisecond || st.Avg != 20*time.Millisecond {
		t.Fatalf("min/avg/max = %v/%v/%v", st.Min, st.Avg, st.Max)
	}
	if !st.HasJitter {
		t.Fatal("expected jitter to be defined")
	}
	wantJitter := 6324555 * time.Nanosecond // sqrt(40) ms ≈ 6.3246 ms
	diff := st.Jitter - wantJitter
	if diff < 0 {
		diff = -diff
	}
	if diff > 10*time.Microsecond {
		t.Fatalf("jitter = %v, want ~%v", st.Jitter, wantJitter)
	}
}

func TestComputePingStatisticsAllLost(t *testing.T) {
	responses := []PingResponse{{Sequence: 1}, {Sequence: 2}}
	st := computePingStatistics(responses)
	if st.Loss != 1 {
		t.Fatalf("loss = %v, want 1", st.Loss)
	}
	if st.HasRTTStats || st.HasJitter {
		t.Fatal("expected no stats when nothing was received")
	}
}

func TestComputePingStatisticsSingleResponseNoJitter(t *testing.T) {
	responses := []PingResponse{{Sequence: 1, RTT: 15 * time.Millisecond, HasRTT: true}, {Sequence: 2}}
	st := computePingStatistics(responses)
	if !st.HasRTTStats {
		t.Fatal("expected RTT stats with one response")
	}
	if st.HasJitter {
		t.Fatal("jitter must be undefined with fewer than two responses")
	}
	if st.Loss != 0.5 {
		t.Fatalf("loss = %v, want 0.5", st.Loss)
	}
}
