package swiftftr

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().validate(); err != nil {
		t.Fatalf("DefaultConfig() should validate, got %v", err)
	}
}

func TestConfigValidateRejectsMaxHopsOutOfRange(t *testing.T) {
	for _, maxHops := range []int{0, -1, 256} {
		cfg := DefaultConfig()
		cfg.MaxHops = maxHops
		if err := cfg.validate(); err == nil {
			t.Errorf("MaxHops=%d: expected a validation error", maxHops)
		}
	}
}

func TestConfigValidateAcceptsMaxHopsBoundaries(t *testing.T) {
	for _, maxHops := range []int{1, 255} {
		cfg := DefaultConfig()
		cfg.MaxHops = maxHops
		if err := cfg.validate(); err != nil {
			t.Errorf("MaxHops=%d: expected no error, got %v", maxHops, err)
		}
	}
}

func TestConfigValidateRejectsNegativePayloadSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PayloadSize = -1
	if err := cfg.validate(); err == nil {
		t.Error("expected a validation error for negative payload_size")
	}
}

func TestConfigValidateRejectsOversizedPayload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PayloadSize = 65507
	if err := cfg.validate(); err == nil {
		t.Error("expected a validation error for an oversized payload_size")
	}
}

func TestConfigValidateRejectsNonPositiveMaxWait(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		cfg := DefaultConfig()
		cfg.MaxWait = d
		if err := cfg.validate(); err == nil {
			t.Errorf("MaxWait=%v: expected a validation error", d)
		}
	}
}

func TestConfigClockDefaultsToTimeNow(t *testing.T) {
	cfg := Config{}
	if cfg.clock() == nil {
		t.Fatal("clock() should never return nil")
	}
}

func TestConfigClockUsesOverride(t *testing.T) {
	fixed := time.Unix(1234, 0)
	cfg := Config{now: func() time.Time { return fixed }}
	if got := cfg.clock()(); !got.Equal(fixed) {
		t.Errorf("clock() = %v, want %v", got, fixed)
	}
}

func TestConfigLoggerDefaultsToNop(t *testing.T) {
	cfg := Config{}
	if cfg.logger() == nil {
		t.Fatal("logger() should never return nil")
	}
}
