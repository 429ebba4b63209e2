package core

import (
	"testing"
	"time"
)

func TestHealthGateDeadline(t *testing.T) {
	gate := HealthGate{
		Test:        "pg_isready -U postgres",
		Interval:    5 * time.Second,
		Timeout:     5 * time.Second,
		Retries:     5,
		StartPeriod: 10 * time.Second,
	}

	want := 10*time.Second + 5*(5+5)*time.Second
	if got := gate.Deadline(); got != want {
		t.Fatalf("deadline = %s, want %s", got, want)
	}
}

func TestHealthGateDeadlineDefaults(t *testing.T) {
	gate := HealthGate{Test: "pg_isready"}

	// Zero fields fall back to 5s/5s/5 retries, no grace period.
	want := 5 * (5 + 5) * time.Second
	if got := gate.Deadline(); got != want {
		t.Fatalf("deadline = %s, want %s", got, want)
	}
}

func TestHealthGateDockerConfig(t *testing.T) {
	gate := HealthGate{
		Test:        "pg_isready -U postgres -d test_finance_bot",
		Interval:    5 * time.Second,
		Timeout:     5 * time.Second,
		Retries:     5,
		StartPeriod: 10 * time.Second,
	}

	cfg := gate.DockerConfig()
	if cfg == nil {
		t.Fatalf("expected a health config")
	}
	if len(cfg.Test) != 2 || cfg.Test[0] != "CMD-SHELL" {
		t.Fatalf("expected CMD-SHELL probe, got %v", cfg.Test)
	}
	if cfg.Retries != 5 || cfg.StartPeriod != 10*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestHealthGateDockerConfigEmpty(t *testing.T) {
	gate := HealthGate{}
	if gate.DockerConfig() != nil {
		t.Fatalf("empty probe should produce no health config")
	}
}
