package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.BreakerFailureThreshold != 5 {
		t.Errorf("BreakerFailureThreshold = %d, want 5", cfg.BreakerFailureThreshold)
	}
	if cfg.BreakerRecoveryTimeout != 60*time.Second {
		t.Errorf("BreakerRecoveryTimeout = %v, want 60s", cfg.BreakerRecoveryTimeout)
	}
	if cfg.PendingTTL != 72*time.Hour {
		t.Errorf("PendingTTL = %v, want 72h", cfg.PendingTTL)
	}
	if cfg.AIEnabled {
		t.Error("AIEnabled should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "3")
	t.Setenv("BREAKER_CALL_TIMEOUT", "5s")
	t.Setenv("USE_REDIS_PENDING", "true")
	t.Setenv("AI_ENABLED", "true")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.BreakerFailureThreshold != 3 {
		t.Errorf("BreakerFailureThreshold = %d, want 3", cfg.BreakerFailureThreshold)
	}
	if cfg.BreakerCallTimeout != 5*time.Second {
		t.Errorf("BreakerCallTimeout = %v, want 5s", cfg.BreakerCallTimeout)
	}
	if !cfg.UseRedisPending {
		t.Error("UseRedisPending should be true")
	}
	if !cfg.AIEnabled {
		t.Error("AIEnabled should be true")
	}
}

func TestGetEnvAsIntInvalid(t *testing.T) {
	t.Setenv("BREAKER_SUCCESS_THRESHOLD", "not-a-number")

	cfg := Load()
	if cfg.BreakerSuccessThreshold != 2 {
		t.Errorf("BreakerSuccessThreshold = %d, want default 2", cfg.BreakerSuccessThreshold)
	}
}
