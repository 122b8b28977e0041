package cache

import (
	"testing"
	"time"
)

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("CACHE_DEFAULT_TTL", "7200")
	t.Setenv("CACHE_EXPANDED_TTL", "15m")

	cfg, err := NewConfigFromEnv()
	if err != nil {
		t.Fatalf("NewConfigFromEnv() error = %v", err)
	}
	if cfg.Address() != "redis.internal:6380" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.DefaultTTL != 2*time.Hour {
		t.Errorf("DefaultTTL = %v, want 2h", cfg.DefaultTTL)
	}
	if cfg.ExpandedTTL != 15*time.Minute {
		t.Errorf("ExpandedTTL = %v, want 15m", cfg.ExpandedTTL)
	}
	if cfg.Namespace != "pokenest" {
		t.Errorf("Namespace = %q, want pokenest", cfg.Namespace)
	}
}

func TestNewConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"REDIS_PORT", "sixty"},
		{"REDIS_DB", "zero"},
		{"REDIS_POOL_SIZE", "-x"},
		{"CACHE_DEFAULT_TTL", "forever"},
		{"CACHE_EXPANDED_TTL", "1 hour"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := NewConfigFromEnv(); err == nil {
				t.Errorf("expected an error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
