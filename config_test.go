package hookrelay

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative min interval", func(c *Config) { c.MinInterval = -time.Second }},
		{"zero lock ttl", func(c *Config) { c.LockTTL = 0 }},
		{"negative max retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero stuck threshold", func(c *Config) { c.StuckThreshold = 0 }},
		{"zero send timeout", func(c *Config) { c.SendTimeout = 0 }},
		{"lock ttl below worst-case cycle", func(c *Config) {
			c.BatchSize = 100
			c.InterItemSpacing = time.Second
			c.LockTTL = 10 * time.Second
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
