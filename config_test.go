package authkit

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authkit/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningSecret = testSecret
	return cfg
}

func TestDefaultConfigNeedsOnlySecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, token.ErrWeakSecret) {
		t.Fatalf("missing secret err = %v", err)
	}
	cfg = validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute || cfg.Session.AbsoluteTimeout != 24*time.Hour {
		t.Fatalf("session defaults = %+v", cfg.Session)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"short secret", func(c *Config) { c.Token.SigningSecret = []byte("short") }, false},
		{"hs512", func(c *Config) { c.Token.Algorithm = token.HS512 }, true},
		{"rs256", func(c *Config) { c.Token.Algorithm = "RS256" }, false},
		{"none", func(c *Config) { c.Token.Algorithm = "none" }, false},
		{"zero access ttl", func(c *Config) { c.Token.AccessTTL = 0 }, false},
		{"leeway ok", func(c *Config) { c.Token.Leeway = 30 * time.Second }, true},
		{"leeway too large", func(c *Config) { c.Token.Leeway = 3 * time.Minute }, false},
		{"refresh shorter than access", func(c *Config) { c.Refresh.TTL = time.Minute }, false},
		{"refresh token bytes", func(c *Config) { c.Refresh.TokenBytes = 16 }, false},
		{"idle above absolute", func(c *Config) { c.Session.IdleTimeout = 48 * time.Hour }, false},
		{"session id bytes", func(c *Config) { c.Session.IDBytes = 8 }, false},
		{"zero max attempts", func(c *Config) { c.Rate.MaxAttempts = 0 }, false},
		{"zero lockout", func(c *Config) { c.Rate.LockoutDuration = 0 }, false},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }, false},
		{"audit zero buffer", func(c *Config) { c.Audit.BufferSize = 0 }, false},
		{"audit disabled zero buffer", func(c *Config) { c.Audit.Enabled = false; c.Audit.BufferSize = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("error %v does not wrap ErrInvalidConfig", err)
				}
			}
		})
	}
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestConfigFromEnv(t *testing.T) {
	cfg, err := ConfigFromEnv(envLookup(map[string]string{
		EnvSigningSecret:          string(testSecret),
		EnvTokenAlgorithm:         "hs384",
		EnvAccessTTL:              "5m",
		EnvRefreshTTL:             "7d",
		EnvSessionIdleTimeout:     "1h30m",
		EnvSessionAbsoluteTimeout: "12h",
		EnvRateWindow:             "60s",
		EnvRateMaxAttempts:        "3",
		EnvLockoutDuration:        "2h",
		EnvIssuer:                 "authkit-demo",
		EnvAudience:               "api",
		EnvRedisAddr:              " localhost:6379 ",
	}))
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}

	if cfg.Token.Algorithm != token.HS384 || cfg.Token.AccessTTL != 5*time.Minute {
		t.Fatalf("token = %+v", cfg.Token)
	}
	if cfg.Refresh.TTL != 7*24*time.Hour {
		t.Fatalf("refresh ttl = %v", cfg.Refresh.TTL)
	}
	if cfg.Session.IdleTimeout != 90*time.Minute || cfg.Session.AbsoluteTimeout != 12*time.Hour {
		t.Fatalf("session = %+v", cfg.Session)
	}
	if cfg.Rate.Window != time.Minute || cfg.Rate.MaxAttempts != 3 || cfg.Rate.LockoutDuration != 2*time.Hour {
		t.Fatalf("rate = %+v", cfg.Rate)
	}
	if cfg.Token.Issuer != "authkit-demo" || cfg.Token.Audience != "api" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("strings = %q %q %q", cfg.Token.Issuer, cfg.Token.Audience, cfg.Redis.Addr)
	}
}

func TestConfigFromEnvFailsFastWithoutSecret(t *testing.T) {
	_, err := ConfigFromEnv(envLookup(map[string]string{}))
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, token.ErrWeakSecret) {
		t.Fatalf("err = %v", err)
	}

	_, err = ConfigFromEnv(envLookup(map[string]string{EnvSigningSecret: "too-short"}))
	if !errors.Is(err, token.ErrWeakSecret) {
		t.Fatalf("short secret err = %v", err)
	}
}

func TestConfigFromEnvRejectsGarbage(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"duration": {EnvSigningSecret: string(testSecret), EnvAccessTTL: "soon"},
		"attempts": {EnvSigningSecret: string(testSecret), EnvRateMaxAttempts: "many"},
	} {
		_, err := ConfigFromEnv(envLookup(env))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: err = %v", name, err)
		}
		if !strings.Contains(err.Error(), "AUTHKIT_") {
			t.Fatalf("%s: error does not name the variable: %v", name, err)
		}
	}
}
