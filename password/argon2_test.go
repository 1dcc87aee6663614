package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	hasher := newHasher(t, fastConfig())

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	parts := strings.Split(hash, "$")
	if strings.HasSuffix(parts[4], "=") || strings.HasSuffix(parts[5], "=") {
		t.Fatalf("padded base64 in hash: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v", ok, err)
	}
	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil || ok {
		t.Fatalf("wrong password Verify = %v, %v", ok, err)
	}
}

func TestSaltIsRandom(t *testing.T) {
	hasher := newHasher(t, fastConfig())
	a, _ := hasher.Hash("same-password")
	b, _ := hasher.Hash("same-password")
	if a == b {
		t.Fatal("identical hashes for identical passwords")
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := newHasher(t, fastConfig())
	hash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if need, err := weak.NeedsRehash(hash); err != nil || need {
		t.Fatalf("same config NeedsRehash = %v, %v", need, err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	if need, err := newHasher(t, stronger).NeedsRehash(hash); err != nil || !need {
		t.Fatalf("stronger config NeedsRehash = %v, %v", need, err)
	}

	// Verification still uses the parameters recorded in the hash.
	if ok, err := newHasher(t, stronger).Verify("upgrade-me-please", hash); err != nil || !ok {
		t.Fatalf("cross-config Verify = %v, %v", ok, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := newHasher(t, fastConfig())
	for _, bad := range []string{
		"",
		"not-a-hash",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,x=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$short$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		if _, err := hasher.Verify("whatever-password", bad); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("Verify(%q) err = %v, want ErrMalformedHash", bad, err)
		}
	}
}

func TestPasswordLengthBounds(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 64
	hasher := newHasher(t, cfg)

	if _, err := hasher.Hash(""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("empty err = %v", err)
	}
	if _, err := hasher.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short err = %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("long err = %v", err)
	}

	exact := strings.Repeat("b", 64)
	hash, err := hasher.Hash(exact)
	if err != nil {
		t.Fatalf("max-length Hash: %v", err)
	}
	if ok, err := hasher.Verify(exact, hash); err != nil || !ok {
		t.Fatalf("max-length Verify = %v, %v", ok, err)
	}
	if _, err := hasher.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("long Verify err = %v", err)
	}
}

func TestDefaultMaxPasswordBytesApplied(t *testing.T) {
	hasher := newHasher(t, fastConfig())
	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected password > %d bytes to be rejected", DefaultMaxPasswordBytes)
	}
	if _, err := hasher.Hash(strings.Repeat("e", DefaultMaxPasswordBytes)); err != nil {
		t.Fatalf("expected password of exactly %d bytes to be accepted: %v", DefaultMaxPasswordBytes, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	} {
		cfg := fastConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := NewArgon2(DefaultConfig()); err != nil {
		t.Fatalf("DefaultConfig rejected: %v", err)
	}
}
