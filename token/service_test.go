package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authkit/reason"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, cfg Config) (*Service, *clock) {
	t.Helper()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	cfg.Clock = c.Now
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return s, c
}

func TestNewRejectsWeakSecret(t *testing.T) {
	for _, secret := range [][]byte{nil, []byte("short"), make([]byte, MinSecretBytes-1)} {
		if _, err := New(Config{Secret: secret}); !errors.Is(err, ErrWeakSecret) {
			t.Fatalf("expected weak secret error for %d bytes, got %v", len(secret), err)
		}
	}
	if _, err := New(Config{Secret: testSecret, Algorithm: "RS256"}); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected unsupported algorithm, got %v", err)
	}
}

func TestRoundTripKeepsPayloadAndAddsRegisteredClaims(t *testing.T) {
	s, c := newService(t, Config{})
	tok, err := s.Create(map[string]any{"sub": "alice", "role": "editor", "n": 7}, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	claims, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject() != "alice" || claims.String("role") != "editor" {
		t.Fatalf("payload lost: %v", claims)
	}
	if n, _ := claims["n"].(float64); n != 7 {
		t.Fatalf("numeric payload lost: %v", claims["n"])
	}
	if claims.ID() == "" {
		t.Fatal("missing jti")
	}
	if !claims.IssuedAt().Equal(c.Now()) || !claims.ExpiresAt().Equal(c.Now().Add(time.Hour)) {
		t.Fatalf("unexpected iat/exp: %v %v", claims.IssuedAt(), claims.ExpiresAt())
	}
}

func TestWireFormatIsCompactJWT(t *testing.T) {
	s, _ := newService(t, Config{})
	tok, err := s.Create(map[string]any{"sub": "u"}, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if strings.Contains(tok, "=") {
		t.Fatalf("token must not be padded: %s", tok)
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(parts))
	}

	rawHeader, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	var header map[string]string
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if header["alg"] != "HS256" {
		t.Fatalf("unexpected header %v", header)
	}

	mac := hmac.New(sha256.New, testSecret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	if want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil)); want != parts[2] {
		t.Fatalf("signature is not HMAC-SHA256 over header.payload")
	}
}

func TestJTIIsUniquePerIssuance(t *testing.T) {
	s, _ := newService(t, Config{})
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := s.Create(nil, time.Minute)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		claims, err := s.Verify(tok)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if seen[claims.ID()] {
			t.Fatalf("duplicate jti %s", claims.ID())
		}
		seen[claims.ID()] = true
	}
}

func TestTamperedSignatureFails(t *testing.T) {
	s, _ := newService(t, Config{})
	tok, err := s.Create(map[string]any{"sub": "alice"}, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	dot := strings.LastIndexByte(tok, '.')

	flip := func(b byte) byte {
		if b == 'A' {
			return 'B'
		}
		return 'A'
	}
	mutated := []byte(tok)
	mutated[dot+1] = flip(mutated[dot+1])

	cases := map[string]string{
		"mutated":  string(mutated),
		"appended": tok + "x",
		"stripped": tok[:dot+1],
	}
	for name, bad := range cases {
		if _, err := s.Verify(bad); err == nil {
			t.Fatalf("%s: tampered token verified", name)
		}
	}
	if _, err := s.Verify(string(mutated)); !errors.Is(err, reason.SignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestTamperedPayloadFails(t *testing.T) {
	s, _ := newService(t, Config{})
	tok, _ := s.Create(map[string]any{"sub": "alice"}, time.Hour)
	parts := strings.Split(tok, ".")
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin","exp":9999999999}`))
	if _, err := s.Verify(parts[0] + "." + forged + "." + parts[2]); !errors.Is(err, reason.SignatureMismatch) {
		t.Fatalf("expected signature mismatch for forged payload, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	s, c := newService(t, Config{})

	for _, ttl := range []time.Duration{0, -time.Minute} {
		tok, err := s.Create(nil, ttl)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err = s.Verify(tok)
		if !errors.Is(err, reason.Expired) || !strings.Contains(err.Error(), "expired") {
			t.Fatalf("ttl %v: expected expired, got %v", ttl, err)
		}
	}

	tok, _ := s.Create(nil, time.Minute)
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("fresh token: %v", err)
	}
	c.Advance(2 * time.Minute)
	if _, err := s.Verify(tok); reason.Of(err) != reason.Expired {
		t.Fatalf("expected expired after clock advance, got %v", err)
	}
}

func TestNotBefore(t *testing.T) {
	s, c := newService(t, Config{})
	tok, err := s.Create(map[string]any{"nbf": c.Now().Add(time.Minute).Unix()}, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Verify(tok); !errors.Is(err, reason.NotYetValid) {
		t.Fatalf("expected not yet valid, got %v", err)
	}
	c.Advance(2 * time.Minute)
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("expected valid after nbf: %v", err)
	}
}

func TestAlgorithmConfusionRejectedBeforeSignature(t *testing.T) {
	s, c := newService(t, Config{})

	// Same secret, different HMAC: the signature would verify under HS512, so only
	// the pinned algorithm check can reject it.
	other := gjwt.NewWithClaims(gjwt.SigningMethodHS512, gjwt.MapClaims{"sub": "x", "exp": c.Now().Add(time.Hour).Unix()})
	hs512, err := other.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(hs512); !errors.Is(err, reason.AlgorithmMismatch) {
		t.Fatalf("expected algorithm mismatch, got %v", err)
	}

	none := gjwt.NewWithClaims(gjwt.SigningMethodNone, gjwt.MapClaims{"sub": "x", "exp": c.Now().Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := s.Verify(unsigned); !errors.Is(err, reason.AlgorithmMismatch) {
		t.Fatalf("expected alg:none to be rejected as mismatch, got %v", err)
	}
}

func TestMalformed(t *testing.T) {
	s, _ := newService(t, Config{})
	for _, bad := range []string{"", "a.b", "a.b.c.d", "!!!.e30.sig", "e30.e30.sig"} {
		if _, err := s.Verify(bad); reason.Of(err) != reason.Malformed && reason.Of(err) != reason.AlgorithmMismatch {
			t.Fatalf("%q: expected malformed, got %v", bad, err)
		}
	}
	if _, err := s.Verify("a.b"); !errors.Is(err, reason.Malformed) {
		t.Fatalf("two segments must be malformed, got %v", err)
	}
}

func TestIssuerAndAudience(t *testing.T) {
	s, _ := newService(t, Config{Issuer: "authkit", Audience: "api"})
	tok, err := s.Create(map[string]any{"sub": "u"}, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("verify: %v", err)
	}

	wrong, err := s.Create(map[string]any{"sub": "u", "aud": "other"}, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Verify(wrong); !errors.Is(err, reason.InvalidClaims) {
		t.Fatalf("expected invalid claims, got %v", err)
	}
}

func TestCreateWithExpiryFallsBack(t *testing.T) {
	s, c := newService(t, Config{DefaultTTL: 5 * time.Minute})
	tok, err := s.CreateWithExpiry(nil, "soon")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	claims, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !claims.ExpiresAt().Equal(c.Now().Add(5 * time.Minute)) {
		t.Fatalf("expected default ttl, got exp %v", claims.ExpiresAt())
	}
}

func TestParseExpiry(t *testing.T) {
	const fb = 42 * time.Second
	cases := map[string]time.Duration{
		"30s":  30 * time.Second,
		"15m":  15 * time.Minute,
		"2h":   2 * time.Hour,
		"7d":   7 * 24 * time.Hour,
		"0s":   0,
		" 1h ": time.Hour,
		"":     fb,
		"h":    fb,
		"10":   fb,
		"10w":  fb,
		"-5m":  fb,
		"1.5h": fb,
		"abcm": fb,
	}
	for in, want := range cases {
		if got := ParseExpiry(in, fb); got != want {
			t.Errorf("ParseExpiry(%q) = %v, want %v", in, got, want)
		}
	}
}
