package internal

import (
	"encoding/base64"
	"testing"
)

func TestRandomTokenEntropyAndEncoding(t *testing.T) {
	if _, err := RandomToken(8); err == nil {
		t.Fatal("expected short token to be rejected")
	}

	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		tok, err := RandomToken(16)
		if err != nil {
			t.Fatalf("random token: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil || len(raw) != 16 {
			t.Fatalf("token %q is not 16 raw base64url bytes", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") || HashToken("abc") == HashToken("abd") {
		t.Fatal("hash must be deterministic and input-sensitive")
	}
}
