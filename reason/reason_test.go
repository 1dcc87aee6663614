package reason

import (
	"errors"
	"fmt"
	"testing"
)

func TestOfUnwrapsWrappedReason(t *testing.T) {
	err := fmt.Errorf("%w: exp 12 < now 13", Expired)
	if got := Of(err); got != Expired {
		t.Fatalf("expected Expired, got %v", got)
	}
	if Of(errors.New("boom")) != None {
		t.Fatal("plain errors carry no reason")
	}
}

func TestSessionExpiriesMatchExpired(t *testing.T) {
	for _, r := range []Reason{IdleExpired, AbsoluteExpired} {
		if !errors.Is(fmt.Errorf("wrap: %w", r), Expired) {
			t.Fatalf("%v should match Expired", r)
		}
	}
	if errors.Is(Hijacked, Expired) {
		t.Fatal("hijack must stay distinct from expiry")
	}
	if errors.Is(Expired, IdleExpired) {
		t.Fatal("Expired must not match the narrower IdleExpired")
	}
}

func TestPublicMessagesHideDetail(t *testing.T) {
	if Hijacked.Public() != "session expired" {
		t.Fatalf("unexpected public message %q", Hijacked.Public())
	}
	if SignatureMismatch.Public() != "unauthorized" {
		t.Fatalf("unexpected public message %q", SignatureMismatch.Public())
	}
	if !Hijacked.IsSecurityEvent() || IdleExpired.IsSecurityEvent() {
		t.Fatal("security classification mismatch")
	}
}
