package kafka

import (
	"errors"
	"fmt"
	"testing"
)

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")
	p := Permanent(base)

	if !IsPermanent(p) {
		t.Fatalf("expected permanent")
	}
	if !errors.Is(p, base) {
		t.Fatalf("permanent error must unwrap to its cause")
	}
	if !IsPermanent(fmt.Errorf("handle: %w", p)) {
		t.Fatalf("wrapping must keep the mark")
	}
	if IsPermanent(base) {
		t.Fatalf("plain error marked permanent")
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) must be nil")
	}
	if Permanent(p) != p {
		t.Fatalf("double wrapping")
	}
}
