package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(0, 0)
	l := New()
	l.now = func() time.Time { return now }

	if !l.Allow("AAPL", 2, 1) || !l.Allow("AAPL", 2, 1) {
		t.Fatalf("burst of 2 must pass")
	}
	if l.Allow("AAPL", 2, 1) {
		t.Fatalf("third call must be limited")
	}
	if !l.Allow("MSFT", 2, 1) {
		t.Fatalf("keys are independent")
	}

	now = now.Add(time.Second)
	if !l.Allow("AAPL", 2, 1) {
		t.Fatalf("one token refilled after a second")
	}
	if l.Allow("AAPL", 2, 1) {
		t.Fatalf("only one token refilled")
	}

	l.Forget("AAPL")
	if !l.Allow("AAPL", 2, 1) {
		t.Fatalf("forgotten key starts full")
	}
}
