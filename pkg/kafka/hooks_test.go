package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestTraceHookKeepsHeaderID(t *testing.T) {
	h := NewTraceHook()
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}

	ctx, _, _, err := h.BeforeHandle(context.Background(), "trades", km, nil)
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if got := TraceIDFrom(ctx); got != "abc" {
		t.Fatalf("trace id = %q", got)
	}
}

func TestTraceHookGeneratesID(t *testing.T) {
	ctx, _, _, _ := NewTraceHook().BeforeHandle(context.Background(), "trades", kafka.Message{}, nil)
	if len(TraceIDFrom(ctx)) != 36 {
		t.Fatalf("expected uuid trace id, got %q", TraceIDFrom(ctx))
	}
}

func TestHookChainStopsOnError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	chain := NewHookChain(
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
				calls = append(calls, "first")
				return ctx, km, d, boom
			},
			Err: func(context.Context, string, kafka.Message, []byte, error) { calls = append(calls, "err") },
		},
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
				calls = append(calls, "second")
				return ctx, km, d, nil
			},
		},
	)

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "err" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestHookChainRecoversPanic(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("err = %v", err)
	}
}

func TestLaneForIsStable(t *testing.T) {
	c := &Consumer{lanes: make([]chan *message, 4)}
	for p := 0; p < 16; p++ {
		a, b := c.laneFor("trades", p), c.laneFor("trades", p)
		if a != b || a < 0 || a >= 4 {
			t.Fatalf("partition %d: lanes %d/%d", p, a, b)
		}
	}
}

func TestHeadersCarryTraceID(t *testing.T) {
	h := headersFor(WithTraceID(context.Background(), "t-1"))
	if len(h) != 2 || h[0].Key != "event_id" || h[1].Key != "trace_id" || string(h[1].Value) != "t-1" {
		t.Fatalf("headers = %+v", h)
	}
	if h := headersFor(context.Background()); len(h) != 1 {
		t.Fatalf("headers without trace = %+v", h)
	}
}
