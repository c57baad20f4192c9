package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
)

type journal struct {
	mu    sync.Mutex
	steps []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.steps = append(j.steps, s)
	j.mu.Unlock()
}

func (j *journal) String() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return strings.Join(j.steps, ",")
}

type fakeSource struct {
	j        *journal
	handlers int
}

func (f *fakeSource) RegisterHandler(pkgkafka.MessageHandler) { f.handlers++ }
func (f *fakeSource) Start() error                           { f.j.add("source.start"); return nil }
func (f *fakeSource) Stop(context.Context) error             { f.j.add("source.stop"); return nil }

type runnerFunc func(ctx context.Context) error

func (r runnerFunc) Run(ctx context.Context) error { return r(ctx) }

type nopHandler struct{}

func (nopHandler) Topic() string                          { return "t" }
func (nopHandler) Handle(context.Context, []byte) error { return nil }

func step(j *journal, name string) Step {
	return Step{Name: name, Fn: func(context.Context) error { j.add(name); return nil }}
}

func TestAppShutdownOrder(t *testing.T) {
	j := &journal{}
	src := &fakeSource{j: j}
	started := make(chan struct{})

	app := New(Components{
		Source:   src,
		Handlers: []pkgkafka.MessageHandler{nopHandler{}},
		Services: []Runner{runnerFunc(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			j.add("service.stop")
			return nil
		})},
		Tails: []Runner{runnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			j.add("tail.stop")
			return nil
		})},
		Drain: []Step{step(j, "router"), step(j, "outbox")},
		Close: []Step{step(j, "clients")},
	}, applogger.Nop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	<-started
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "source.start,service.stop,source.stop,tail.stop,router,outbox,clients"
	if got := j.String(); got != want {
		t.Fatalf("order = %s\nwant    %s", got, want)
	}
	if src.handlers != 1 {
		t.Fatalf("handlers registered = %d", src.handlers)
	}
}

func TestAppServiceFailureShutsDown(t *testing.T) {
	j := &journal{}
	boom := errors.New("listen failed")
	app := New(Components{
		Services: []Runner{
			runnerFunc(func(context.Context) error { return boom }),
			runnerFunc(func(ctx context.Context) error { <-ctx.Done(); return nil }),
		},
		Drain: []Step{step(j, "router")},
		Close: []Step{step(j, "clients")},
	}, applogger.Nop(), time.Second)

	err := app.RunContext(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if got := j.String(); got != "router,clients" {
		t.Fatalf("steps = %s", got)
	}
}
