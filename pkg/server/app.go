package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Source is the input stream. *kafka.Consumer implements it.
type Source interface {
	RegisterHandler(h pkgkafka.MessageHandler)
	Start() error
	Stop(ctx context.Context) error
}

// Runner blocks until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// Step is one named shutdown action.
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Components is everything App runs and tears down.
type Components struct {
	Source   Source
	Handlers []pkgkafka.MessageHandler
	// Services run until shutdown begins (scheduler, HTTP server).
	Services []Runner
	// Tails run until the source has stopped, so they see every message
	// the source handed over (raw archive).
	Tails []Runner
	// Drain runs in order once the source and tails are done
	// (router stop, outbox flush).
	Drain []Step
	// Close runs last, in order, without a deadline (clients).
	Close []Step
}

// App encapsulates the entire application lifecycle.
type App struct {
	c               Components
	log             *applogger.Logger
	shutdownTimeout time.Duration
}

// New creates a new App instance with all dependencies.
func New(c Components, log *applogger.Logger, shutdownTimeout time.Duration) *App {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 20 * time.Second
	}
	return &App{c: c, log: log.With(applogger.String("component", "app")), shutdownTimeout: shutdownTimeout}
}

// Run starts the application and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext runs until ctx is done or a service fails, then shuts down:
// source, tails, drain steps, close steps.
func (a *App) RunContext(ctx context.Context) error {
	if a.c.Source != nil {
		for _, h := range a.c.Handlers {
			a.c.Source.RegisterHandler(h)
		}
		if err := a.c.Source.Start(); err != nil {
			a.closeAll()
			return fmt.Errorf("start source: %w", err)
		}
	}

	tailCtx, stopTails := context.WithCancel(context.Background())
	defer stopTails()
	tails, _ := errgroup.WithContext(tailCtx)
	for _, r := range a.c.Tails {
		r := r
		tails.Go(func() error { return r.Run(tailCtx) })
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range a.c.Services {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	a.log.Info("application started")

	<-gctx.Done()
	runErr := g.Wait()
	if runErr != nil {
		a.log.Error("service failed", applogger.Error(runErr))
	} else {
		a.log.Info("shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if a.c.Source != nil {
		if err := a.c.Source.Stop(sctx); err != nil {
			a.log.Warn("source stop error", applogger.Error(err))
			errs = append(errs, fmt.Errorf("source: %w", err))
		}
	}
	stopTails()
	if err := tails.Wait(); err != nil {
		a.log.Warn("tail stop error", applogger.Error(err))
		errs = append(errs, err)
	}
	for _, s := range a.c.Drain {
		if err := s.Fn(sctx); err != nil {
			a.log.Warn("drain error", applogger.String("step", s.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	errs = append(errs, a.closeAll()...)

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeAll() []error {
	var errs []error
	for _, s := range a.c.Close {
		if err := s.Fn(context.Background()); err != nil {
			a.log.Warn("close error", applogger.String("step", s.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errs
}
