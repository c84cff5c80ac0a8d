package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/reelq/internal/formatter"
	"github.com/desertthunder/reelq/internal/queue"
	"github.com/desertthunder/reelq/internal/server"
	"github.com/desertthunder/reelq/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

// schedule resolves the --schedule override; "off" disables periodic passes.
func (r *Runner) schedule(cmd *cli.Command) string {
	s := r.config.Queue.Schedule
	if cmd.IsSet("schedule") {
		s = cmd.String("schedule")
	}
	if s == "off" {
		return ""
	}
	return s
}

// newTrigger builds a trigger fed by the health probe, logging each pass summary.
func (r *Runner) newTrigger(schedule string) (*queue.Trigger, error) {
	return queue.NewTrigger(r.queue, queue.TriggerOptions{
		Schedule: schedule,
		Restored: r.probe.Restored(),
		Logger:   r.logger,
		OnSummary: func(s *queue.Summary) {
			if s.Total == 0 {
				return
			}
			if data, err := formatter.SummaryToText(s); err == nil {
				r.logger.Info("pass complete\n" + string(data))
			}
		},
	})
}

// runTrigger runs the probe and trigger side by side until ctx is done.
func (r *Runner) runTrigger(ctx context.Context, t *queue.Trigger) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.probe.Run(ctx)
	}()

	err := t.Run(ctx)
	wg.Wait()
	return err
}

// Daemon watches connectivity and replays the queue on reconnect and on schedule until interrupted.
func (r *Runner) Daemon(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireQueue(ctx); err != nil {
		return err
	}

	trigger, err := r.newTrigger(r.schedule(cmd))
	if err != nil {
		return err
	}

	r.logger.Info("daemon started", "api", r.api.BaseURL(), "schedule", r.schedule(cmd))
	if err := r.runTrigger(ctx, trigger); err != nil {
		return fmt.Errorf("trigger stopped: %w", err)
	}
	r.logger.Info("daemon stopped")
	return nil
}

// Serve exposes the queue over a local HTTP API, optionally running the trigger alongside.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if !r.queue.Available(ctx) {
		r.logger.Warn("queue storage unavailable, serving degraded API")
	}

	addr := r.config.Server.Addr()
	if cmd.IsSet("addr") {
		addr = cmd.String("addr")
	}

	var limiter *rate.Limiter
	if r.config.Queue.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.config.Queue.RateLimit*10), max(r.config.Queue.Burst, 10))
	}

	logger := shared.WithLogger(r.logger, "component", "server")
	handler := server.NewQueueHandler(r.queue, queue.OnlineFunc(r.isOnline), logger)
	router := server.NewQueueRouter(handler, logger, limiter)

	if !cmd.Bool("trigger") {
		return server.Serve(ctx, addr, router, r.logger)
	}

	trigger, err := r.newTrigger(r.config.Queue.Schedule)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- r.runTrigger(ctx, trigger) }()

	serveErr := server.Serve(ctx, addr, router, r.logger)
	if serveErr != nil {
		return serveErr
	}
	return <-errCh
}
