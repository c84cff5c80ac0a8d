package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelq/internal/shared"
	"github.com/robfig/cron/v3"
)

// TriggerOptions configures a [Trigger].
type TriggerOptions struct {
	Schedule  string          // Cron spec or descriptor such as "@every 30s", empty disables the timer
	Restored  <-chan struct{} // Receives once per offline to online transition
	OnSummary func(*Summary)  // Called after every pass that ran
	Progress  chan<- ProgressUpdate
	Logger    *log.Logger

	// RerunDelay is the wait before repeating a reconnect pass that found another pass running.
	// Defaults to [DefaultRerunDelay].
	RerunDelay time.Duration
}

// DefaultRerunDelay is used when [TriggerOptions.RerunDelay] is unset.
const DefaultRerunDelay = 500 * time.Millisecond

// Trigger drives processing passes from a periodic schedule and connectivity restored events.
type Trigger struct {
	queue      *OfflineActionQueue
	cron       *cron.Cron
	schedule   string
	restored   <-chan struct{}
	onSummary  func(*Summary)
	progress   chan<- ProgressUpdate
	logger     *log.Logger
	rerunDelay time.Duration
}

// NewTrigger validates the schedule and prepares a [Trigger] for q.
func NewTrigger(q *OfflineActionQueue, opts TriggerOptions) (*Trigger, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: queue is required", shared.ErrInvalidArgument)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(opts.Logger, "component", "trigger")
	if opts.RerunDelay <= 0 {
		opts.RerunDelay = DefaultRerunDelay
	}

	if opts.Schedule != "" {
		if _, err := cron.ParseStandard(opts.Schedule); err != nil {
			return nil, fmt.Errorf("%w: schedule %q: %v", shared.ErrInvalidConfig, opts.Schedule, err)
		}
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(logger.StandardLog())),
		cron.SkipIfStillRunning(cron.PrintfLogger(logger.StandardLog())),
	))

	return &Trigger{
		queue:      q,
		cron:       c,
		schedule:   opts.Schedule,
		restored:   opts.Restored,
		onSummary:  opts.OnSummary,
		progress:   opts.Progress,
		logger:     logger,
		rerunDelay: opts.RerunDelay,
	}, nil
}

// Run performs one pass immediately, then on every scheduled tick and restored event until ctx is done.
// Running jobs are allowed to finish before Run returns.
//
// A reconnect that arrives while another pass is running is not dropped: its pass is repeated after
// the rerun delay until it gets to run.
func (t *Trigger) Run(ctx context.Context) error {
	if t.schedule != "" {
		if _, err := t.cron.AddFunc(t.schedule, func() { t.pass(ctx, "schedule") }); err != nil {
			return fmt.Errorf("failed to register schedule: %w", err)
		}
		t.cron.Start()
		t.logger.Info("replay schedule registered", "schedule", t.schedule)
	}

	t.pass(ctx, "startup")

	restored := t.restored
	var rerun <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("stopping trigger")
			stopped := t.cron.Stop()
			<-stopped.Done()
			return nil
		case _, ok := <-restored:
			if !ok {
				restored = nil
				continue
			}
			if t.pass(ctx, "reconnect") {
				rerun = time.After(t.rerunDelay)
			}
		case <-rerun:
			rerun = nil
			if t.pass(ctx, "reconnect") {
				rerun = time.After(t.rerunDelay)
			}
		}
	}
}

// pass runs one processing pass and reports whether it was refused because another pass was running.
func (t *Trigger) pass(ctx context.Context, reason string) bool {
	if ctx.Err() != nil {
		return false
	}

	summary, err := t.queue.Process(ctx, t.progress)
	if err != nil {
		t.logger.Debug("processing pass interrupted", "reason", reason, "error", err)
	}
	if summary == nil {
		return false
	}
	if summary.Overlapped {
		t.logger.Debug("another pass is running", "reason", reason)
		return true
	}
	if summary.Offline {
		return false
	}

	t.logger.Debug("processing pass finished", "reason", reason, "total", summary.Total)
	if t.onSummary != nil {
		t.onSummary(summary)
	}
	return false
}
