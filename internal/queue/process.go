package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/desertthunder/reelq/internal/queue")

// Summary describes the outcome of one processing pass.
type Summary struct {
	Total      int       `json:"total"`      // Actions read at the start of the pass
	Attempted  int       `json:"attempted"`  // Actions replayed
	Succeeded  int       `json:"succeeded"`  // Delivered and removed
	Retried    int       `json:"retried"`    // Failed, kept with an incremented retry count
	Evicted    int       `json:"evicted"`    // Failed at the retry ceiling and removed
	Skipped    int       `json:"skipped"`    // Leased to another process, or removed before the pass settled it
	Offline    bool      `json:"offline"`    // Pass skipped, no connectivity
	Overlapped bool      `json:"overlapped"` // Pass skipped, another pass was running
	Failures   []Failure `json:"failures,omitempty"`
}

// Failure describes one failed replay attempt within a pass.
type Failure struct {
	ActionID   string `json:"actionId"`
	RetryCount int    `json:"retryCount"`
	Evicted    bool   `json:"evicted"`
	Error      string `json:"error"`
}

type outcome int

// attempt is the result of processing one action. err holds the replay failure for retried and evicted outcomes.
type attempt struct {
	outcome outcome
	action  models.QueuedAction
	err     error
}

const (
	succeeded outcome = iota
	retried
	evicted
	skipped
	settled // replayed, but removed by someone else before the outcome was written
)

// ProcessQueue runs one processing pass. See [OfflineActionQueue.Process].
func (q *OfflineActionQueue) ProcessQueue(ctx context.Context) (*Summary, error) {
	return q.Process(ctx, nil)
}

// Process replays every stored action in timestamp order, one at a time, sending non-blocking updates on progress.
//
// Replay failures never abort the pass and are not returned: they are counted in the [Summary], logged,
// and persisted as an incremented retry count, or as a dead letter at the ceiling.
// The only error returned is the context's, when the pass is cut short; the action in flight is left untouched.
//
// When offline the pass returns before touching the store. When another pass is running it returns immediately
// with [Summary.Overlapped] set.
func (q *OfflineActionQueue) Process(ctx context.Context, progress chan<- ProgressUpdate) (*Summary, error) {
	summary := &Summary{}

	if !q.processing.CompareAndSwap(false, true) {
		q.logger.Debug("processing pass already running")
		summary.Overlapped = true
		return summary, nil
	}
	defer q.processing.Store(false)

	if !q.online.IsOnline() {
		q.logger.Debug("offline, skipping processing pass")
		summary.Offline = true
		send(progress, offlineUpdate())
		return summary, nil
	}

	actions := q.GetActions(ctx)
	summary.Total = len(actions)
	if len(actions) == 0 {
		send(progress, doneUpdate(summary))
		return summary, nil
	}

	q.logger.Info("processing queued actions", "count", len(actions))
	send(progress, startUpdate(len(actions)))

	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := q.limiter.Wait(ctx); err != nil {
			return summary, err
		}

		send(progress, actionUpdate(PhaseReplay, i+1, len(actions), action))

		res, err := q.processOne(ctx, action)
		if err != nil {
			return summary, err
		}

		switch res.outcome {
		case succeeded:
			summary.Attempted++
			summary.Succeeded++
			send(progress, actionUpdate(PhaseSucceeded, i+1, len(actions), res.action))
		case retried, evicted:
			summary.Attempted++
			phase := PhaseRetry
			if res.outcome == evicted {
				summary.Evicted++
				phase = PhaseEvicted
			} else {
				summary.Retried++
			}
			summary.Failures = append(summary.Failures, Failure{
				ActionID:   res.action.ID,
				RetryCount: res.action.RetryCount,
				Evicted:    res.outcome == evicted,
				Error:      res.err.Error(),
			})
			send(progress, actionUpdate(phase, i+1, len(actions), res.action))
		case settled:
			summary.Attempted++
			summary.Skipped++
			send(progress, actionUpdate(PhaseSkipped, i+1, len(actions), res.action))
		case skipped:
			summary.Skipped++
			send(progress, actionUpdate(PhaseSkipped, i+1, len(actions), res.action))
		}
	}

	q.logger.Info("processing pass complete",
		"succeeded", summary.Succeeded, "retried", summary.Retried, "evicted", summary.Evicted, "skipped", summary.Skipped)
	send(progress, doneUpdate(summary))
	return summary, nil
}

// processOne claims, replays and settles a single action.
// It returns an error only when ctx ends during the replay.
//
// The record is reloaded after the claim so the retry count reflects attempts made by other processes,
// and the failed attempt is written back with an update that never recreates a removed action.
func (q *OfflineActionQueue) processOne(ctx context.Context, action models.QueuedAction) (attempt, error) {
	logger := q.logger.With("id", action.ID, "type", action.Type)

	if claimer, ok := q.store.(Claimer); ok {
		claimed, err := claimer.Claim(ctx, action.ID, q.owner, q.leaseTTL)
		if err != nil {
			logger.Warn("failed to claim action", "error", err)
			return attempt{outcome: skipped, action: action}, nil
		}
		if !claimed {
			logger.Debug("action claimed by another process")
			return attempt{outcome: skipped, action: action}, nil
		}
		defer func() {
			if err := claimer.Release(context.WithoutCancel(ctx), action.ID, q.owner); err != nil {
				logger.Warn("failed to release claim", "error", err)
			}
		}()
	}

	current, err := q.store.Get(ctx, action.ID)
	switch {
	case errors.Is(err, shared.ErrActionNotFound):
		logger.Debug("action already settled")
		return attempt{outcome: skipped, action: action}, nil
	case err != nil:
		logger.Warn("failed to reload action", "error", err)
		return attempt{outcome: skipped, action: action}, nil
	}
	action = *current

	replayErr := q.replay(ctx, action)
	if replayErr == nil {
		if err := q.store.Delete(ctx, action.ID); err != nil {
			logger.Error("failed to remove delivered action", "error", err)
		}
		logger.Debug("action delivered")
		return attempt{outcome: succeeded, action: action}, nil
	}

	if err := ctx.Err(); err != nil {
		return attempt{}, err
	}

	action.RetryCount++

	if err := q.store.Update(ctx, action); err != nil {
		if errors.Is(err, shared.ErrActionNotFound) {
			logger.Info("action removed during replay, dropping failed attempt", "error", replayErr)
			return attempt{outcome: settled, action: action, err: replayErr}, nil
		}
		logger.Error("failed to persist retry count", "error", err)
	}

	if action.RetryCount >= q.maxRetries {
		logger.Warn("action evicted after reaching retry ceiling", "attempts", action.RetryCount, "error", replayErr)
		if q.deadLetters != nil {
			if err := q.deadLetters.Record(ctx, action, replayErr.Error()); err != nil {
				logger.Error("failed to record dead letter", "error", err)
			}
		}
		if err := q.store.Delete(ctx, action.ID); err != nil {
			logger.Error("failed to remove evicted action", "error", err)
		}
		return attempt{outcome: evicted, action: action, err: replayErr}, nil
	}

	logger.Info("replay failed, will retry", "attempts", action.RetryCount, "error", replayErr)
	return attempt{outcome: retried, action: action, err: replayErr}, nil
}

// replay executes the action within its own span, bounded by the replay timeout.
func (q *OfflineActionQueue) replay(ctx context.Context, action models.QueuedAction) error {
	ctx, span := tracer.Start(ctx, "queue.replay", trace.WithAttributes(
		attribute.String("action.id", action.ID),
		attribute.String("action.type", string(action.Type)),
		attribute.String("http.method", action.Method),
		attribute.String("http.url", action.URL),
		attribute.Int("action.retry_count", action.RetryCount),
	))
	defer span.End()

	if q.replayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.replayTimeout)
		defer cancel()
	}

	var err error
	if q.replayer == nil {
		err = fmt.Errorf("%w: no replayer configured", shared.ErrServiceUnavailable)
	} else {
		err = q.replayer.Replay(ctx, action)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
