package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
	"github.com/urfave/cli/v3"
)

// WatchlistAdd saves a title to the watchlist.
func (r *Runner) WatchlistAdd(ctx context.Context, cmd *cli.Command) error {
	item := models.WatchlistItem{
		MediaID:   int(cmd.Int("id")),
		MediaType: models.MediaType(cmd.String("media-type")),
		Title:     cmd.String("title"),
		Status:    models.WatchStatus(cmd.String("status")),
	}
	in, err := item.AddAction()
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	return r.submit(ctx, in)
}

// WatchlistUpdate changes the watch status of a saved title.
func (r *Runner) WatchlistUpdate(ctx context.Context, cmd *cli.Command) error {
	item := models.WatchlistItem{
		MediaID: int(cmd.Int("id")),
		Status:  models.WatchStatus(cmd.String("status")),
	}
	in, err := item.UpdateAction()
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	return r.submit(ctx, in)
}

// WatchlistDelete removes a title from the watchlist.
func (r *Runner) WatchlistDelete(ctx context.Context, cmd *cli.Command) error {
	item := models.WatchlistItem{MediaID: int(cmd.Int("id"))}
	in, err := item.DeleteAction()
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	return r.submit(ctx, in)
}

// submit sends a mutation straight to the API when it is reachable and queues it otherwise.
//
// Queued mutations are replayed first; if any remain, the new one is queued behind them so it cannot
// overtake an earlier change to the same title. A request that never gets a response is queued too.
// A response with an error status is returned to the user, since replaying a rejected request would
// fail the same way.
func (r *Runner) submit(ctx context.Context, in models.ActionInput) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	if (r.isOnline() || r.probe.Check(ctx)) && r.drain(ctx) {
		resp, err := r.api.Execute(ctx, in)
		switch {
		case err == nil:
			r.logger.Info("watchlist updated", "type", in.Type, "method", in.Method, "url", in.URL, "status", resp.StatusCode)
			return r.writePlain("✓ %s %s\n", in.Method, in.URL)
		case resp != nil:
			return fmt.Errorf("watchlist API rejected request: %w", err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			r.logger.Warn("request failed, queueing for later", "url", in.URL, "error", err)
		}
	}

	id, err := r.queue.AddAction(ctx, in)
	if err != nil {
		return fmt.Errorf("%w: offline and could not queue change: %w", shared.ErrOffline, err)
	}

	r.logger.Info("offline, change queued", "id", id, "type", in.Type)
	return r.writePlain("⏸ Queued %s %s (%s)\n", in.Method, in.URL, id)
}

// drain replays pending actions and reports whether the queue is empty afterwards.
func (r *Runner) drain(ctx context.Context) bool {
	if len(r.queue.GetActions(ctx)) == 0 {
		return true
	}

	summary, err := r.queue.ProcessQueue(ctx)
	if err != nil {
		r.logger.Warn("failed to replay queued actions", "error", err)
		return false
	}
	r.logger.Info("replayed queued actions first", "succeeded", summary.Succeeded, "retried", summary.Retried, "evicted", summary.Evicted)

	return len(r.queue.GetActions(ctx)) == 0
}
