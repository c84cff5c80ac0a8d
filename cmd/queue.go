package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/reelq/internal/formatter"
	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
	"github.com/urfave/cli/v3"
)

// parseHeaders accepts "key=value" and "Key: Value" pairs.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, ":")
		if eq := strings.Index(pair, "="); eq >= 0 && (!ok || eq < len(key)) {
			key, value, ok = pair[:eq], pair[eq+1:], true
		}
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: malformed header %q", shared.ErrInvalidFlag, pair)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

// actionInputFromFlags assembles an [models.ActionInput] from a cURL command, overridden by explicit flags.
func actionInputFromFlags(cmd *cli.Command) (models.ActionInput, error) {
	var in models.ActionInput

	curlCmd, curlFile := cmd.String("curl"), cmd.String("curl-file")
	if curlCmd != "" && curlFile != "" {
		return in, fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var req *shared.CurlRequest
	var err error
	switch {
	case curlFile != "":
		req, err = shared.ParseCurlFile(curlFile)
	case curlCmd != "":
		req, err = shared.ParseCurlCommand(curlCmd)
	}
	if err != nil {
		return in, fmt.Errorf("failed to parse cURL command: %w", err)
	}
	if req != nil {
		in.URL, in.Method, in.Body = req.URL, req.Method, req.Body
		in.Headers = req.HeadersWithCookie()
	}

	if v := cmd.String("url"); v != "" {
		in.URL = v
	}
	if v := cmd.String("method"); v != "" {
		in.Method = v
	}
	if v := cmd.String("data"); v != "" {
		in.Body = v
	}

	headers, err := parseHeaders(cmd.StringSlice("header"))
	if err != nil {
		return in, err
	}
	if len(headers) > 0 && in.Headers == nil {
		in.Headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		in.Headers[k] = v
	}

	if t := cmd.String("type"); t != "" {
		if in.Type, err = models.ParseActionType(t); err != nil {
			return in, fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
		}
	} else {
		in.Type = inferActionType(in.Method)
	}

	if in.URL == "" {
		return in, fmt.Errorf("%w: --url or --curl is required", shared.ErrMissingArgument)
	}
	return in, nil
}

// inferActionType maps a method to the watchlist intent it usually carries.
func inferActionType(method string) models.ActionType {
	switch strings.ToUpper(method) {
	case "DELETE":
		return models.DeleteFromWatchlist
	case "PUT", "PATCH":
		return models.UpdateWatchlist
	default:
		return models.AddToWatchlist
	}
}

// QueueAdd enqueues a raw request.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	in, err := actionInputFromFlags(cmd)
	if err != nil {
		return err
	}
	if in.Method == "" {
		in.Method = "POST"
	}

	if err := r.open(ctx); err != nil {
		return err
	}

	id, err := r.queue.AddAction(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to enqueue action: %w", err)
	}

	r.logger.Info("action queued", "id", id, "type", in.Type, "method", in.Method, "url", in.URL)
	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"id": id, "type": in.Type, "method": in.Method, "url": in.URL}, true)
	}
	return r.writePlain("%s\n", id)
}

// QueueList prints queued actions in replay order.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.open(ctx); err != nil {
		return err
	}
	if !r.queue.Available(ctx) {
		r.logger.Warn("queue storage unavailable, showing empty queue")
	}

	data, err := formatter.Actions(r.queue.GetActions(ctx), format)
	if err != nil {
		return err
	}
	return r.emit(cmd.String("output"), data)
}

// QueueRemove removes one action by id. Unknown ids are not an error.
func (r *Runner) QueueRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: action id", shared.ErrMissingArgument)
	}

	if err := r.requireQueue(ctx); err != nil {
		return err
	}
	if err := r.queue.RemoveAction(ctx, id); err != nil {
		return fmt.Errorf("failed to remove action: %w", err)
	}

	r.logger.Info("action removed", "id", id)
	return nil
}

// QueueClear discards every queued action after confirmation.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireQueue(ctx); err != nil {
		return err
	}

	pending := len(r.queue.GetActions(ctx))
	if pending == 0 {
		return r.writePlain("Queue is empty\n")
	}

	if !cmd.Bool("yes") && !r.confirm(fmt.Sprintf("Discard %d queued action(s)?", pending)) {
		return r.writePlain("Aborted\n")
	}

	if err := r.queue.ClearActions(ctx); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return r.writePlain("✓ Cleared %d action(s)\n", pending)
}

// QueueProcess runs a single processing pass, checking connectivity first unless --force is set.
func (r *Runner) QueueProcess(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.requireQueue(ctx); err != nil {
		return err
	}

	if cmd.Bool("force") {
		r.force.Store(true)
	} else if !r.probe.Check(ctx) {
		r.logger.Warn("watchlist API unreachable", "base_url", r.api.BaseURL())
	}

	summary, err := r.queue.ProcessQueue(ctx)
	if err != nil {
		return fmt.Errorf("processing pass failed: %w", err)
	}

	data, err := formatter.Summary(summary, format)
	if err != nil {
		return err
	}
	if err := r.writeBytes(data); err != nil {
		return err
	}

	if summary.Overlapped {
		return shared.ErrPassInProgress
	}
	return nil
}

// DeadList prints the dead-letter log.
func (r *Runner) DeadList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.requireDeadLetters(ctx); err != nil {
		return err
	}

	letters, err := r.deadLetters.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}

	data, err := formatter.DeadLetters(letters, format)
	if err != nil {
		return err
	}
	return r.emit(cmd.String("output"), data)
}

// DeadRetry requeues a dead letter as a new action with a fresh id and retry count, then drops the letter.
func (r *Runner) DeadRetry(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: dead letter id", shared.ErrMissingArgument)
	}
	if err := r.requireDeadLetters(ctx); err != nil {
		return err
	}

	letter, err := r.deadLetters.Get(ctx, id)
	if err != nil {
		return err
	}

	actionID, err := r.queue.AddAction(ctx, letter.Action.Input())
	if err != nil {
		return fmt.Errorf("failed to requeue dead letter: %w", err)
	}
	if err := r.deadLetters.Delete(ctx, id); err != nil && !errors.Is(err, shared.ErrDeadLetterNotFound) {
		return fmt.Errorf("requeued as %s but failed to delete dead letter: %w", actionID, err)
	}

	r.logger.Info("dead letter requeued", "dead_letter", id, "action", actionID)
	return r.writePlain("%s\n", actionID)
}

// DeadClear deletes every dead letter.
func (r *Runner) DeadClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireDeadLetters(ctx); err != nil {
		return err
	}

	n, err := r.deadLetters.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear dead letters: %w", err)
	}
	return r.writePlain("✓ Cleared %d dead letter(s)\n", n)
}

// requireDeadLetters opens the queue, which also migrates the shared database, and checks a dead-letter log exists.
func (r *Runner) requireDeadLetters(ctx context.Context) error {
	if err := r.requireQueue(ctx); err != nil {
		return err
	}
	if r.deadLetters == nil {
		return fmt.Errorf("%w: no dead-letter log configured", shared.ErrStorageUnavailable)
	}
	return nil
}

// emit writes data to path when set, otherwise to the runner's output.
func (r *Runner) emit(path string, data []byte) error {
	if path == "" {
		return r.writeBytes(data)
	}
	if err := formatter.WriteFile(path, data); err != nil {
		return err
	}
	r.logger.Info("output written", "path", path)
	return nil
}

// confirm asks a yes/no question on stdin.
func (r *Runner) confirm(question string) bool {
	r.writePlain("%s [y/N] ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
