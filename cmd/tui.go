package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/reelq/internal/shared"
	"github.com/desertthunder/reelq/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for the offline queue.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/reelq-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.requireQueue(ctx); err != nil {
		return err
	}
	r.probe.Check(ctx)

	model := ui.NewModel(ctx, r.queue, fileLogger)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
