// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/reelq/internal/formatter"
	"github.com/urfave/cli/v3"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (text, json, csv, markdown)",
		Value:   formatter.FormatText,
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write output to a file instead of stdout",
	}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the queue database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml populated with defaults",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the effective configuration instead of writing a file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// queueCommand handles direct operations on the offline queue
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "queue",
		Aliases: []string{"q"},
		Usage:   "Inspect and operate the offline action queue",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Enqueue a raw request for later replay",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Action type (add, update, delete)",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Request URL, absolute or relative to api.base_url",
					},
					&cli.StringFlag{
						Name:    "method",
						Aliases: []string{"X"},
						Usage:   "HTTP method",
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Request body",
					},
					&cli.StringSliceFlag{
						Name:    "header",
						Aliases: []string{"H"},
						Usage:   "Request header as key=value or \"Key: Value\" (repeatable)",
					},
					&cli.StringFlag{
						Name:  "curl",
						Usage: "Take url, method, body and headers from a cURL command",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing a cURL command",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the queued action as JSON",
					},
				},
				Action: r.QueueAdd,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List queued actions in replay order",
				Flags:   []cli.Flag{formatFlag(), outputFlag()},
				Action:  r.QueueList,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove a queued action without replaying it",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.QueueRemove,
			},
			{
				Name:  "clear",
				Usage: "Discard every queued action",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Do not ask for confirmation",
					},
				},
				Action: r.QueueClear,
			},
			{
				Name:  "process",
				Usage: "Replay queued actions once if the API is reachable",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Skip the health check and treat the API as reachable",
					},
					formatFlag(),
				},
				Action: r.QueueProcess,
			},
			deadCommand(r),
		},
	}
}

// deadCommand handles the dead-letter log of evicted actions
func deadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dead",
		Usage: "Inspect actions evicted after exhausting their retries",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List dead letters, oldest first",
				Flags:   []cli.Flag{formatFlag(), outputFlag()},
				Action:  r.DeadList,
			},
			{
				Name:  "retry",
				Usage: "Requeue a dead letter as a fresh action",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.DeadRetry,
			},
			{
				Name:   "clear",
				Usage:  "Delete every dead letter",
				Action: r.DeadClear,
			},
		},
	}
}

func watchlistFlags(status bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:     "id",
			Usage:    "Movie or show ID",
			Required: true,
		},
	}
	if status {
		flags = append(flags,
			&cli.StringFlag{
				Name:  "status",
				Usage: "Watch status (want_to_watch, watching, watched)",
			},
		)
	}
	return flags
}

// watchlistCommand handles watchlist mutations, queued when the API is unreachable
func watchlistCommand(r *Runner) *cli.Command {
	addFlags := append(watchlistFlags(true),
		&cli.StringFlag{
			Name:  "media-type",
			Usage: "movie or tv",
			Value: "movie",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "Display title",
		},
	)

	return &cli.Command{
		Name:    "watchlist",
		Aliases: []string{"wl"},
		Usage:   "Change the watchlist, queueing the change when offline",
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Save a title to the watchlist",
				Flags:  addFlags,
				Action: r.WatchlistAdd,
			},
			{
				Name:   "update",
				Usage:  "Change the watch status of a saved title",
				Flags:  watchlistFlags(true),
				Action: r.WatchlistUpdate,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Remove a title from the watchlist",
				Flags:   watchlistFlags(false),
				Action:  r.WatchlistDelete,
			},
		},
	}
}

// daemonCommand runs the processing trigger in the foreground
func daemonCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Watch connectivity and replay the queue on reconnect and on schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "Cron schedule for periodic passes (overrides queue.schedule, \"off\" disables)",
			},
		},
		Action: r.Daemon,
	}
}

// serveCommand exposes the queue over a local HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the queue over a local HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.host and server.port)",
			},
			&cli.BoolFlag{
				Name:  "trigger",
				Usage: "Also run the reconnect and schedule trigger",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive queue management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for the offline queue",
		Action:  r.TUI,
	}
}
