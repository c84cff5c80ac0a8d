package main

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/reelq/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the queue database and runs migrations, writing a config.toml from the template when none exists.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	config := r.config
	if config == nil {
		config = shared.DefaultConfig()
	}
	if config.Store.Driver == "redis" {
		r.logger.Info("redis store needs no migrations", "addr", config.Redis.Addr)
		return nil
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := shared.AppliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v (%d migrations applied)", config.Database.Path, len(applied))
	return nil
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	if config == nil {
		config = shared.DefaultConfig()
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(ctx, db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	r.logger.Info("rolled back latest migration", "path", config.Database.Path)
	return nil
}

// SetupConfig writes the default configuration to the --config path, or prints the effective configuration with --print.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("print") {
		config := r.config
		if config == nil {
			config = shared.DefaultConfig()
		}
		if err := toml.NewEncoder(r.output).Encode(config); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return nil
	}

	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}
	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	r.writePlain("✓ Wrote default configuration to %s\n", configPath)
	return nil
}
