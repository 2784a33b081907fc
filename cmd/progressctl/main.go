// Package main is the Progress Hub operator CLI: schema migrations, day
// recomputation, demo seeding and quick streak lookups.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alem-hub/progress-hub/config"
	"github.com/alem-hub/progress-hub/internal/app"
	"github.com/alem-hub/progress-hub/pkg/logger"
)

// cli carries state resolved by the root command for its subcommands.
type cli struct {
	envFile   string
	debugMode bool

	cfg *config.Config
	log *logger.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if _, fprintfErr := fmt.Fprintf(os.Stderr, "failed to execute a command: %+v\n", err); fprintfErr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, fprintfErr))
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	rootCommand := &cobra.Command{
		Use:           "progressctl",
		Short:         "Progress Hub operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	rootCommand.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file with configuration overrides")
	rootCommand.PersistentFlags().BoolVar(&c.debugMode, "debug", false, "Enable debug logging")

	rootCommand.AddCommand(
		newMigrateCommand(c),
		newRecomputeCommand(c),
		newSeedCommand(c),
		newStreakCommand(c),
	)
	return rootCommand
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.debugMode {
		cfg.Observability.LogLevel = "debug"
	}
	// Event bus work must finish before the process exits.
	cfg.Events.AsyncMode = false

	c.cfg = cfg
	c.log = app.NewLogger(cfg.Observability, "progressctl")
	return nil
}

// open wires the application without touching the schema.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, c.cfg, c.log, app.Options{SkipMigrations: true})
	if err != nil {
		return nil, fmt.Errorf("initialize application: %w", err)
	}
	return a, nil
}
