package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/mapcheck/internal/app"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/services/jsruntime"
	"github.com/ternarybob/mapcheck/internal/services/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the diagnostic on a schedule until interrupted",
	RunE:  runWatch,
}

var (
	watchBackend  string
	watchSchedule string
	watchScripts  []string
	watchQuiet    bool
	watchOnChange bool
)

func init() {
	watchCmd.Flags().StringVar(&watchBackend, "backend", "", "Backend: browser or script (overrides config)")
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "Cron schedule with seconds field, e.g. \"0 */5 * * * *\" (overrides config)")
	watchCmd.Flags().StringArrayVar(&watchScripts, "script", nil, "Script file for the script backend (repeatable)")
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false, "Log results instead of printing console lines")
	watchCmd.Flags().BoolVar(&watchOnChange, "on-change", false, "Also run when a script file changes (script backend)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	common.PrintBanner(config, logger)

	application := app.New(config, logger)

	return application.Launch(cmd.Context(), func(ctx context.Context) error {
		run := func(ctx context.Context) (*models.Report, error) {
			if watchQuiet {
				return application.RunOnce(ctx, nil)
			}
			return application.RunOnce(ctx, os.Stdout)
		}

		watcher := scheduler.NewWatcher(config.Watch.Schedule, run, logger)
		if err := watcher.Start(ctx); err != nil {
			return err
		}

		if watchOnChange {
			config.Watch.OnChange = true
		}
		if config.Watch.OnChange && config.Backend.Name == jsruntime.BackendName {
			trigger, err := scheduler.NewFileTrigger(config.Script.Files, watcher.Tick, logger)
			if err != nil {
				watcher.Stop()
				return err
			}
			trigger.Start(ctx)
			defer trigger.Stop()
		}

		logger.Info().Msg("Watching - press Ctrl+C to stop")
		<-ctx.Done()
		logger.Info().Msg("Interrupt signal received")

		watcher.Stop()
		return nil
	})
}
