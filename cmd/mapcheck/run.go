package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/mapcheck/internal/app"
	"github.com/ternarybob/mapcheck/internal/services/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the diagnostic once",
	Long:  `Runs the library, map construction and places checks once and prints the result.`,
	RunE:  runOnce,
}

var (
	runBackend string
	runFormat  string
	runScripts []string
)

func init() {
	runCmd.Flags().StringVar(&runBackend, "backend", "", "Backend: browser or script (overrides config)")
	runCmd.Flags().StringVar(&runFormat, "format", "", "Output format: text, json or yaml (overrides config)")
	runCmd.Flags().StringArrayVar(&runScripts, "script", nil, "Script file for the script backend (repeatable)")
}

func runOnce(cmd *cobra.Command, args []string) error {
	application := app.New(config, logger)

	return application.Launch(cmd.Context(), func(ctx context.Context) error {
		// Text output streams lines as checks run; structured formats are written once at the end
		var out io.Writer = os.Stdout
		if config.Report.Format != report.FormatText {
			out = io.Discard
		}

		result, err := application.RunOnce(ctx, out)
		if err != nil {
			return err
		}

		if config.Report.Format != report.FormatText {
			if err := report.Encode(os.Stdout, result, config.Report.Format); err != nil {
				return err
			}
		}

		if config.Report.FailOnError && result.HasFailures() {
			return errChecksFailed
		}
		return nil
	})
}
