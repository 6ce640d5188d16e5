package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
)

var (
	// Global flags
	configFiles []string
	logLevel    string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

// errChecksFailed signals a completed run with failing checks; it maps to exit code 1
var errChecksFailed = errors.New("one or more checks failed")

var rootCmd = &cobra.Command{
	Use:           "mapcheck",
	Short:         "Smoke-test the Google Maps JavaScript API",
	Long:          `Loads the Google Maps JavaScript API into headless Chrome (or an embedded JS runtime) and checks that the library loads, a map can be constructed, and the places library is available.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration: defaults -> file1 -> file2 -> ... -> env -> CLI
func loadConfig(cmd *cobra.Command) error {
	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("mapcheck.toml"); err == nil {
			configFiles = append(configFiles, "mapcheck.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}

	common.ApplyFlagOverrides(config, commandOverrides(cmd))

	if err := config.Validate(); err != nil {
		return err
	}

	logger = common.SetupLogger(config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("backend", config.Backend.Name).
		Str("format", config.Report.Format).
		Msg("Configuration loaded")

	return nil
}

// commandOverrides collects the flag values that apply to cmd
func commandOverrides(cmd *cobra.Command) common.FlagOverrides {
	overrides := common.FlagOverrides{LogLevel: logLevel}
	switch cmd.Name() {
	case runCmd.Name():
		overrides.Backend = runBackend
		overrides.Format = runFormat
		overrides.ScriptFiles = runScripts
	case watchCmd.Name():
		overrides.Backend = watchBackend
		overrides.Schedule = watchSchedule
		overrides.ScriptFiles = watchScripts
	}
	return overrides
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, errChecksFailed) {
		if logger != nil {
			logger.Error().Err(err).Msg("mapcheck failed")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	stop()
	os.Exit(1)
}
