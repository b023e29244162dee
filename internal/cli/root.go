package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/perflog/internal/config"
	"github.com/wesleyorama2/perflog/internal/logger"
	"github.com/wesleyorama2/perflog/internal/output"
	"github.com/wesleyorama2/perflog/internal/perflog"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "perflog",
	Short:   "In-process operation timing with rolling windows",
	Version: version,
	Long: `perflog times and counts named operations across concurrent goroutines
and exposes lifetime and rolling-window statistics per name, as a table, CSV,
JSON, YAML or a Prometheus endpoint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		log = logger.New(logger.Options{Level: level, Format: format, Output: cmd.ErrOrStderr()})
		slog.SetDefault(log)
	},
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		_ = cmd.Help()
	},
}

// log is set up by RootCmd before any subcommand runs.
var log = logger.Discard()

// Execute runs the root command until ctx is cancelled or the command returns.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "c", "", "Engine configuration file (YAML or JSON)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().String("log-format", "", "Log format: terminal or text (default: picked from the terminal)")
	RootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(dumpCmd)
	RootCmd.AddCommand(intervalsCmd)
	RootCmd.AddCommand(configCmd)
}

// loadConfig loads the --config file, or the defaults when none is given.
func loadConfig(cmd *cobra.Command) (*config.File, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	f, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if f.Log.Level != "" {
		if level, _ := cmd.Flags().GetString("log-level"); level == "" {
			logger.SetLevelByName(f.Log.Level)
		}
	}
	return f, nil
}

// newEngine builds an engine from f that logs through the command logger.
func newEngine(f *config.File) *perflog.Engine {
	return perflog.New(perflog.ConfigFromFile(f), perflog.WithLogger(log))
}

// colorScheme picks a scheme for the command's standard output.
func colorScheme(cmd *cobra.Command) *output.ColorScheme {
	noColor, _ := cmd.Flags().GetBool("no-color")
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return output.SchemeFor(f, noColor)
	}
	return output.NoColorScheme()
}
