package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackvity/activity-logger/internal/cli"
	"github.com/stackvity/activity-logger/internal/cli/config"
	"github.com/stackvity/activity-logger/pkg/converter"
)

var (
	// These are set during build time using -ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile string
)

var rootCmd = newRootCmd()

// newRootCmd builds the root command with all flags registered.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity-logger [input-dir] [output-file]",
		Short: "Converts XML and JSON activity logs into a single JSON-lines file.",
		Long: `activity-logger scans an input directory for activity log files,
validates each one against its handler, maps activity codes to descriptions
and appends one JSON object per file to the output file.

Handlers are selected by file extension through logger.handler.<ext> entries
in app.properties. Files are converted in parallel and written by a single
writer, so the output never interleaves.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:    cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			opts, logger, err := config.LoadAndValidate(cfgFile, version, args, cmd.Flags())
			if err != nil {
				return err
			}
			// Past this point errors are run failures, not usage mistakes.
			cmd.SilenceUsage = true
			return cli.Run(ctx, opts, logger)
		},
	}
	cmd.SetVersionTemplate(`{{.Name}} version {{.Version}}` + "\n")
	registerFlags(cmd)
	return cmd
}

// registerFlags defines the flags bound in config.LoadAndValidate.
func registerFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is app.properties in . or $HOME/.config/activity-logger/)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	cmd.Flags().IntP("threads", "t", converter.DefaultConcurrency, "Number of parallel conversion workers")
	cmd.Flags().Bool("no-tui", false, "Disable interactive Terminal UI even if in a TTY")
	cmd.Flags().StringArray("ignore", []string{}, "Glob patterns for files to ignore (can be specified multiple times)")
	cmd.Flags().String("output-format", string(converter.DefaultOutputFormat), `Final report format ("text", "json", "yaml")`)
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics in textfile format to this path after the run")
	cmd.Flags().String("mapping", "", "Path to the activity code table CSV (default "+converter.DefaultMappingFile+")")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
