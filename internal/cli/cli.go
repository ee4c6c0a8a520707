package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/stackvity/activity-logger/internal/cli/hooks"
	"github.com/stackvity/activity-logger/internal/cli/ui"
	"github.com/stackvity/activity-logger/pkg/converter"
	"github.com/stackvity/activity-logger/pkg/converter/metrics"
)

// Run executes one conversion with validated options. It drives the TUI
// when stderr is a terminal, prints the report to stdout, and writes the
// metrics textfile if configured. The returned error is the run failure,
// if any; per-file failures are only reported.
func Run(ctx context.Context, opts converter.Options, logger *slog.Logger) error {
	tty := term.IsTerminal(int(os.Stderr.Fd()))
	return run(ctx, opts, logger, os.Stdout, os.Stderr, tty)
}

func run(ctx context.Context, opts converter.Options, logger *slog.Logger, stdout, stderr io.Writer, tty bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	useTUI := tty && opts.TuiEnabled && !opts.Verbose
	var (
		program *tea.Program
		tuiDone sync.WaitGroup
		held    *bytes.Buffer
	)
	if useTUI {
		// Logs would tear the TUI; hold warnings and errors until it exits.
		held = &bytes.Buffer{}
		opts.Logger = slog.NewTextHandler(held, &slog.HandlerOptions{Level: slog.LevelWarn})

		model := ui.NewModel(opts.AppVersion, opts.OutputPath)
		program = tea.NewProgram(&model, tea.WithOutput(stderr), tea.WithContext(ctx))
		tuiDone.Add(1)
		go func() {
			defer tuiDone.Done()
			final, err := program.Run()
			if err != nil && ctx.Err() == nil {
				logger.Warn("TUI exited with error", slog.String("error", err.Error()))
			}
			// Quitting the TUI before the run completes stops the run.
			if fm, ok := final.(*ui.Model); !ok || !fm.Done() {
				cancel()
			}
		}()
	}
	var tuiProg hooks.TUIProgram
	if program != nil {
		tuiProg = program
	}
	opts.EventHooks = hooks.NewCLIHooks(logger, useTUI, opts.Verbose, tuiProg)

	report, runErr := converter.Convert(ctx, opts)

	if program != nil {
		program.Quit()
		tuiDone.Wait()
		if held.Len() > 0 {
			_, _ = io.Copy(stderr, held)
		}
	}

	if opts.MetricsFile != "" {
		if err := opts.Metrics.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Warn("Cannot write metrics textfile", slog.String("path", opts.MetricsFile), slog.String("error", err.Error()))
		} else {
			logger.Debug("Metrics textfile written", slog.String("path", opts.MetricsFile))
		}
	}

	if report.Summary.RunID != "" {
		if err := PrintReport(stdout, report, opts.OutputFormat); err != nil {
			logger.Error("Cannot print run report", slog.String("error", err.Error()))
			if runErr == nil {
				runErr = err
			}
		}
	}

	if runErr != nil {
		logger.Error("Conversion run failed", slog.String("error", runErr.Error()))
		return runErr
	}
	return nil
}

// PrintReport writes report to w in the given format.
func PrintReport(w io.Writer, report converter.Report, format converter.OutputFormat) error {
	switch format {
	case converter.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case converter.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case converter.OutputFormatText, "":
		return printText(w, report)
	default:
		return fmt.Errorf("%w: unknown report format %q", converter.ErrConfigValidation, format)
	}
}

func printText(w io.Writer, report converter.Report) error {
	s := report.Summary
	status := "completed"
	if s.FatalErrorOccurred {
		status = "FAILED"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "Run %s %s in %.2fs\n", s.RunID, status, s.DurationSeconds)
	fmt.Fprintf(&b, "  input:   %s\n", s.InputPath)
	fmt.Fprintf(&b, "  output:  %s\n", s.OutputPath)
	fmt.Fprintf(&b, "  threads: %d\n", s.Concurrency)
	fmt.Fprintf(&b, "  scanned: %d  written: %d  skipped: %d  failed: %d\n",
		s.TotalFilesScanned, s.LinesWritten, s.SkippedCount, s.ErrorCount)
	if len(report.SkippedFiles) > 0 {
		fmt.Fprintln(&b, "Skipped:")
		for _, sk := range report.SkippedFiles {
			fmt.Fprintf(&b, "  %s (%s)\n", sk.Path, sk.Reason)
		}
	}
	if len(report.Errors) > 0 {
		fmt.Fprintln(&b, "Errors:")
		for _, e := range report.Errors {
			prefix := ""
			if e.IsFatal {
				prefix = "fatal: "
			}
			fmt.Fprintf(&b, "  %s%s: %s\n", prefix, e.Path, e.Error)
		}
	}
	_, err := w.Write(b.Bytes())
	return err
}
