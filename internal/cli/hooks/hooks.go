package hooks

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stackvity/activity-logger/pkg/converter"
)

// FileDiscoveredMsg signals that the scanner accepted a file.
type FileDiscoveredMsg struct{ Path string }

// FileStatusUpdateMsg signals a change in a file's processing status.
type FileStatusUpdateMsg struct {
	Path     string
	Status   converter.Status
	Message  string
	Duration time.Duration
}

// RunCompleteMsg signals the completion of the entire conversion run.
type RunCompleteMsg struct{ Report converter.Report }

// TUIProgram is the part of *tea.Program the hooks need.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// NoOpTUIProgram provides a default null implementation.
type NoOpTUIProgram struct{}

// Send implements TUIProgram.
func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// CLIHooks implements converter.Hooks, bridging engine events to the TUI
// or to the logger. Methods are called concurrently from workers.
type CLIHooks struct {
	logger         *slog.Logger
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram
}

// NewCLIHooks creates a new CLIHooks instance. A nil tuiProg is replaced by a no-op.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram) *CLIHooks {
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	return &CLIHooks{
		logger:         logger,
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
	}
}

// OnFileDiscovered handles the event when the scanner accepts a file.
func (h *CLIHooks) OnFileDiscovered(path string) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileDiscoveredMsg{Path: path})
	} else if h.verboseEnabled {
		h.logger.Debug("File discovered", "path", path)
	}
	return nil
}

// OnFileStatusUpdate handles events when a file's processing status changes.
func (h *CLIHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileStatusUpdateMsg{
			Path:     path,
			Status:   status,
			Message:  message,
			Duration: duration,
		})
		return nil
	}
	if !h.verboseEnabled {
		// The engine already logs failures.
		return nil
	}

	logLevel := slog.LevelDebug
	logMsg := "File status updated"
	attrs := []any{
		slog.String("path", path),
		slog.String("status", string(status)),
	}
	if duration > 0 {
		attrs = append(attrs, slog.Duration("duration", duration))
	}
	if message != "" {
		logKey := "message"
		if status == converter.StatusFailed {
			logKey = "error"
		}
		attrs = append(attrs, slog.String(logKey, message))
	}
	switch status {
	case converter.StatusSuccess, converter.StatusSkipped:
		logLevel = slog.LevelInfo
	case converter.StatusFailed:
		logLevel = slog.LevelError
		logMsg = "File processing failed"
	}
	h.logger.Log(context.Background(), logLevel, logMsg, attrs...)
	return nil
}

// OnRunComplete forwards the final report to the TUI. In log mode the
// summary is printed by the caller.
func (h *CLIHooks) OnRunComplete(report converter.Report) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Report: report})
	}
	return nil
}
