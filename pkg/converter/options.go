package converter

import (
	"log/slog"
	"time"

	"github.com/stackvity/activity-logger/pkg/converter/activity"
	"github.com/stackvity/activity-logger/pkg/converter/encoding"
	"github.com/stackvity/activity-logger/pkg/converter/handler"
	"github.com/stackvity/activity-logger/pkg/converter/metrics"
)

// Hooks defines callbacks for status updates during a run.
// Implementations MUST be thread-safe as methods are called from workers concurrently.
// Returned errors are logged and otherwise ignored.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnFileDiscovered implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileDiscovered(path string) error { return nil }

// OnFileStatusUpdate implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error {
	return nil
}

// OnRunComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// HandlerResolver finds the handler for a lowercase file extension.
// *handler.Registry is the standard implementation.
type HandlerResolver interface {
	Resolve(extension string) (handler.Handler, bool)
}

// Options holds all configuration for a Convert run.
type Options struct {
	// --- Core Paths ---
	InputPath  string // Directory scanned for input files (non-recursive)
	OutputPath string // JSON-lines output file, truncated on open

	// --- Application Info ---
	AppVersion     string // Reported only
	ConfigFilePath string // Path to the loaded config file (for reporting)

	// --- Behavior & Control ---
	Concurrency  int          // Worker pool size, must be >= 1
	Verbose      bool         // Enable debug logging
	TuiEnabled   bool         // Hint for CLI to use TUI (ignored if Verbose)
	OutputFormat OutputFormat // ("text", "json", "yaml") for the final report
	MetricsFile  string       // Optional prometheus textfile written after the run

	// --- File Handling ---
	IgnorePatterns  []string          // Base-name globs excluded by the Scanner
	DefaultEncoding string            // Fallback charset for unlabelled, non-UTF-8 input
	HandlerMappings map[string]string // Extension -> handler identifier
	XMLSchemaPath   string            // Optional XSD for the xml handler
	JSONSchemaPath  string            // Optional JSON Schema for the json handler
	MappingFile     string            // Code->Description table path (for reporting; loaded by the caller)

	// --- Injected Dependencies ---
	EventHooks Hooks               // Optional: defaults to NoOpHooks
	Logger     slog.Handler        // Required: logging backend
	Codes      *activity.CodeTable // Optional: used when Resolver is nil
	Resolver   HandlerResolver     // Optional: built from HandlerMappings when nil
	Decoder    encoding.Decoder    // Optional: defaults to a charset decoder
	Metrics    *metrics.Collector  // Optional: nil disables metrics
}
