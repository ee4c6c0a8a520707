package converter

import (
	"time"
)

// Report summarizes the result of a single Convert run.
type Report struct {
	Summary        ReportSummary `json:"summary" yaml:"summary"`
	ProcessedFiles []FileInfo    `json:"processedFiles" yaml:"processedFiles"`
	SkippedFiles   []SkippedInfo `json:"skippedFiles" yaml:"skippedFiles"`
	Errors         []ErrorInfo   `json:"errors" yaml:"errors"`
}

// ReportSummary contains aggregated statistics for a Convert run.
// ErrorCount is the aggregate count of per-file failures; those never
// fail the run by themselves.
type ReportSummary struct {
	RunID              string    `json:"runId" yaml:"runId"`
	InputPath          string    `json:"inputPath" yaml:"inputPath"`
	OutputPath         string    `json:"outputPath" yaml:"outputPath"`
	ConfigFilePath     string    `json:"configFilePath,omitempty" yaml:"configFilePath,omitempty"`
	TotalFilesScanned  int       `json:"totalFilesScanned" yaml:"totalFilesScanned"`
	ProcessedCount     int       `json:"processedCount" yaml:"processedCount"`
	LinesWritten       int       `json:"linesWritten" yaml:"linesWritten"`
	SkippedCount       int       `json:"skippedCount" yaml:"skippedCount"`
	ErrorCount         int       `json:"errorCount" yaml:"errorCount"`
	FatalErrorOccurred bool      `json:"fatalError" yaml:"fatalError"`
	DurationSeconds    float64   `json:"durationSeconds" yaml:"durationSeconds"`
	Concurrency        int       `json:"concurrency" yaml:"concurrency"`
	Timestamp          time.Time `json:"timestamp" yaml:"timestamp"`
	SchemaVersion      string    `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
}

// FileInfo details one file whose content produced an output line.
type FileInfo struct {
	Path       string `json:"path" yaml:"path"`
	Extension  string `json:"extension" yaml:"extension"`
	Encoding   string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	SizeBytes  int64  `json:"sizeBytes" yaml:"sizeBytes"`
	DurationMs int64  `json:"durationMs" yaml:"durationMs"`
}

// SkippedInfo details a file that was intentionally not converted.
type SkippedInfo struct {
	Path    string `json:"path" yaml:"path"`
	Reason  string `json:"reason" yaml:"reason"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
}

// ErrorInfo details a per-file failure, or the run-level failure when IsFatal.
type ErrorInfo struct {
	Path    string `json:"path" yaml:"path"`
	Error   string `json:"error" yaml:"error"`
	IsFatal bool   `json:"isFatal" yaml:"isFatal"`
}
