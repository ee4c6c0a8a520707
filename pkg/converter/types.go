package converter

import (
	"github.com/stackvity/activity-logger/pkg/converter/handler"
)

// Status defines the possible processing states of a file during conversion.
type Status string

// Constants representing the defined file processing statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// OutputFormat defines the format of the run report printed when the TUI is disabled.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// InputFile is one regular file discovered by the Scanner.
type InputFile struct {
	// Path is the file's path as discovered, joined onto the input directory.
	Path string
	// Name is the base name.
	Name string
	// Extension is the lowercased suffix after the last '.', valid only when HasExtension.
	Extension    string
	HasExtension bool
}

// NewInputFile derives an InputFile from a path.
func NewInputFile(path, name string) InputFile {
	ext, ok := handler.Extension(name)
	return InputFile{Path: path, Name: name, Extension: ext, HasExtension: ok}
}
