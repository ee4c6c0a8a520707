package converter

import "errors"

// These errors categorize failures returned by Convert or recorded in
// Report.Errors. Check against them with errors.Is.
var (
	// ErrConfigValidation indicates Options failed validation before the run started.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrConfigLoad indicates the configuration file is missing or unparseable.
	// Startup fatal.
	ErrConfigLoad = errors.New("failed to load configuration")

	// ErrMappingLoad indicates the Code->Description table could not be read.
	// Startup fatal.
	ErrMappingLoad = errors.New("failed to load activity code table")

	// ErrScanFailed indicates the input directory could not be listed.
	// Run fatal: no output file is created.
	ErrScanFailed = errors.New("failed to list input directory")

	// ErrReadFailed indicates an input file could not be read. Per-file.
	ErrReadFailed = errors.New("failed to read file")

	// ErrBinaryFile indicates an input file looks binary. Per-file, the file is skipped.
	ErrBinaryFile = errors.New("binary file encountered")

	// ErrDecodeFailed indicates an input file could not be converted to UTF-8. Per-file.
	ErrDecodeFailed = errors.New("failed to decode file content")

	// ErrOutputOpen indicates the output file could not be created.
	ErrOutputOpen = errors.New("failed to open output file")

	// ErrOutputWrite indicates writing or flushing the output file failed
	// before the queue was drained.
	ErrOutputWrite = errors.New("failed to write output file")
)
