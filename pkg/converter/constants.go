package converter

// Constants defining default values for configuration options.
// These seed viper defaults in the configuration loading process.
const (
	// DefaultInputDir is the directory scanned when none is given.
	DefaultInputDir = "."
	// DefaultOutputFile is the output file written when none is given.
	DefaultOutputFile = "./output.txt"
	// DefaultConcurrency is the default worker pool size.
	DefaultConcurrency = 1
	// DefaultMappingFile is the Code->Description table read at startup.
	DefaultMappingFile = "activity.csv"
	// DefaultConfigName is the properties file searched for when --config is not set.
	DefaultConfigName = "app"
	// DefaultOutputFormat is the default format for the final report.
	DefaultOutputFormat = OutputFormatText
	// DefaultTuiEnabled is the default state for the terminal UI.
	DefaultTuiEnabled = true
	// DefaultVerbose is the default state for verbose logging.
	DefaultVerbose = false
)

// ReportSchemaVersion is the version of the JSON/YAML report structure.
const ReportSchemaVersion = "1.0"

// Skip reasons recorded in the Report.
const (
	SkipReasonNoHandler   = "no_handler"
	SkipReasonNoExtension = "no_extension"
	SkipReasonBinary      = "binary_file"
	SkipReasonIgnored     = "ignored_pattern"
	SkipReasonEmpty       = "empty_output"
)
