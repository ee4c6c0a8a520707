package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/net/html/charset"

	"github.com/stackvity/activity-logger/pkg/converter"
	"github.com/stackvity/activity-logger/pkg/converter/activity"
)

const (
	EnvPrefix  = "ACTIVITYLOGGER"
	configType = "properties"
	appDirName = "activity-logger"
)

// Viper keys. Properties files use the same dotted names.
const (
	KeyThreads         = "logger.input.threads"
	KeyInputDir        = "logger.input.dir"
	KeyOutputFile      = "logger.output.file"
	KeyIgnore          = "logger.input.ignore"
	KeyHandlers        = "logger.handler"
	KeyXMLSchema       = "logger.schema.xml"
	KeyJSONSchema      = "logger.schema.json"
	KeyMappingFile     = "logger.mapping.file"
	KeyDefaultEncoding = "logger.encoding.default"
	KeyReportFormat    = "logger.report.format"
	KeyMetricsFile     = "logger.metrics.file"
	KeyVerbose         = "logger.verbose"
	KeyNoTui           = "logger.tui.disabled"
)

// flagKeys maps command-line flags to the viper keys they override.
var flagKeys = map[string]string{
	"threads":       KeyThreads,
	"ignore":        KeyIgnore,
	"output-format": KeyReportFormat,
	"metrics-file":  KeyMetricsFile,
	"mapping":       KeyMappingFile,
	"verbose":       KeyVerbose,
	"no-tui":        KeyNoTui,
}

// fileConfig mirrors the properties layout.
type fileConfig struct {
	Logger struct {
		Input struct {
			Threads int      `mapstructure:"threads"`
			Dir     string   `mapstructure:"dir"`
			Ignore  []string `mapstructure:"ignore"`
		} `mapstructure:"input"`
		Output struct {
			File string `mapstructure:"file"`
		} `mapstructure:"output"`
		Handler map[string]string `mapstructure:"handler"`
		Schema  struct {
			XML  string `mapstructure:"xml"`
			JSON string `mapstructure:"json"`
		} `mapstructure:"schema"`
		Mapping struct {
			File string `mapstructure:"file"`
		} `mapstructure:"mapping"`
		Encoding struct {
			Default string `mapstructure:"default"`
		} `mapstructure:"encoding"`
		Report struct {
			Format string `mapstructure:"format"`
		} `mapstructure:"report"`
		Metrics struct {
			File string `mapstructure:"file"`
		} `mapstructure:"metrics"`
		Verbose bool `mapstructure:"verbose"`
		Tui     struct {
			Disabled bool `mapstructure:"disabled"`
		} `mapstructure:"tui"`
	} `mapstructure:"logger"`
}

// LoadAndValidate merges defaults, the properties file, environment and
// flags (lowest to highest), then applies the positional [input-dir]
// [output-file] arguments. It loads the code table and sets up the logger.
// A missing or unparseable config file is an ErrConfigLoad error.
func LoadAndValidate(cfgFile, appVersion string, args []string, flags *pflag.FlagSet) (converter.Options, *slog.Logger, error) {
	var opts converter.Options
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	loadEnvFile(tempLogger)
	setDefaults(v)

	v.SetConfigType(configType)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(converter.DefaultConfigName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", appDirName))
		} else {
			tempLogger.Debug("Cannot resolve home directory, searching only the working directory", slog.Any("error", err))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		used := cfgFile
		if used == "" {
			used = converter.DefaultConfigName + "." + configType
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			err = fmt.Errorf("%w: %s not found in . or ~/.config/%s", converter.ErrConfigLoad, used, appDirName)
		} else {
			err = fmt.Errorf("%w: %s: %w", converter.ErrConfigLoad, used, err)
		}
		tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
		return opts, tempLogger, err
	}
	opts.ConfigFilePath = v.ConfigFileUsed()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				tempLogger.Debug("Flag lookup failed during binding", slog.String("flag", name))
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", name, err)
			}
		}
	}
	if len(args) > 0 && args[0] != "" {
		v.Set(KeyInputDir, args[0])
	}
	if len(args) > 1 && args[1] != "" {
		v.Set(KeyOutputFile, args[1])
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return opts, tempLogger, fmt.Errorf("%w: %w", converter.ErrConfigLoad, err)
	}
	fc.Logger.Input.Ignore = splitList(fc.Logger.Input.Ignore)

	opts.AppVersion = appVersion
	opts.Verbose = fc.Logger.Verbose
	opts.TuiEnabled = converter.DefaultTuiEnabled && !fc.Logger.Tui.Disabled

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	opts.Logger = logHandler
	opts.EventHooks = &converter.NoOpHooks{}

	if err := applyConfig(&opts, &fc, logger); err != nil {
		return opts, logger, err
	}

	codes, err := activity.LoadCodeTable(opts.MappingFile, logger)
	if err != nil {
		err = fmt.Errorf("%w: %w", converter.ErrMappingLoad, err)
		logger.Error("Cannot load activity code table", slog.String("path", opts.MappingFile), slog.Any("error", err))
		return opts, logger, err
	}
	opts.Codes = codes

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.Int("threads", opts.Concurrency),
		slog.Any("handlers", opts.HandlerMappings),
		slog.Int("codes", codes.Len()),
		slog.String("logLevel", logLevel.String()),
	)
	return opts, logger, nil
}

// setDefaults registers every key so Unmarshal sees environment overrides.
func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyThreads, converter.DefaultConcurrency)
	v.SetDefault(KeyInputDir, converter.DefaultInputDir)
	v.SetDefault(KeyOutputFile, converter.DefaultOutputFile)
	v.SetDefault(KeyMappingFile, converter.DefaultMappingFile)
	v.SetDefault(KeyReportFormat, string(converter.DefaultOutputFormat))
	v.SetDefault(KeyVerbose, converter.DefaultVerbose)
	v.SetDefault(KeyNoTui, !converter.DefaultTuiEnabled)
	v.SetDefault(KeyIgnore, []string{})
	v.SetDefault(KeyXMLSchema, "")
	v.SetDefault(KeyJSONSchema, "")
	v.SetDefault(KeyDefaultEncoding, "")
	v.SetDefault(KeyMetricsFile, "")
}

// loadEnvFile loads .env from the working directory when present.
// Variables already set in the environment win.
func loadEnvFile(logger *slog.Logger) {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		logger.Warn("Cannot load .env file", slog.Any("error", err))
		return
	}
	logger.Debug("Loaded .env file")
}

// applyConfig validates fc and derives the converter options from it.
func applyConfig(opts *converter.Options, fc *fileConfig, logger *slog.Logger) error {
	invalid := func(key string, format string, args ...any) error {
		err := fmt.Errorf("%w: %s", converter.ErrConfigValidation, fmt.Sprintf(format, args...))
		logger.Error(err.Error(), slog.String("key", key))
		return err
	}

	if fc.Logger.Input.Threads < 1 {
		return invalid(KeyThreads, "invalid value '%d' for key '%s' (flag --threads). Must be >= 1", fc.Logger.Input.Threads, KeyThreads)
	}
	opts.Concurrency = fc.Logger.Input.Threads

	if fc.Logger.Input.Dir == "" {
		return invalid(KeyInputDir, "input directory cannot be empty")
	}
	if fc.Logger.Output.File == "" {
		return invalid(KeyOutputFile, "output file cannot be empty")
	}
	absInput, err := filepath.Abs(fc.Logger.Input.Dir)
	if err != nil {
		return invalid(KeyInputDir, "cannot resolve absolute input path '%s': %v", fc.Logger.Input.Dir, err)
	}
	absOutput, err := filepath.Abs(fc.Logger.Output.File)
	if err != nil {
		return invalid(KeyOutputFile, "cannot resolve absolute output path '%s': %v", fc.Logger.Output.File, err)
	}
	opts.InputPath, opts.OutputPath = absInput, absOutput

	format := converter.OutputFormat(strings.ToLower(fc.Logger.Report.Format))
	allowed := []converter.OutputFormat{converter.OutputFormatText, converter.OutputFormatJSON, converter.OutputFormatYAML}
	if !slices.Contains(allowed, format) {
		return invalid(KeyReportFormat, "invalid value '%s' for key '%s' (flag --output-format). Allowed: %v", fc.Logger.Report.Format, KeyReportFormat, allowed)
	}
	opts.OutputFormat = format

	if label := fc.Logger.Encoding.Default; label != "" {
		if enc, _ := charset.Lookup(label); enc == nil {
			return invalid(KeyDefaultEncoding, "unknown encoding '%s' for key '%s'", label, KeyDefaultEncoding)
		}
		opts.DefaultEncoding = label
	}

	opts.HandlerMappings = make(map[string]string, len(fc.Logger.Handler))
	for ext, id := range fc.Logger.Handler {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		id = strings.TrimSpace(id)
		if ext == "" || id == "" {
			continue
		}
		opts.HandlerMappings[ext] = id
	}
	if len(opts.HandlerMappings) == 0 {
		logger.Warn("No logger.handler.<ext> entries configured; every file will be skipped")
	}

	opts.IgnorePatterns = fc.Logger.Input.Ignore
	opts.XMLSchemaPath = fc.Logger.Schema.XML
	opts.JSONSchemaPath = fc.Logger.Schema.JSON
	opts.MappingFile = fc.Logger.Mapping.File
	opts.MetricsFile = fc.Logger.Metrics.File
	if opts.MappingFile == "" {
		return invalid(KeyMappingFile, "mapping file cannot be empty")
	}
	return nil
}

// splitList splits comma-separated entries and drops blanks.
func splitList(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, p := range strings.Split(entry, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
