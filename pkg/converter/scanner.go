package converter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the input directory, if present, for extra
// ignore patterns (one per line, '#' comments, '!' re-includes).
const IgnoreFileName = ".activityloggerignore"

// Scanner lists the regular files directly inside the input directory.
type Scanner struct {
	opts          *Options
	hooks         Hooks
	logger        *slog.Logger
	ignoreMatcher *ignoreMatcher
	excludePath   string
}

// NewScanner creates a Scanner. The output file is never reported as input.
func NewScanner(opts *Options, loggerHandler slog.Handler) (*Scanner, error) {
	logger := slog.New(loggerHandler).With(slog.String("component", "scanner"))
	matcher, err := newIgnoreMatcher(opts.InputPath, opts.IgnorePatterns, logger)
	if err != nil {
		logger.Error("Failed to initialize ignore pattern matcher", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to initialize ignore patterns: %w", err)
	}
	logger.Debug("Ignore patterns loaded", slog.Int("count", matcher.patternCount()))

	excludePath := ""
	if opts.OutputPath != "" {
		if abs, err := filepath.Abs(opts.OutputPath); err == nil {
			excludePath = abs
		}
	}

	hooks := opts.EventHooks
	if hooks == nil {
		hooks = &NoOpHooks{}
	}
	return &Scanner{
		opts:          opts,
		hooks:         hooks,
		logger:        logger,
		ignoreMatcher: matcher,
		excludePath:   excludePath,
	}, nil
}

// Scan returns the eligible files in name order together with the files
// skipped by ignore rules. A directory that cannot be listed is fatal.
func (s *Scanner) Scan(ctx context.Context) ([]InputFile, []SkippedInfo, error) {
	s.logger.Info("Scanning input directory", slog.String("path", s.opts.InputPath))
	entries, err := os.ReadDir(s.opts.InputPath)
	if err != nil {
		s.logger.Error("Cannot list input directory", slog.String("path", s.opts.InputPath), slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("%w %q: %w", ErrScanFailed, s.opts.InputPath, err)
	}

	files := make([]InputFile, 0, len(entries))
	var skipped []SkippedInfo
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !entry.Type().IsRegular() {
			s.logger.Debug("Skipping non-regular entry", slog.String("name", entry.Name()), slog.String("mode", entry.Type().String()))
			continue
		}
		path := filepath.Join(s.opts.InputPath, entry.Name())
		if s.isOutputFile(path) {
			s.logger.Debug("Skipping output file", slog.String("path", path))
			continue
		}
		if pattern, ignored := s.ignoreMatcher.Match(entry.Name()); ignored {
			s.logger.Debug("Path ignored", slog.String("path", path), slog.String("pattern", pattern))
			skipped = append(skipped, SkippedInfo{Path: path, Reason: SkipReasonIgnored, Details: "Matched pattern: " + pattern})
			continue
		}

		if hookErr := s.hooks.OnFileDiscovered(path); hookErr != nil {
			s.logger.Warn("Event hook OnFileDiscovered failed", slog.String("path", path), slog.String("error", hookErr.Error()))
		}
		files = append(files, NewInputFile(path, entry.Name()))
	}
	s.logger.Info("Scan completed", slog.Int("files", len(files)), slog.Int("ignored", len(skipped)))
	return files, skipped, nil
}

func (s *Scanner) isOutputFile(path string) bool {
	if s.excludePath == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	return err == nil && abs == s.excludePath
}

// --- ignoreMatcher ---

type ignoreMatcher struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob   string
	negate bool
}

func newIgnoreMatcher(inputPath string, configPatterns []string, logger *slog.Logger) (*ignoreMatcher, error) {
	m := &ignoreMatcher{}
	if err := m.addPatterns(configPatterns); err != nil {
		return nil, err
	}

	ignoreFile := filepath.Join(inputPath, IgnoreFileName)
	filePatterns, err := loadPatternsFromFile(ignoreFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("No ignore file found", slog.String("path", ignoreFile))
	case err != nil:
		logger.Warn("Cannot read ignore file, continuing without it", slog.String("path", ignoreFile), slog.String("error", err.Error()))
	default:
		logger.Debug("Loaded patterns from ignore file", slog.String("path", ignoreFile), slog.Int("count", len(filePatterns)))
		if err := m.addPatterns(filePatterns); err != nil {
			return nil, fmt.Errorf("ignore file %s: %w", ignoreFile, err)
		}
	}
	// The ignore file itself is never input.
	m.patterns = append(m.patterns, ignorePattern{glob: IgnoreFileName})
	return m, nil
}

func loadPatternsFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", path, err)
	}
	return patterns, nil
}

func (m *ignoreMatcher) addPatterns(raw []string) error {
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		p := ignorePattern{glob: r}
		if strings.HasPrefix(r, "!") {
			p.negate = true
			p.glob = r[1:]
		}
		if _, err := filepath.Match(p.glob, ""); err != nil {
			return fmt.Errorf("%w: invalid ignore pattern %q: %w", ErrConfigValidation, r, err)
		}
		m.patterns = append(m.patterns, p)
	}
	return nil
}

// Match applies patterns in order; the last matching pattern decides.
func (m *ignoreMatcher) Match(name string) (pattern string, ignored bool) {
	for _, p := range m.patterns {
		if ok, _ := filepath.Match(p.glob, name); ok {
			ignored = !p.negate
			pattern = p.glob
		}
	}
	if !ignored {
		pattern = ""
	}
	return pattern, ignored
}

func (m *ignoreMatcher) patternCount() int { return len(m.patterns) }
