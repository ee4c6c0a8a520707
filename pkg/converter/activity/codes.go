package activity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// CodeTable maps integer activity codes to descriptions. It is read-only
// after construction and safe for concurrent use.
type CodeTable struct {
	entries map[int]string
}

// NewCodeTable wraps a prebuilt map. The map is copied.
func NewCodeTable(entries map[int]string) *CodeTable {
	copied := make(map[int]string, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &CodeTable{entries: copied}
}

// LoadCodeTable reads a `code,description` file. Lines that do not hold
// exactly two fields or whose code is not an integer are skipped.
func LoadCodeTable(path string, logger *slog.Logger) (*CodeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open code table %q: %w", path, err)
	}
	defer f.Close()

	table, err := ReadCodeTable(f, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read code table %q: %w", path, err)
	}
	return table, nil
}

// ReadCodeTable parses table lines from r.
func ReadCodeTable(r io.Reader, logger *slog.Logger) (*CodeTable, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	entries := make(map[int]string)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn("Skipping malformed code table line", "line", parseErr.Line, "error", err)
				continue
			}
			return nil, err
		}
		if len(record) != 2 {
			logger.Debug("Skipping code table line with unexpected field count", "fields", len(record))
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			logger.Debug("Skipping code table line with non-integer code", "code", record[0])
			continue
		}
		entries[code] = strings.TrimSpace(record[1])
	}
	return &CodeTable{entries: entries}, nil
}

// Lookup returns the description for code.
func (t *CodeTable) Lookup(code int) (string, bool) {
	d, ok := t.entries[code]
	return d, ok
}

// Len returns the number of entries.
func (t *CodeTable) Len() int { return len(t.entries) }
