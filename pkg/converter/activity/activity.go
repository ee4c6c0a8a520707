// Package activity holds the normalized activity record shared by all input
// formats, its JSON-lines output form and the code lookup table.
package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OutputTimeLayout is the layout of signedInTime in output lines.
const OutputTimeLayout = "2006-01-02 15:04:05"

var (
	// ErrMissingField indicates a parsed record lacks a field every output line needs.
	ErrMissingField = errors.New("activity is missing a required field")
)

// Activity is the intermediate record a handler extracts from one input file.
// It is never persisted.
type Activity struct {
	User        string
	Website     string
	Description string
	Code        int
	HasCode     bool
	SignedIn    time.Time
	Views       int
}

// Validate checks the fields required to produce an output line.
func (a Activity) Validate() error {
	var missing []string
	if strings.TrimSpace(a.User) == "" {
		missing = append(missing, "user")
	}
	if strings.TrimSpace(a.Website) == "" {
		missing = append(missing, "website")
	}
	if a.SignedIn.IsZero() {
		missing = append(missing, "signedInTime")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// Line is one normalized output record. Field order is the serialized order.
type Line struct {
	User                    string `json:"user"`
	Website                 string `json:"website"`
	ActivityTypeDescription string `json:"activityTypeDescription,omitempty"`
	SignedInTime            string `json:"signedInTime"`
}

// Mapper turns Activity records into serialized output lines, resolving
// descriptions from a CodeTable when the input only carries a code.
type Mapper struct {
	codes *CodeTable
}

// NewMapper creates a Mapper. A nil table resolves no codes.
func NewMapper(codes *CodeTable) *Mapper {
	if codes == nil {
		codes = NewCodeTable(nil)
	}
	return &Mapper{codes: codes}
}

// Describe returns the explicit description if present, else the code's
// table entry. An unresolved code yields "".
func (m *Mapper) Describe(a Activity) string {
	if d := strings.TrimSpace(a.Description); d != "" {
		return d
	}
	if a.HasCode {
		if d, ok := m.codes.Lookup(a.Code); ok {
			return d
		}
	}
	return ""
}

// ToLine maps a validated Activity onto its output form.
func (m *Mapper) ToLine(a Activity) (Line, error) {
	if err := a.Validate(); err != nil {
		return Line{}, err
	}
	return Line{
		User:                    a.User,
		Website:                 a.Website,
		ActivityTypeDescription: m.Describe(a),
		SignedInTime:            a.SignedIn.Format(OutputTimeLayout),
	}, nil
}

// Format serializes a as a single-line JSON object.
func (m *Mapper) Format(a Activity) (string, error) {
	line, err := m.ToLine(a)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(line)
	if err != nil {
		return "", fmt.Errorf("failed to marshal output line: %w", err)
	}
	return string(data), nil
}
