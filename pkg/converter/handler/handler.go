// Package handler turns the content of one input file into one normalized
// output line. Each supported input format is a Handler variant; a Registry
// picks the variant for a file by its extension.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/stackvity/activity-logger/pkg/converter/activity"
)

var (
	// ErrValidationFailed indicates content was rejected before transformation.
	ErrValidationFailed = errors.New("content failed validation")

	// ErrTransformFailed indicates content could not be parsed or mapped.
	ErrTransformFailed = errors.New("content could not be transformed")

	// ErrUnknownHandler indicates a configured identifier has no constructor.
	ErrUnknownHandler = errors.New("unknown handler identifier")
)

// Handler validates and transforms the content of a single input file.
// Implementations must be safe for concurrent use.
type Handler interface {
	// Validate reports whether content is acceptable for Transform.
	Validate(content string) (bool, error)
	// Transform converts content into a serialized output line.
	Transform(content string) (string, error)
}

// Dependencies are the shared collaborators handed to every constructor.
type Dependencies struct {
	Mapper         *activity.Mapper
	XMLSchemaPath  string
	JSONSchemaPath string
	Logger         *slog.Logger
}

// Constructor builds a Handler. A non-nil error means no handler is
// available for the extensions mapped to it.
type Constructor func(deps Dependencies) (Handler, error)

// DefaultConstructors returns the built-in identifier table.
func DefaultConstructors() map[string]Constructor {
	return map[string]Constructor{
		"xml":  NewXMLHandler,
		"json": NewJSONHandler,
	}
}

// Handle runs Validate then Transform. It never panics; an error means
// content produced no line and is left to the caller to log.
func Handle(h Handler, content string) (line string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrTransformFailed, r)
		}
	}()

	ok, vErr := h.Validate(content)
	switch {
	case vErr != nil:
		err = fmt.Errorf("%w: %w", ErrValidationFailed, vErr)
	case !ok:
		err = ErrValidationFailed
	}
	if err != nil {
		return "", err
	}

	line, tErr := h.Transform(content)
	if tErr != nil {
		return "", fmt.Errorf("%w: %w", ErrTransformFailed, tErr)
	}
	return line, nil
}

// Extension returns the lowercased text after the last '.' of name's base.
// ok is false for names without a dot.
func Extension(name string) (ext string, ok bool) {
	base := filepath.Base(name)
	if name == "" || base == "." {
		return "", false
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return "", false
	}
	return strings.ToLower(base[i+1:]), true
}
