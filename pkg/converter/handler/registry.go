package handler

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Mappings maps a file extension to a handler identifier.
	Mappings map[string]string
	// Constructors maps a handler identifier to its constructor.
	// Defaults to DefaultConstructors.
	Constructors map[string]Constructor
	// Deps is passed to every constructor.
	Deps Dependencies
	// Logger receives resolution warnings. Defaults to a discarding logger.
	Logger *slog.Logger
	// OnConstruct, if set, is called once per constructed handler.
	OnConstruct func(extension, identifier string)
}

// Registry resolves file extensions to handlers. At most one handler is
// constructed per extension, even when first lookups race.
type Registry struct {
	mappings     map[string]string
	constructors map[string]Constructor
	deps         Dependencies
	logger       *slog.Logger
	onConstruct  func(extension, identifier string)

	cache sync.Map // extension -> Handler
	group singleflight.Group
}

// NewRegistry creates a Registry. Extension and identifier keys are
// lowercased.
func NewRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	constructors := opts.Constructors
	if constructors == nil {
		constructors = DefaultConstructors()
	}

	r := &Registry{
		mappings:     make(map[string]string, len(opts.Mappings)),
		constructors: make(map[string]Constructor, len(constructors)),
		deps:         opts.Deps,
		logger:       logger.With(slog.String("component", "registry")),
		onConstruct:  opts.OnConstruct,
	}
	for ext, id := range opts.Mappings {
		r.mappings[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = strings.ToLower(strings.TrimSpace(id))
	}
	for id, ctor := range constructors {
		r.constructors[strings.ToLower(id)] = ctor
	}
	if r.deps.Logger == nil {
		r.deps.Logger = r.logger
	}
	return r
}

// Resolve returns the handler for extension. ok is false when no handler
// is configured for it or its construction failed.
func (r *Registry) Resolve(extension string) (h Handler, ok bool) {
	ext := strings.ToLower(extension)
	if ext == "" {
		return nil, false
	}
	if cached, found := r.cache.Load(ext); found {
		return cached.(Handler), true
	}
	id, configured := r.mappings[ext]
	if !configured || id == "" {
		r.logger.Debug("No handler configured for extension", slog.String("extension", ext))
		return nil, false
	}

	v, err, _ := r.group.Do(ext, func() (interface{}, error) {
		if cached, found := r.cache.Load(ext); found {
			return cached, nil
		}
		ctor, known := r.constructors[id]
		if !known {
			return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, id)
		}
		built, err := ctor(r.deps)
		if err != nil {
			return nil, err
		}
		actual, _ := r.cache.LoadOrStore(ext, built)
		if r.onConstruct != nil {
			r.onConstruct(ext, id)
		}
		r.logger.Debug("Handler constructed", slog.String("extension", ext), slog.String("handler", id))
		return actual, nil
	})
	if err != nil {
		r.logger.Error("Failed to construct handler",
			slog.String("extension", ext), slog.String("handler", id), slog.String("error", err.Error()))
		return nil, false
	}
	return v.(Handler), true
}

// Extensions returns the configured extensions.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.mappings))
	for ext := range r.mappings {
		out = append(out, ext)
	}
	return out
}
