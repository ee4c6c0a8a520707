// Package converter batch-converts a directory of activity-log files into a
// single JSON-lines file. A bounded worker pool validates and transforms
// files in parallel and hands lines to a single writer through an unbounded
// queue; the run ends once every task has finished and the queue is drained.
package converter

import (
	"context"
	"log/slog"
)

// Convert is the main entry point for the conversion library.
func Convert(ctx context.Context, opts Options) (Report, error) {
	engine, err := NewEngine(ctx, opts)
	if err != nil {
		if opts.Logger != nil {
			slog.New(opts.Logger).Error("Failed to initialize conversion engine", slog.String("error", err.Error()))
		}
		return Report{}, err
	}
	return engine.Run()
}
