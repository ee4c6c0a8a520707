package converter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/stackvity/activity-logger/pkg/converter/metrics"
)

// WriterState is the Writer's position in its drain loop.
type WriterState int

const (
	// WriterRunning: producers may still push lines.
	WriterRunning WriterState = iota
	// WriterDraining: the pool has finished; flushing what is left in the queue.
	WriterDraining
	// WriterDone: the queue was observed empty after the pool finished.
	WriterDone
)

func (s WriterState) String() string {
	switch s {
	case WriterRunning:
		return "running"
	case WriterDraining:
		return "draining"
	case WriterDone:
		return "done"
	default:
		return fmt.Sprintf("WriterState(%d)", int(s))
	}
}

// Writer is the single consumer of an OutputQueue.
type Writer struct {
	logger  *slog.Logger
	metrics *metrics.Collector
	onLine  func()
}

// NewWriter creates a Writer. onLine, if set, is called after every line written.
func NewWriter(loggerHandler slog.Handler, m *metrics.Collector, onLine func()) *Writer {
	return &Writer{
		logger:  slog.New(loggerHandler).With(slog.String("component", "writer")),
		metrics: m,
		onLine:  onLine,
	}
}

// Drain truncates outputPath and writes one line per queued item until pool
// is done and the queue has been emptied after that. It suspends on the
// queue and the pool instead of polling. Cancelling ctx stops the drain
// after flushing what was already written.
func (w *Writer) Drain(ctx context.Context, outputPath string, pool Completer, queue *OutputQueue) (written int, err error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputOpen, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close: %w", ErrOutputWrite, cerr)
		}
	}()

	buf := bufio.NewWriter(f)
	state := WriterRunning
	poolDone := pool.Done()
	w.logger.Debug("Writer started", slog.String("path", outputPath))

	for {
		for {
			line, ok := queue.TryPop()
			if !ok {
				break
			}
			if _, err := buf.WriteString(line); err != nil {
				return written, fmt.Errorf("%w: %w", ErrOutputWrite, err)
			}
			if err := buf.WriteByte('\n'); err != nil {
				return written, fmt.Errorf("%w: %w", ErrOutputWrite, err)
			}
			written++
			w.metrics.LineWritten()
			if w.onLine != nil {
				w.onLine()
			}
		}
		w.metrics.SetQueueDepth(queue.Len())
		if err := buf.Flush(); err != nil {
			return written, fmt.Errorf("%w: flush: %w", ErrOutputWrite, err)
		}

		// Every push happens before the pool reports done, so one more empty
		// pass after observing it means nothing is left in flight.
		if state == WriterDraining {
			state = WriterDone
			w.logger.Debug("Writer finished", slog.Int("lines", written), slog.String("state", state.String()))
			return written, nil
		}

		select {
		case <-queue.Ready():
		case <-poolDone:
			state = WriterDraining
			poolDone = nil
			w.logger.Debug("Pool finished, draining queue", slog.Int("queued", queue.Len()))
		case <-ctx.Done():
			w.logger.Warn("Writer cancelled before queue was drained",
				slog.Int("lines", written), slog.Int("queued", queue.Len()))
			return written, fmt.Errorf("%w: %w", ErrOutputWrite, ctx.Err())
		}
	}
}
