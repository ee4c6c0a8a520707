package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

// TaskFunc processes one input file. It must handle its own errors.
type TaskFunc func(ctx context.Context, workerID int, file InputFile)

// Completer signals when all submitted work has finished.
type Completer interface {
	Done() <-chan struct{}
}

// Pool is a fixed-size worker pool over InputFiles. Tasks are independent;
// a failing task never affects the others or the pool.
type Pool struct {
	workers int
	task    TaskFunc
	logger  *slog.Logger

	tasks       chan InputFile
	wg          sync.WaitGroup
	done        chan struct{}
	outstanding atomic.Int64

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewPool creates a pool of workers running task. Call Start before Submit.
func NewPool(workers int, task TaskFunc, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		task:    task,
		logger:  logger.With(slog.String("component", "pool")),
		tasks:   make(chan InputFile, workers),
		done:    make(chan struct{}),
	}
}

// Start launches the workers. Done closes once Close has been called and
// every submitted task has returned.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Debug("Starting worker pool", "count", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	go func() {
		p.wg.Wait()
		p.logger.Debug("All workers finished")
		close(p.done)
	}()
}

// Submit queues file for processing. It blocks while all workers are busy
// and the hand-off buffer is full, and gives up if ctx is cancelled.
func (p *Pool) Submit(ctx context.Context, file InputFile) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.outstanding.Add(1)
	select {
	case p.tasks <- file:
		return nil
	case <-ctx.Done():
		p.outstanding.Add(-1)
		return ctx.Err()
	}
}

// Close stops accepting work. Tasks already submitted still run.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
}

// Done is closed when the pool has no queued or running tasks left after Close.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Outstanding returns the number of submitted tasks that have not returned.
func (p *Pool) Outstanding() int64 {
	return p.outstanding.Load()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	wLogger := p.logger.With(slog.Int("workerID", id))
	wLogger.Debug("Worker started")

	for {
		select {
		case file, ok := <-p.tasks:
			if !ok {
				wLogger.Debug("Worker shutting down (channel closed)")
				return
			}
			p.run(ctx, id, file, wLogger)
		case <-ctx.Done():
			wLogger.Debug("Worker shutting down (context cancelled)")
			p.discard()
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, file InputFile, wLogger *slog.Logger) {
	defer p.outstanding.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			wLogger.Error("Panic recovered in worker", "path", file.Path, "panicValue", fmt.Sprint(r))
		}
	}()
	p.task(ctx, id, file)
}

// discard drops tasks left in the buffer after cancellation so Outstanding
// reaches zero and Submit callers are not left blocked.
func (p *Pool) discard() {
	for {
		select {
		case _, ok := <-p.tasks:
			if !ok {
				return
			}
			p.outstanding.Add(-1)
		default:
			return
		}
	}
}
