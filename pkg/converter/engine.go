package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stackvity/activity-logger/pkg/converter/activity"
	"github.com/stackvity/activity-logger/pkg/converter/encoding"
	"github.com/stackvity/activity-logger/pkg/converter/handler"
)

// Engine orchestrates one conversion run: scan, dispatch to the worker pool,
// and drain the output queue.
type Engine struct {
	opts        *Options
	logger      *slog.Logger
	hooks       Hooks
	resolver    HandlerResolver
	decoder     encoding.Decoder
	scanner     *Scanner
	writer      *Writer
	aggregator  *reportAggregator
	ctx         context.Context
	cancelFunc  context.CancelFunc
	runID       string
	concurrency int
	written     atomic.Int64
}

// NewEngine validates options and wires default collaborators.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.InputPath == "" {
		return nil, fmt.Errorf("%w: input path cannot be empty", ErrConfigValidation)
	}
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("%w: output path cannot be empty", ErrConfigValidation)
	}
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrConfigValidation, opts.Concurrency)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}

	runID := uuid.NewString()
	logger := slog.New(opts.Logger).With(slog.String("component", "engine"), slog.String("runID", runID))

	if opts.Decoder == nil {
		opts.Decoder = encoding.NewCharsetDecoder(opts.DefaultEncoding)
		logger.Debug("Decoder not provided, using default charset decoder.")
	}
	if opts.Resolver == nil {
		if len(opts.HandlerMappings) == 0 {
			logger.Warn("No handler mappings configured; every file will be skipped")
		}
		registry := handler.NewRegistry(handler.RegistryOptions{
			Mappings: opts.HandlerMappings,
			Deps: handler.Dependencies{
				Mapper:         activity.NewMapper(opts.Codes),
				XMLSchemaPath:  opts.XMLSchemaPath,
				JSONSchemaPath: opts.JSONSchemaPath,
			},
			Logger:      slog.New(opts.Logger),
			OnConstruct: opts.Metrics.HandlerConstructed,
		})
		opts.Resolver = registry
		logger.Debug("Resolver not provided, using handler registry.", slog.Any("extensions", registry.Extensions()))
	}

	scanner, err := NewScanner(&opts, opts.Logger)
	if err != nil {
		return nil, err
	}

	engineCtx, cancelFunc := context.WithCancel(ctx)
	e := &Engine{
		opts:        &opts,
		logger:      logger,
		hooks:       opts.EventHooks,
		resolver:    opts.Resolver,
		decoder:     opts.Decoder,
		scanner:     scanner,
		aggregator:  newReportAggregator(),
		ctx:         engineCtx,
		cancelFunc:  cancelFunc,
		runID:       runID,
		concurrency: opts.Concurrency,
	}
	e.writer = NewWriter(opts.Logger, opts.Metrics, func() { e.written.Add(1) })
	return e, nil
}

// Run scans, converts and writes. It returns an error only when the run
// could not complete: the directory could not be listed, the output could
// not be written, or ctx was cancelled. Per-file failures are in the Report.
func (e *Engine) Run() (report Report, finalErr error) {
	startTime := time.Now()
	e.logger.Info("Starting conversion run",
		slog.String("input", e.opts.InputPath), slog.String("output", e.opts.OutputPath), slog.Int("concurrency", e.concurrency))

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic recovered during engine run", "panicValue", r)
			finalErr = fmt.Errorf("panic during execution: %v", r)
		}
		e.cancelFunc()

		if finalErr != nil {
			e.aggregator.addError(ErrorInfo{Path: e.opts.InputPath, Error: finalErr.Error(), IsFatal: true})
		}
		report = e.aggregator.getReport(e, startTime, finalErr != nil)
		e.logger.Info("Conversion run finished",
			slog.Duration("duration", time.Since(startTime)),
			slog.Int("scanned", report.Summary.TotalFilesScanned),
			slog.Int("written", report.Summary.LinesWritten),
			slog.Int("skipped", report.Summary.SkippedCount),
			slog.Int("errors", report.Summary.ErrorCount),
			slog.Bool("fatalErrorOccurred", report.Summary.FatalErrorOccurred),
		)
		if hookErr := e.hooks.OnRunComplete(report); hookErr != nil {
			e.logger.Warn("OnRunComplete hook returned an error", slog.String("error", hookErr.Error()))
		}
	}()

	files, ignored, err := e.scanner.Scan(e.ctx)
	if err != nil {
		return Report{}, err
	}
	e.aggregator.setScanned(len(files) + len(ignored))
	for _, s := range ignored {
		e.aggregator.addSkipped(s)
		e.opts.Metrics.FileDiscovered()
		e.opts.Metrics.FileProcessed(string(StatusSkipped))
	}
	for range files {
		e.opts.Metrics.FileDiscovered()
	}

	queue := NewOutputQueue()
	g, gctx := errgroup.WithContext(e.ctx)
	pool := NewPool(e.concurrency, func(ctx context.Context, workerID int, file InputFile) {
		e.processFile(ctx, workerID, file, queue)
	}, e.logger)
	pool.Start(gctx)

	g.Go(func() error {
		return e.dispatch(gctx, files, pool)
	})
	g.Go(func() error {
		_, err := e.writer.Drain(gctx, e.opts.OutputPath, pool, queue)
		return err
	})

	err = g.Wait()
	// Workers stop on cancellation; wait so no task outlives Run.
	<-pool.Done()

	if err == nil {
		if ctxErr := e.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.logger.Info("Conversion run cancelled", slog.String("reason", err.Error()))
		}
		return Report{}, err
	}
	return Report{}, nil
}

// dispatch submits every file and then closes the pool. Submission is
// fire-and-forget: results reach the queue, failures reach the report.
func (e *Engine) dispatch(ctx context.Context, files []InputFile, pool *Pool) error {
	defer pool.Close()
	for _, file := range files {
		if err := pool.Submit(ctx, file); err != nil {
			if errors.Is(err, context.Canceled) {
				// The writer's error, if any, is the one worth reporting.
				return nil
			}
			return err
		}
	}
	e.logger.Debug("All files submitted", slog.Int("count", len(files)))
	return nil
}

// processFile runs on a worker. It never returns an error: every per-file
// outcome is logged, reported to hooks and recorded in the report.
func (e *Engine) processFile(ctx context.Context, workerID int, file InputFile, sink *OutputQueue) {
	start := time.Now()
	logger := e.logger.With(slog.Int("workerID", workerID), slog.String("path", file.Path))
	e.statusUpdate(file.Path, StatusProcessing, "", 0)

	skip := func(reason, details string) {
		logger.Warn("File skipped", slog.String("reason", reason), slog.String("details", details))
		e.aggregator.addSkipped(SkippedInfo{Path: file.Path, Reason: reason, Details: details})
		e.opts.Metrics.FileProcessed(string(StatusSkipped))
		e.statusUpdate(file.Path, StatusSkipped, details, time.Since(start))
	}
	fail := func(err error) {
		logger.Error("File failed", slog.String("extension", file.Extension), slog.String("error", err.Error()))
		e.aggregator.addError(ErrorInfo{Path: file.Path, Error: err.Error()})
		e.opts.Metrics.FileProcessed(string(StatusFailed))
		e.statusUpdate(file.Path, StatusFailed, err.Error(), time.Since(start))
	}

	if !file.HasExtension || file.Extension == "" {
		skip(SkipReasonNoExtension, "file name has no extension")
		return
	}
	h, ok := e.resolver.Resolve(file.Extension)
	if !ok {
		skip(SkipReasonNoHandler, fmt.Sprintf("no handler for extension %q", file.Extension))
		return
	}

	raw, err := os.ReadFile(file.Path)
	if err != nil {
		fail(fmt.Errorf("%w: %w", ErrReadFailed, err))
		return
	}
	if e.decoder.IsBinary(raw) {
		skip(SkipReasonBinary, ErrBinaryFile.Error())
		return
	}
	content, enc, _, err := e.decoder.DetectAndDecode(raw)
	if err != nil {
		fail(fmt.Errorf("%w: %w", ErrDecodeFailed, err))
		return
	}
	if err := ctx.Err(); err != nil {
		logger.Debug("Run cancelled before handling file")
		return
	}

	line, err := handler.Handle(h, string(content))
	e.opts.Metrics.ObserveHandle(file.Extension, time.Since(start))
	if err != nil {
		fail(err)
		return
	}
	if line == "" {
		skip(SkipReasonEmpty, "handler produced no output")
		return
	}

	sink.Push(line)
	e.aggregator.addProcessed(FileInfo{
		Path:       file.Path,
		Extension:  file.Extension,
		Encoding:   enc,
		SizeBytes:  int64(len(raw)),
		DurationMs: time.Since(start).Milliseconds(),
	})
	e.opts.Metrics.FileProcessed(string(StatusSuccess))
	e.statusUpdate(file.Path, StatusSuccess, "", time.Since(start))
}

func (e *Engine) statusUpdate(path string, status Status, message string, d time.Duration) {
	if hookErr := e.hooks.OnFileStatusUpdate(path, status, message, d); hookErr != nil {
		e.logger.Warn("Event hook OnFileStatusUpdate failed", slog.String("path", path), slog.String("error", hookErr.Error()))
	}
}

// --- reportAggregator ---

// reportAggregator collects per-file outcomes from concurrent workers.
type reportAggregator struct {
	mu             sync.Mutex
	scanned        int
	processedFiles []FileInfo
	skippedFiles   []SkippedInfo
	errors         []ErrorInfo
}

func newReportAggregator() *reportAggregator {
	return &reportAggregator{
		processedFiles: make([]FileInfo, 0, 128),
		skippedFiles:   make([]SkippedInfo, 0, 16),
		errors:         make([]ErrorInfo, 0, 16),
	}
}

func (a *reportAggregator) setScanned(n int) {
	a.mu.Lock()
	a.scanned = n
	a.mu.Unlock()
}

func (a *reportAggregator) addProcessed(info FileInfo) {
	a.mu.Lock()
	a.processedFiles = append(a.processedFiles, info)
	a.mu.Unlock()
}

func (a *reportAggregator) addSkipped(info SkippedInfo) {
	a.mu.Lock()
	a.skippedFiles = append(a.skippedFiles, info)
	a.mu.Unlock()
}

func (a *reportAggregator) addError(info ErrorInfo) {
	a.mu.Lock()
	a.errors = append(a.errors, info)
	a.mu.Unlock()
}

// getReport copies the collected state into a Report.
func (a *reportAggregator) getReport(e *Engine, startTime time.Time, fatal bool) Report {
	a.mu.Lock()
	processed := append([]FileInfo(nil), a.processedFiles...)
	skipped := append([]SkippedInfo(nil), a.skippedFiles...)
	errorsList := append([]ErrorInfo(nil), a.errors...)
	scanned := a.scanned
	a.mu.Unlock()

	perFileErrors := 0
	for _, ei := range errorsList {
		if !ei.IsFatal {
			perFileErrors++
		}
	}

	return Report{
		Summary: ReportSummary{
			RunID:              e.runID,
			InputPath:          e.opts.InputPath,
			OutputPath:         e.opts.OutputPath,
			ConfigFilePath:     e.opts.ConfigFilePath,
			TotalFilesScanned:  scanned,
			ProcessedCount:     len(processed),
			LinesWritten:       int(e.written.Load()),
			SkippedCount:       len(skipped),
			ErrorCount:         perFileErrors,
			FatalErrorOccurred: fatal,
			DurationSeconds:    time.Since(startTime).Seconds(),
			Concurrency:        e.concurrency,
			Timestamp:          time.Now().UTC(),
			SchemaVersion:      ReportSchemaVersion,
		},
		ProcessedFiles: processed,
		SkippedFiles:   skipped,
		Errors:         errorsList,
	}
}
