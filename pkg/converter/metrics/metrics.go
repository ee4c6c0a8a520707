// Package metrics counts conversion activity on a private prometheus
// registry so a run can export it as a node_exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the run's metrics. A nil *Collector discards everything.
type Collector struct {
	registry *prometheus.Registry

	FilesDiscovered     prometheus.Counter
	FilesProcessed      *prometheus.CounterVec
	LinesWritten        prometheus.Counter
	HandleDuration      *prometheus.HistogramVec
	HandlersConstructed *prometheus.CounterVec
	QueueDepth          prometheus.Gauge
}

// New registers all metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		FilesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "activity_logger_files_discovered_total",
			Help: "Total number of input files found by the scanner",
		}),
		FilesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_logger_files_processed_total",
				Help: "Total number of input files processed, by outcome",
			},
			[]string{"status"},
		),
		LinesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "activity_logger_lines_written_total",
			Help: "Total number of output lines written",
		}),
		HandleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "activity_logger_handle_duration_seconds",
				Help:    "Duration of validate and transform per file",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"extension"},
		),
		HandlersConstructed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_logger_handlers_constructed_total",
				Help: "Total number of handler instances constructed",
			},
			[]string{"extension", "handler"},
		),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "activity_logger_output_queue_depth",
			Help: "Number of output lines waiting for the writer",
		}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) FileDiscovered() {
	if c != nil {
		c.FilesDiscovered.Inc()
	}
}

func (c *Collector) FileProcessed(status string) {
	if c != nil {
		c.FilesProcessed.WithLabelValues(status).Inc()
	}
}

func (c *Collector) LineWritten() {
	if c != nil {
		c.LinesWritten.Inc()
	}
}

func (c *Collector) ObserveHandle(extension string, d time.Duration) {
	if c != nil {
		c.HandleDuration.WithLabelValues(extension).Observe(d.Seconds())
	}
}

func (c *Collector) HandlerConstructed(extension, handler string) {
	if c != nil {
		c.HandlersConstructed.WithLabelValues(extension, handler).Inc()
	}
}

func (c *Collector) SetQueueDepth(n int) {
	if c != nil {
		c.QueueDepth.Set(float64(n))
	}
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %q: %w", path, err)
	}
	return nil
}
