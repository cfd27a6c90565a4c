package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
	Timer   MetricType = "timer"
)

// Metric represents a telemetry metric
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
	Unit      string            `json:"unit,omitempty"`
}

// Collector buffers metrics and periodically flushes them to the log.
type Collector struct {
	mu      sync.RWMutex
	metrics []Metric
	enabled bool
	flushCh chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewCollector creates a new telemetry collector
func NewCollector(enabled bool, flushInterval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}

	c := &Collector{
		metrics: make([]Metric, 0),
		enabled: enabled,
		flushCh: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	if enabled {
		go c.periodicFlush(flushInterval)
	}

	return c
}

// Counter increments a counter metric
func (c *Collector) Counter(name string, value float64, labels map[string]string) {
	if !c.enabled {
		return
	}
	c.addMetric(Metric{Name: name, Type: Counter, Value: value, Labels: labels, Timestamp: time.Now()})
}

// Gauge sets a gauge metric value
func (c *Collector) Gauge(name string, value float64, labels map[string]string) {
	if !c.enabled {
		return
	}
	c.addMetric(Metric{Name: name, Type: Gauge, Value: value, Labels: labels, Timestamp: time.Now()})
}

// Timer records a duration measurement
func (c *Collector) Timer(name string, duration time.Duration, labels map[string]string) {
	if !c.enabled {
		return
	}
	c.addMetric(Metric{
		Name:      name,
		Type:      Timer,
		Value:     float64(duration.Milliseconds()),
		Labels:    labels,
		Timestamp: time.Now(),
		Unit:      "ms",
	})
}

// addMetric adds a metric to the collection
func (c *Collector) addMetric(metric Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = append(c.metrics, metric)

	// Trigger flush if we have too many metrics
	if len(c.metrics) >= 100 {
		select {
		case c.flushCh <- struct{}{}:
		default:
		}
	}
}

// GetMetrics returns a copy of current metrics
func (c *Collector) GetMetrics() []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Metric, len(c.metrics))
	copy(result, c.metrics)
	return result
}

// FlushMetrics drains the buffer and logs every metric.
func (c *Collector) FlushMetrics() error {
	c.mu.Lock()
	metrics := make([]Metric, len(c.metrics))
	copy(metrics, c.metrics)
	c.metrics = c.metrics[:0]
	c.mu.Unlock()

	if len(metrics) == 0 {
		return nil
	}

	log.Debug().Int("count", len(metrics)).Msg("Flushing telemetry metrics")

	for _, metric := range metrics {
		log.Info().
			Str("name", metric.Name).
			Str("type", string(metric.Type)).
			Float64("value", metric.Value).
			Interface("labels", metric.Labels).
			Time("timestamp", metric.Timestamp).
			Msg("telemetry_metric")
	}

	return nil
}

func (c *Collector) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			_ = c.FlushMetrics()
		case <-c.flushCh:
			_ = c.FlushMetrics()
		}
	}
}

// Shutdown stops the collector
func (c *Collector) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}
	return c.FlushMetrics()
}

var (
	globalMu        sync.RWMutex
	globalCollector = NewCollector(false, 0)
)

// SetGlobal replaces the process-wide collector.
func SetGlobal(c *Collector) {
	globalMu.Lock()
	globalCollector = c
	globalMu.Unlock()
}

func global() *Collector {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCollector
}

// CounterGlobal increments a counter on the process-wide collector.
func CounterGlobal(name string, value float64, labels map[string]string) {
	global().Counter(name, value, labels)
}

// GaugeGlobal sets a gauge on the process-wide collector.
func GaugeGlobal(name string, value float64, labels map[string]string) {
	global().Gauge(name, value, labels)
}

// TimerGlobal records a duration on the process-wide collector.
func TimerGlobal(name string, duration time.Duration, labels map[string]string) {
	global().Timer(name, duration, labels)
}
