package prefixcode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// MetricHistogram
// ---------------------------------------------------------------------------

type histBucket struct {
	upperBound float64
	count      int64
}

// histogramReservoirSize bounds how many recent values are retained for
// percentile estimation.
const histogramReservoirSize = 4096

// MetricHistogram tracks a value distribution with fixed buckets plus a
// bounded reservoir of recent values for percentiles.
type MetricHistogram struct {
	count   int64
	sum     float64
	min     float64
	max     float64
	buckets []histBucket
	recent  []float64
	head    int
	mu      sync.Mutex
}

// NewMetricHistogram creates a histogram with the given bucket boundaries.
func NewMetricHistogram(boundaries []float64) *MetricHistogram {
	sorted := make([]float64, len(boundaries))
	copy(sorted, boundaries)
	sort.Float64s(sorted)

	buckets := make([]histBucket, len(sorted))
	for i, b := range sorted {
		buckets[i] = histBucket{upperBound: b}
	}
	return &MetricHistogram{
		min:     math.MaxFloat64,
		max:     -math.MaxFloat64,
		buckets: buckets,
		recent:  make([]float64, 0, 256),
	}
}

// Record adds a value to the histogram.
func (h *MetricHistogram) Record(value float64) {
	h.mu.Lock()
	h.count++
	h.sum += value
	if value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
	for i := range h.buckets {
		if value <= h.buckets[i].upperBound {
			h.buckets[i].count++
		}
	}
	if len(h.recent) < histogramReservoirSize {
		h.recent = append(h.recent, value)
	} else {
		h.recent[h.head] = value
		h.head = (h.head + 1) % histogramReservoirSize
	}
	h.mu.Unlock()
}

// HistogramSnapshot holds a point-in-time view of histogram data.
// Percentiles are computed over the retained recent values.
type HistogramSnapshot struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Snapshot returns a point-in-time snapshot of the histogram.
func (h *MetricHistogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := HistogramSnapshot{Count: h.count, Sum: h.sum}
	if h.count == 0 {
		return snap
	}

	snap.Min = h.min
	snap.Max = h.max
	snap.Avg = h.sum / float64(h.count)

	sorted := make([]float64, len(h.recent))
	copy(sorted, h.recent)
	sort.Float64s(sorted)

	snap.P50 = metricPercentile(sorted, 0.50)
	snap.P90 = metricPercentile(sorted, 0.90)
	snap.P95 = metricPercentile(sorted, 0.95)
	snap.P99 = metricPercentile(sorted, 0.99)
	return snap
}

func metricPercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// ---------------------------------------------------------------------------
// MetricsCollector
// ---------------------------------------------------------------------------

// MetricsSnapshot captures a point-in-time view of service counters.
type MetricsSnapshot struct {
	Timestamp     time.Time         `json:"timestamp"`
	Uptime        time.Duration     `json:"uptime"`
	Encodes       int64             `json:"encodes"`
	Decodes       int64             `json:"decodes"`
	EncodeErrors  int64             `json:"encode_errors"`
	DecodeErrors  int64             `json:"decode_errors"`
	BytesIn       int64             `json:"bytes_in"`
	BitsOut       int64             `json:"bits_out"`
	EncodeLatency HistogramSnapshot `json:"encode_latency"`
	DecodeLatency HistogramSnapshot `json:"decode_latency"`
}

// MetricsCollector gathers counters for the coding service.
// All methods are safe for concurrent use.
type MetricsCollector struct {
	startTime time.Time

	encodes      atomic.Int64
	decodes      atomic.Int64
	encodeErrors atomic.Int64
	decodeErrors atomic.Int64
	bytesIn      atomic.Int64
	bitsOut      atomic.Int64

	encodeLatency *MetricHistogram
	decodeLatency *MetricHistogram
}

func defaultLatencyBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 10}
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime:     time.Now(),
		encodeLatency: NewMetricHistogram(defaultLatencyBuckets()),
		decodeLatency: NewMetricHistogram(defaultLatencyBuckets()),
	}
}

// RecordEncode notes one encode call and its outcome.
func (mc *MetricsCollector) RecordEncode(bytesIn, bitsOut int, d time.Duration, err error) {
	if err != nil {
		mc.encodeErrors.Add(1)
		return
	}
	mc.encodes.Add(1)
	mc.bytesIn.Add(int64(bytesIn))
	mc.bitsOut.Add(int64(bitsOut))
	mc.encodeLatency.Record(d.Seconds())
}

// RecordDecode notes one decode call and its outcome.
func (mc *MetricsCollector) RecordDecode(d time.Duration, err error) {
	if err != nil {
		mc.decodeErrors.Add(1)
		return
	}
	mc.decodes.Add(1)
	mc.decodeLatency.Record(d.Seconds())
}

// Snapshot returns a point-in-time view of all collected metrics.
func (mc *MetricsCollector) Snapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		Timestamp:     time.Now(),
		Uptime:        time.Since(mc.startTime),
		Encodes:       mc.encodes.Load(),
		Decodes:       mc.decodes.Load(),
		EncodeErrors:  mc.encodeErrors.Load(),
		DecodeErrors:  mc.decodeErrors.Load(),
		BytesIn:       mc.bytesIn.Load(),
		BitsOut:       mc.bitsOut.Load(),
		EncodeLatency: mc.encodeLatency.Snapshot(),
		DecodeLatency: mc.decodeLatency.Snapshot(),
	}
}

// ---------------------------------------------------------------------------
// Health checks
// ---------------------------------------------------------------------------

// HealthState represents the health status of a component.
type HealthState int

const (
	HealthOK HealthState = iota
	HealthDegraded
	HealthUnhealthy
)

func (s HealthState) String() string {
	switch s {
	case HealthOK:
		return "ok"
	case HealthDegraded:
		return "degraded"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

func (s HealthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// HealthCheckResult is the outcome of a single health check invocation.
type HealthCheckResult struct {
	Status   HealthState            `json:"status"`
	Message  string                 `json:"message"`
	Duration time.Duration          `json:"duration"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// HealthCheckFunc is a function that performs a health check.
type HealthCheckFunc func(ctx context.Context) *HealthCheckResult

// HealthStatus is the aggregate health of the service.
type HealthStatus struct {
	Overall   HealthState                   `json:"overall"`
	Checks    map[string]*HealthCheckResult `json:"checks"`
	Timestamp time.Time                     `json:"timestamp"`
}

// HealthCheckerConfig controls health check behavior.
type HealthCheckerConfig struct {
	// Timeout bounds each check invocation. Default: 5s.
	Timeout time.Duration
}

// DefaultHealthCheckerConfig returns sensible defaults for health checking.
func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		Timeout: 5 * time.Second,
	}
}

// HealthChecker runs named checks on demand. Checks execute when Status is
// called; there is no background probing loop.
type HealthChecker struct {
	config HealthCheckerConfig
	checks map[string]HealthCheckFunc
	mu     sync.RWMutex
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(config HealthCheckerConfig) *HealthChecker {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &HealthChecker{
		config: config,
		checks: make(map[string]HealthCheckFunc),
	}
}

// RegisterCheck adds a named health check function.
func (hc *HealthChecker) RegisterCheck(name string, check HealthCheckFunc) {
	hc.mu.Lock()
	hc.checks[name] = check
	hc.mu.Unlock()
}

// Status runs all checks and returns the aggregate health.
func (hc *HealthChecker) Status(ctx context.Context) *HealthStatus {
	hc.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(hc.checks))
	for name, fn := range hc.checks {
		checks[name] = fn
	}
	hc.mu.RUnlock()

	status := &HealthStatus{
		Overall:   HealthOK,
		Checks:    make(map[string]*HealthCheckResult, len(checks)),
		Timestamp: time.Now(),
	}
	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, hc.config.Timeout)
		start := time.Now()
		result := fn(checkCtx)
		result.Duration = time.Since(start)
		cancel()

		status.Checks[name] = result
		if result.Status > status.Overall {
			status.Overall = result.Status
		}
	}
	return status
}

// IsHealthy returns true when no check is in an unhealthy state.
func (hc *HealthChecker) IsHealthy(ctx context.Context) bool {
	return hc.Status(ctx).Overall != HealthUnhealthy
}

// StoreHealthCheck verifies the model store answers a List call.
func StoreHealthCheck(store ModelStore) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheckResult {
		names, err := store.List(ctx)
		if err != nil {
			return &HealthCheckResult{
				Status:  HealthUnhealthy,
				Message: fmt.Sprintf("model store unreachable: %v", err),
			}
		}
		return &HealthCheckResult{
			Status:  HealthOK,
			Message: "model store reachable",
			Details: map[string]interface{}{"models": len(names)},
		}
	}
}

// ModelHealthCheck verifies a named model loads and builds a codec.
func ModelHealthCheck(store ModelStore, name string) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheckResult {
		model, err := store.Get(ctx, name)
		if err != nil {
			return &HealthCheckResult{
				Status:  HealthDegraded,
				Message: fmt.Sprintf("model %q not loadable: %v", name, err),
			}
		}
		if _, err := model.Codec(); err != nil {
			return &HealthCheckResult{
				Status:  HealthUnhealthy,
				Message: fmt.Sprintf("model %q does not build a codec: %v", name, err),
			}
		}
		return &HealthCheckResult{
			Status:  HealthOK,
			Message: fmt.Sprintf("model %q operational", name),
		}
	}
}

// MemoryHealthCheck checks that allocated memory is below the threshold ratio
// (0.0-1.0) of system memory.
func MemoryHealthCheck(threshold float64) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheckResult {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		ratio := float64(m.Alloc) / float64(m.Sys)
		details := map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"ratio":       ratio,
		}
		if ratio > threshold {
			return &HealthCheckResult{
				Status:  HealthDegraded,
				Message: "memory usage above threshold",
				Details: details,
			}
		}
		return &HealthCheckResult{
			Status:  HealthOK,
			Message: "memory usage normal",
			Details: details,
		}
	}
}
