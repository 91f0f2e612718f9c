package prefixcode

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMetricsCollector_Counters(t *testing.T) {
	mc := NewMetricsCollector()

	mc.RecordEncode(100, 420, 2*time.Millisecond, nil)
	mc.RecordEncode(50, 210, time.Millisecond, nil)
	mc.RecordEncode(0, 0, 0, errors.New("unknown symbol"))
	mc.RecordDecode(3*time.Millisecond, nil)
	mc.RecordDecode(0, errors.New("incomplete code"))

	snap := mc.Snapshot()
	if snap.Encodes != 2 {
		t.Errorf("expected encodes=2, got %d", snap.Encodes)
	}
	if snap.EncodeErrors != 1 {
		t.Errorf("expected encode_errors=1, got %d", snap.EncodeErrors)
	}
	if snap.Decodes != 1 {
		t.Errorf("expected decodes=1, got %d", snap.Decodes)
	}
	if snap.DecodeErrors != 1 {
		t.Errorf("expected decode_errors=1, got %d", snap.DecodeErrors)
	}
	if snap.BytesIn != 150 {
		t.Errorf("expected bytes_in=150, got %d", snap.BytesIn)
	}
	if snap.BitsOut != 630 {
		t.Errorf("expected bits_out=630, got %d", snap.BitsOut)
	}
	if snap.EncodeLatency.Count != 2 {
		t.Errorf("expected encode latency count=2, got %d", snap.EncodeLatency.Count)
	}
	if snap.Uptime <= 0 {
		t.Errorf("expected positive uptime, got %v", snap.Uptime)
	}
}

func TestMetricHistogram(t *testing.T) {
	h := NewMetricHistogram(defaultLatencyBuckets())

	h.Record(0.1)
	h.Record(0.5)
	h.Record(1.0)

	snap := h.Snapshot()
	if snap.Count != 3 {
		t.Errorf("expected count=3, got %d", snap.Count)
	}
	if snap.Min != 0.1 {
		t.Errorf("expected min=0.1, got %f", snap.Min)
	}
	if snap.Max != 1.0 {
		t.Errorf("expected max=1.0, got %f", snap.Max)
	}
	if snap.P50 != 0.5 {
		t.Errorf("expected p50=0.5, got %f", snap.P50)
	}
}

func TestMetricHistogram_Empty(t *testing.T) {
	h := NewMetricHistogram(defaultLatencyBuckets())
	snap := h.Snapshot()
	if snap.Count != 0 || snap.Sum != 0 || snap.P99 != 0 {
		t.Errorf("expected zero snapshot, got %+v", snap)
	}
}

func TestMetricHistogram_ReservoirBound(t *testing.T) {
	h := NewMetricHistogram(nil)
	for i := 0; i < 2*histogramReservoirSize; i++ {
		h.Record(float64(i))
	}
	if len(h.recent) != histogramReservoirSize {
		t.Errorf("reservoir grew to %d, want %d", len(h.recent), histogramReservoirSize)
	}
	snap := h.Snapshot()
	if snap.Count != int64(2*histogramReservoirSize) {
		t.Errorf("expected count=%d, got %d", 2*histogramReservoirSize, snap.Count)
	}
}

func TestHealthChecker_Status(t *testing.T) {
	hc := NewHealthChecker(DefaultHealthCheckerConfig())

	hc.RegisterCheck("always-ok", func(ctx context.Context) *HealthCheckResult {
		return &HealthCheckResult{Status: HealthOK, Message: "all good"}
	})

	status := hc.Status(context.Background())
	if status.Overall != HealthOK {
		t.Errorf("expected overall HealthOK, got %v", status.Overall)
	}
	if len(status.Checks) != 1 {
		t.Errorf("expected 1 check, got %d", len(status.Checks))
	}
	if !hc.IsHealthy(context.Background()) {
		t.Errorf("expected IsHealthy=true")
	}
}

func TestHealthChecker_Escalation(t *testing.T) {
	hc := NewHealthChecker(DefaultHealthCheckerConfig())

	hc.RegisterCheck("ok", func(ctx context.Context) *HealthCheckResult {
		return &HealthCheckResult{Status: HealthOK}
	})
	hc.RegisterCheck("degraded", func(ctx context.Context) *HealthCheckResult {
		return &HealthCheckResult{Status: HealthDegraded, Message: "high memory"}
	})

	status := hc.Status(context.Background())
	if status.Overall != HealthDegraded {
		t.Errorf("expected overall HealthDegraded, got %v", status.Overall)
	}

	hc.RegisterCheck("unhealthy", func(ctx context.Context) *HealthCheckResult {
		return &HealthCheckResult{Status: HealthUnhealthy, Message: "store down"}
	})

	status = hc.Status(context.Background())
	if status.Overall != HealthUnhealthy {
		t.Errorf("expected overall HealthUnhealthy, got %v", status.Overall)
	}
	if hc.IsHealthy(context.Background()) {
		t.Errorf("expected IsHealthy=false")
	}
}

func TestStoreHealthCheck(t *testing.T) {
	store := NewMemoryModelStore()
	check := StoreHealthCheck(store)

	result := check(context.Background())
	if result.Status != HealthOK {
		t.Errorf("expected HealthOK, got %v (%s)", result.Status, result.Message)
	}

	store.Close()
	result = check(context.Background())
	if result.Status != HealthUnhealthy {
		t.Errorf("expected HealthUnhealthy for closed store, got %v", result.Status)
	}
}

func TestModelHealthCheck(t *testing.T) {
	store := NewMemoryModelStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, EnglishLetterModel()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	check := ModelHealthCheck(store, EnglishModelName)
	result := check(ctx)
	if result.Status != HealthOK {
		t.Errorf("expected HealthOK, got %v (%s)", result.Status, result.Message)
	}

	missing := ModelHealthCheck(store, "absent")
	result = missing(ctx)
	if result.Status != HealthDegraded {
		t.Errorf("expected HealthDegraded for missing model, got %v", result.Status)
	}
}

func TestHealthState_String(t *testing.T) {
	tests := []struct {
		state HealthState
		want  string
	}{
		{HealthOK, "ok"},
		{HealthDegraded, "degraded"},
		{HealthUnhealthy, "unhealthy"},
		{HealthState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("HealthState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
