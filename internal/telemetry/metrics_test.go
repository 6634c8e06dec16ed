package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	if m.CallsTotal == nil {
		t.Error("CallsTotal is nil")
	}
	if m.CallDuration == nil {
		t.Error("CallDuration is nil")
	}
	if m.CallErrors == nil {
		t.Error("CallErrors is nil")
	}
	if m.PendingCalls == nil {
		t.Error("PendingCalls is nil")
	}
	if m.WorkerPanics == nil {
		t.Error("WorkerPanics is nil")
	}
	if m.EntriesBuffered == nil {
		t.Error("EntriesBuffered is nil")
	}
	if m.EntriesFlushed == nil {
		t.Error("EntriesFlushed is nil")
	}
	if m.LocaleCacheHits == nil {
		t.Error("LocaleCacheHits is nil")
	}
	if m.LocaleCacheMiss == nil {
		t.Error("LocaleCacheMiss is nil")
	}
	if m.BlobBytes == nil {
		t.Error("BlobBytes is nil")
	}

	// Verify metrics can be gathered without error.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestNewMetricsIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	// Increment counters and observe histograms to verify they work.
	m.CallsTotal.WithLabelValues("blobstore", "write").Inc()
	m.LocaleCacheHits.Inc()
	m.LocaleCacheMiss.Inc()
	m.PendingCalls.WithLabelValues("blobstore").Set(5)
	m.CallDuration.WithLabelValues("blobstore", "write").Observe(0.123)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather after increment: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"golem_calls_total",
		"golem_locale_cache_hits_total",
		"golem_locale_cache_misses_total",
		"golem_pending_calls",
		"golem_call_duration_seconds",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("missing metric %q in gathered families", name)
		}
	}
}

// SetupTracing is not unit-tested because it requires a gRPC connection
// to an OTLP collector, which is integration-test territory.
