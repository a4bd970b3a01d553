package goIdent

import (
	"context"
	"sync"
	"testing"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics()

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("fresh counter = %d, want 0", got)
	}
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshReuseDetected)
	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("MetricLoginSuccess = %d, want 2", got)
	}
	if got := m.Value(MetricRefreshReuseDetected); got != 1 {
		t.Fatalf("MetricRefreshReuseDetected = %d, want 1", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Fatalf("untouched counter = %d, want 0", got)
	}
}

func TestMetricsOutOfRangeIDIsIgnored(t *testing.T) {
	m := NewMetrics()
	m.Inc(metricIDCount)
	m.Inc(MetricID(9999))
	if got := m.Value(MetricID(9999)); got != 0 {
		t.Fatalf("out-of-range Value = %d, want 0", got)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("nil Value = %d, want 0", got)
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("nil Snapshot has %d counters, want 0", len(snap.Counters))
	}
}

func TestMetricsSnapshotCopies(t *testing.T) {
	m := NewMetrics()
	m.Inc(MetricRegistered)
	snap := m.Snapshot()

	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("snapshot has %d counters, want %d", len(snap.Counters), metricIDCount)
	}
	if snap.Counters[MetricRegistered] != 1 {
		t.Fatalf("MetricRegistered = %d, want 1", snap.Counters[MetricRegistered])
	}

	m.Inc(MetricRegistered)
	if snap.Counters[MetricRegistered] != 1 {
		t.Fatal("snapshot mutated after Inc")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics()
	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricLoginSuccess)
				m.Inc(MetricLoginFailure)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginSuccess); got != workers*perWorker {
		t.Fatalf("MetricLoginSuccess = %d, want %d", got, workers*perWorker)
	}
	if got := m.Value(MetricLoginFailure); got != workers*perWorker {
		t.Fatalf("MetricLoginFailure = %d, want %d", got, workers*perWorker)
	}
}

func TestEngineMetricsExposed(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	if _, err := engine.Login(context.Background(), "alice@example.com", "wrong-password-000", DeviceInfo{}); err == nil {
		t.Fatal("expected login failure")
	}
	if _, err := engine.Login(context.Background(), "alice@example.com", "correct-password-123", DeviceInfo{}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if got := snap.Counters[MetricLoginFailure]; got != 1 {
		t.Fatalf("MetricLoginFailure = %d, want 1", got)
	}
	if got := snap.Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("MetricLoginSuccess = %d, want 1", got)
	}
}
