package monitoring

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPredictionMetricsSnapshot(t *testing.T) {
	pm := NewPredictionMetrics()
	pm.RecordRequest("/predict", OutcomeOK, 10*time.Millisecond)
	pm.RecordRequest("/predict", OutcomeDegraded, 30*time.Millisecond)
	pm.RecordRequest("/predict/batch", OutcomeInvalid, 20*time.Millisecond)
	pm.RecordPrediction("Good", 40)
	pm.RecordPrediction("Moderate", 80)

	snap := pm.Snapshot()
	if snap.Requests["/predict"] != 2 || snap.Requests["/predict/batch"] != 1 {
		t.Fatalf("unexpected request counts: %v", snap.Requests)
	}
	if snap.Outcomes[OutcomeDegraded] != 1 || snap.Outcomes[OutcomeInvalid] != 1 {
		t.Fatalf("unexpected outcomes: %v", snap.Outcomes)
	}
	if snap.Predictions != 2 || snap.MeanAQI != 60 {
		t.Fatalf("unexpected prediction stats: %d %v", snap.Predictions, snap.MeanAQI)
	}
	if snap.Latency.Count != 3 || snap.Latency.MaxSeconds != 0.03 {
		t.Fatalf("unexpected latency: %+v", snap.Latency)
	}
	if _, ok := snap.System["goroutines"]; !ok {
		t.Fatal("expected system stats")
	}

	// snapshot is a copy
	snap.Levels["Good"] = 100
	if pm.Snapshot().Levels["Good"] != 1 {
		t.Fatal("snapshot should not alias collector state")
	}
}

func TestExportPrometheus(t *testing.T) {
	pm := NewPredictionMetrics()
	pm.RecordRequest("/predict", OutcomeOK, time.Millisecond)
	pm.RecordPrediction("Unhealthy", 180)

	out := pm.ExportPrometheus()
	for _, want := range []string{
		"# TYPE aqi_requests_total counter",
		`aqi_requests_total{endpoint="/predict"} 1`,
		`aqi_outcomes_total{outcome="ok"} 1`,
		`aqi_predictions_total{level="Unhealthy"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPredictionMetricsConcurrent(t *testing.T) {
	pm := NewPredictionMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pm.RecordRequest("/predict", OutcomeOK, time.Millisecond)
			pm.RecordPrediction("Good", 10)
			_ = pm.Snapshot()
		}()
	}
	wg.Wait()
	if got := pm.Snapshot().Predictions; got != 50 {
		t.Fatalf("expected 50 predictions, got %d", got)
	}
}
