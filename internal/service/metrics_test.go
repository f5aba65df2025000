package service

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Strob0t/TaskPilot/internal/adapter/memory"
	tpotel "github.com/Strob0t/TaskPilot/internal/adapter/otel"
	"github.com/Strob0t/TaskPilot/internal/domain/rule"
	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

// newTestMetrics installs a manual-reader meter provider so tests can
// collect and assert on recorded instruments.
func newTestMetrics(t *testing.T) (*tpotel.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	m, err := tpotel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	return m, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestDecideRecordsUnroutedMetric(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	rs, err := rule.Load([]byte(`
destinations:
  - name: ops
rules:
  - id: ops-kw
    type: keyword
    destination: ops
    keywords: [database]
`))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(rs, WithMetrics(metrics))

	r.Decide(context.Background(), &task.Task{ID: "t1", Title: "nothing relevant"}, nil)

	m, ok := findMetric(t, reader, "taskpilot.decisions.unrouted")
	if !ok {
		t.Fatal("unrouted counter not recorded")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("unexpected data shape: %+v", m.Data)
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("unrouted = %d, want 1", sum.DataPoints[0].Value)
	}
}

func TestAnalyzeRecordsDurationMetric(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	cal := NewCalibrator(memory.NewStore(), nil, 0, WithCalibrationMetrics(metrics))
	if _, err := cal.Analyze(context.Background()); err != nil {
		t.Fatal(err)
	}

	m, ok := findMetric(t, reader, "taskpilot.analyze.duration_seconds")
	if !ok {
		t.Fatal("analyze duration not recorded")
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("unexpected data shape: %+v", m.Data)
	}
	if hist.DataPoints[0].Count != 1 {
		t.Errorf("count = %d, want 1", hist.DataPoints[0].Count)
	}
}
