package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voxbridge/internal/capture"
	"voxbridge/internal/pipeline"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetricsExposeObservations(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, "voxbridge", "test")
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	m.Observe(ctx, pipeline.Report{Seconds: 2, Result: pipeline.Result{Success: true}, Elapsed: 2 * time.Second})
	m.Observe(ctx, pipeline.Report{Seconds: 2, Kind: pipeline.KindToolUnavailable, Elapsed: time.Millisecond})
	m.Begin(ctx, capture.Job{Seconds: 1})

	body := scrape(t, m)
	for _, want := range []string{
		`voxbridge_requests_total{`,
		`outcome="ok"`,
		`outcome="tool_unavailable"`,
		`voxbridge_pipeline_duration_seconds_bucket`,
		`voxbridge_capture_active`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, "voxbridge", "test")
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	b, err := New(ctx, "voxbridge", "test")
	if err != nil {
		t.Fatalf("new b: %v", err)
	}
	a.Observe(ctx, pipeline.Report{Kind: pipeline.KindBusy})

	if strings.Contains(scrape(t, b), `outcome="busy"`) {
		t.Fatalf("observation leaked across registries")
	}
}
