// Package telemetry records pipeline metrics with OpenTelemetry and exposes
// them in Prometheus text format.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"voxbridge/internal/capture"
	"voxbridge/internal/pipeline"
)

type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	requests  metric.Int64Counter
	duration  metric.Float64Histogram
	recording metric.Int64UpDownCounter
}

// New builds a meter provider backed by a private Prometheus registry, so
// tests and multiple instances do not collide on the global one.
func New(ctx context.Context, service, version string) (*Metrics, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter("voxbridge")

	m := &Metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if m.requests, err = meter.Int64Counter("voxbridge.requests",
		metric.WithDescription("Record-then-transcribe requests by outcome")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("voxbridge.pipeline.duration",
		metric.WithDescription("Wall time of a request including the recording"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.recording, err = meter.Int64UpDownCounter("voxbridge.capture.active",
		metric.WithDescription("Recordings in progress")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) Handler() http.Handler { return m.handler }

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Observe counts a finished pipeline run.
func (m *Metrics) Observe(ctx context.Context, r pipeline.Report) {
	outcome := "ok"
	if r.Kind != "" {
		outcome = string(r.Kind)
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, r.Elapsed.Seconds(), attrs)
}

// Begin and End track the recording in progress.
func (m *Metrics) Begin(ctx context.Context, _ capture.Job) { m.recording.Add(ctx, 1) }
func (m *Metrics) End(ctx context.Context, _ capture.Job)   { m.recording.Add(ctx, -1) }
