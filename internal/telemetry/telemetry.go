package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationName = "github.com/scoobyjava/cherry-scheduler"

// InitProvider installs a global meter provider that periodically exports
// metrics to stdout. Returns a shutdown function that flushes pending data.
func InitProvider(ctx context.Context, interval time.Duration) (func(context.Context) error, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName("cherry-scheduler")))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// Metrics holds the scheduler's instruments. Satisfies scheduler.Metrics.
type Metrics struct {
	completed metric.Int64Counter
	failed    metric.Int64Counter
	skipped   metric.Int64Counter
	retried   metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewMetrics creates the scheduler instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	completed, err := meter.Int64Counter("tasks.completed",
		metric.WithDescription("Tasks that finished successfully"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("tasks.failed",
		metric.WithDescription("Tasks that exhausted all attempts"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}
	skipped, err := meter.Int64Counter("tasks.skipped",
		metric.WithDescription("Tasks poisoned by a failed dependency"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}
	retried, err := meter.Int64Counter("tasks.retried",
		metric.WithDescription("Failed attempts that were requeued"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("tasks.duration",
		metric.WithDescription("Execution time of successful tasks"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		completed: completed,
		failed:    failed,
		skipped:   skipped,
		retried:   retried,
		duration:  duration,
	}, nil
}

func (m *Metrics) TaskCompleted(d time.Duration) {
	ctx := context.Background()
	m.completed.Add(ctx, 1)
	m.duration.Record(ctx, d.Seconds())
}

func (m *Metrics) TaskFailed() {
	m.failed.Add(context.Background(), 1)
}

func (m *Metrics) TaskSkipped() {
	m.skipped.Add(context.Background(), 1)
}

func (m *Metrics) TaskRetried() {
	m.retried.Add(context.Background(), 1)
}
