package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// JobInstrumenter traces generation jobs and exports worker utilisation over
// OTLP.
type JobInstrumenter struct {
	tracer        trace.Tracer
	workersActive metric.Int64UpDownCounter
	jobDuration   metric.Float64Histogram
	jobsTotal     metric.Int64Counter
}

// NewJobInstrumenter uses the global providers installed by Setup.
func NewJobInstrumenter(serviceName string) (*JobInstrumenter, error) {
	meter := otel.Meter(tracerName)

	workersActive, err := meter.Int64UpDownCounter(
		fmt.Sprintf("jan_%s_workers_active", serviceName),
		metric.WithDescription("Number of workers executing a job"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		fmt.Sprintf("jan_%s_job_duration_seconds", serviceName),
		metric.WithDescription("Generation job duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobsTotal, err := meter.Int64Counter(
		fmt.Sprintf("jan_%s_jobs_total", serviceName),
		metric.WithDescription("Total generation jobs processed"),
	)
	if err != nil {
		return nil, err
	}

	return &JobInstrumenter{
		tracer:        GetTracer(),
		workersActive: workersActive,
		jobDuration:   jobDuration,
		jobsTotal:     jobsTotal,
	}, nil
}

// InstrumentJob wraps one job execution.
func (i *JobInstrumenter) InstrumentJob(ctx context.Context, jobID string, attempt int, fn func(context.Context) error) error {
	i.workersActive.Add(ctx, 1)
	defer i.workersActive.Add(ctx, -1)

	ctx, span := i.tracer.Start(ctx, "generation.job",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.Int("job.attempt", attempt),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	result := "success"
	if err != nil {
		result = "error"
		RecordError(span, err, "")
	}
	attrs := metric.WithAttributes(attribute.String("status", result))
	i.jobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	i.jobsTotal.Add(ctx, 1, attrs)
	return err
}
