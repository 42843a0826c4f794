package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCombinations     = "combogen.combinations.generated"
	metricBytes            = "combogen.bytes.written"
	metricFlushDuration    = "combogen.flush.duration.seconds"
	metricActiveWorkers    = "combogen.workers.active"
	metricCheckpointErrors = "combogen.checkpoint.errors"
	metricRuns             = "combogen.runs.total"

	attrWorker = "worker"
	attrStatus = "status"
)

// flushBucketBoundaries covers sub-millisecond in-memory flushes up to
// multi-second stalls on slow or compressed outputs.
var flushBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// GenerationMetrics holds the OTel instruments recorded by the engine.
type GenerationMetrics struct {
	combinations     metric.Int64Counter
	bytes            metric.Int64Counter
	flushDuration    metric.Float64Histogram
	activeWorkers    metric.Int64UpDownCounter
	checkpointErrors metric.Int64Counter
	runs             metric.Int64Counter
}

// NewGenerationMetrics creates the engine instruments from the given meter.
func NewGenerationMetrics(mt metric.Meter) (*GenerationMetrics, error) {
	combinations, err := mt.Int64Counter(metricCombinations,
		metric.WithDescription("Combinations handed to the output sink"),
		metric.WithUnit("{combination}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCombinations, err)
	}

	written, err := mt.Int64Counter(metricBytes,
		metric.WithDescription("Uncompressed bytes handed to the output sink"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBytes, err)
	}

	flushDuration, err := mt.Float64Histogram(metricFlushDuration,
		metric.WithDescription("Time spent writing one worker batch to the sink"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(flushBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFlushDuration, err)
	}

	active, err := mt.Int64UpDownCounter(metricActiveWorkers,
		metric.WithDescription("Workers currently generating"),
		metric.WithUnit("{worker}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricActiveWorkers, err)
	}

	checkpointErrors, err := mt.Int64Counter(metricCheckpointErrors,
		metric.WithDescription("Failed checkpoint persistence attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCheckpointErrors, err)
	}

	runs, err := mt.Int64Counter(metricRuns,
		metric.WithDescription("Finished runs by terminal status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRuns, err)
	}

	return &GenerationMetrics{
		combinations:     combinations,
		bytes:            written,
		flushDuration:    flushDuration,
		activeWorkers:    active,
		checkpointErrors: checkpointErrors,
		runs:             runs,
	}, nil
}

// RecordFlush records one batch handed to the sink by a worker.
func (gm *GenerationMetrics) RecordFlush(ctx context.Context, worker int, records, size int64, took time.Duration) {
	attrs := metric.WithAttributes(attribute.Int(attrWorker, worker))

	gm.combinations.Add(ctx, records, attrs)
	gm.bytes.Add(ctx, size, attrs)
	gm.flushDuration.Record(ctx, took.Seconds(), attrs)
}

// TrackWorker increments the active worker gauge and returns a function to decrement it.
func (gm *GenerationMetrics) TrackWorker(ctx context.Context) func() {
	gm.activeWorkers.Add(ctx, 1)

	return func() {
		gm.activeWorkers.Add(ctx, -1)
	}
}

// RecordCheckpointError counts a failed checkpoint write.
func (gm *GenerationMetrics) RecordCheckpointError(ctx context.Context) {
	gm.checkpointErrors.Add(ctx, 1)
}

// RecordRun counts a finished run by terminal status.
func (gm *GenerationMetrics) RecordRun(ctx context.Context, status string) {
	gm.runs.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}
