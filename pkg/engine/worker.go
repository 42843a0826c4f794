package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/combogen/pkg/alphabet"
	"github.com/Sumatoshi-tech/combogen/pkg/observability"
	"github.com/Sumatoshi-tech/combogen/pkg/progress"
	"github.com/Sumatoshi-tech/combogen/pkg/rank"
	"github.com/Sumatoshi-tech/combogen/pkg/safeconv"
	"github.com/Sumatoshi-tech/combogen/pkg/sink"
	"github.com/Sumatoshi-tech/combogen/pkg/space"
)

// WorkerState is the lifecycle position of one worker.
type WorkerState int32

// Worker states. A worker moves Seeded → Generating ⇄ Flushing → Draining
// and ends in Done or Failed.
const (
	StateSeeded WorkerState = iota
	StateGenerating
	StateFlushing
	StateDraining
	StateDone
	StateFailed
)

var workerStateNames = [...]string{
	StateSeeded:     "seeded",
	StateGenerating: "generating",
	StateFlushing:   "flushing",
	StateDraining:   "draining",
	StateDone:       "done",
	StateFailed:     "failed",
}

// String implements fmt.Stringer.
func (s WorkerState) String() string {
	if s < 0 || int(s) >= len(workerStateNames) {
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}

	return workerStateNames[s]
}

// worker produces every combination of one work range into a local buffer
// and hands the buffer to the sink once it holds flushBytes bytes.
type worker struct {
	id         int
	rng        space.Range
	cursor     *rank.Cursor
	out        sink.Sink
	tracker    *progress.Tracker
	metrics    *observability.GenerationMetrics
	tracer     trace.Tracer
	logger     *slog.Logger
	flushBytes int

	buf     []byte
	pending uint64
	state   atomic.Int32
}

func newWorker(id int, rng space.Range, alpha *alphabet.Alphabet, length int, cfg workerConfig) (*worker, error) {
	cursor, err := rank.NewCursor(alpha, length, rng.Start)
	if err != nil {
		return nil, fmt.Errorf("seed worker %d at %d: %w", id, rng.Start, err)
	}

	w := &worker{
		id:         id,
		rng:        rng,
		cursor:     cursor,
		out:        cfg.sink,
		tracker:    cfg.tracker,
		metrics:    cfg.metrics,
		tracer:     cfg.tracer,
		logger:     cfg.logger.With("worker", id),
		flushBytes: cfg.flushBytes,
		buf:        make([]byte, 0, cfg.flushBytes+len(cursor.Record())),
	}

	w.state.Store(int32(StateSeeded))

	return w, nil
}

// workerConfig carries the run-wide collaborators shared by all workers.
type workerConfig struct {
	sink       sink.Sink
	tracker    *progress.Tracker
	metrics    *observability.GenerationMetrics
	tracer     trace.Tracer
	logger     *slog.Logger
	flushBytes int
}

// State returns the current lifecycle state.
func (w *worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// run generates the range in increasing rank order. The stop signal is read
// only after a flush, so a stopped worker emits at most one more buffer.
func (w *worker) run(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "combogen.worker", trace.WithAttributes(
		attribute.Int("worker.id", w.id),
		attribute.String("worker.range", w.rng.String()),
	))
	defer span.End()

	if w.metrics != nil {
		defer w.metrics.TrackWorker(ctx)()
	}

	w.logger.DebugContext(ctx, "worker started", "range", w.rng)
	w.setState(StateGenerating)

	remaining := w.rng.Len()

	for remaining > 0 {
		w.buf = w.cursor.AppendTo(w.buf)
		w.pending++
		remaining--

		if len(w.buf) >= w.flushBytes {
			err := w.flush(ctx)
			if err != nil {
				return w.fail(ctx, span, err)
			}

			if w.tracker.ShouldStop() {
				break
			}
		}

		if remaining > 0 && w.cursor.Next() {
			w.logger.WarnContext(ctx, "cursor wrapped before range end", "remaining", remaining)

			break
		}
	}

	w.setState(StateDraining)

	if w.pending > 0 {
		err := w.flush(ctx)
		if err != nil {
			return w.fail(ctx, span, err)
		}
	}

	w.setState(StateDone)
	w.logger.DebugContext(ctx, "worker finished", "unfinished", remaining)

	return nil
}

// flush writes the buffered records in one sink call and reports them to the
// tracker as one batch.
func (w *worker) flush(ctx context.Context) error {
	if w.State() == StateGenerating {
		w.setState(StateFlushing)
		defer w.setState(StateGenerating)
	}

	started := time.Now()

	err := w.out.Write(w.buf)
	if err != nil {
		return fmt.Errorf("worker %d: write %d records: %w", w.id, w.pending, err)
	}

	w.tracker.Report(w.pending)
	w.tracker.Advance(w.id, w.pending)

	if w.metrics != nil {
		w.metrics.RecordFlush(ctx, w.id,
			safeconv.ClampUint64ToInt64(w.pending), int64(len(w.buf)), time.Since(started))
	}

	w.buf = w.buf[:0]
	w.pending = 0

	return nil
}

func (w *worker) fail(ctx context.Context, span trace.Span, err error) error {
	w.setState(StateFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	w.logger.ErrorContext(ctx, "worker failed", "error", err)

	return err
}
