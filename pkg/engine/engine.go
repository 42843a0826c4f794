// Package engine generates every combination of a space across concurrent
// workers, each owning one contiguous rank range.
//
// Within one worker records reach the sink in increasing rank order. Across
// workers the sink sees whole batches interleaved in arrival order, so the
// output as a whole is not sorted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/combogen/pkg/alphabet"
	"github.com/Sumatoshi-tech/combogen/pkg/checkpoint"
	"github.com/Sumatoshi-tech/combogen/pkg/observability"
	"github.com/Sumatoshi-tech/combogen/pkg/progress"
	"github.com/Sumatoshi-tech/combogen/pkg/sink"
	"github.com/Sumatoshi-tech/combogen/pkg/space"
	"github.com/Sumatoshi-tech/combogen/pkg/units"
)

// Sentinel errors returned by the engine.
var (
	ErrInvalidPlan        = errors.New("invalid generation plan")
	ErrInvalidResumeState = errors.New("invalid resume state")
	ErrIncompleteRun      = errors.New("workers stopped before their ranges were exhausted")
)

const (
	// DefaultFlushBytes is the worker buffer size used when Plan.FlushBytes is zero.
	DefaultFlushBytes = units.MiB

	// DefaultCheckpointInterval is the persistence period used when
	// Plan.CheckpointInterval is zero.
	DefaultCheckpointInterval = 5 * time.Second
)

// Status is the terminal outcome of a run.
type Status string

// Terminal statuses.
const (
	StatusCompleted    Status = "completed"
	StatusLimitReached Status = "limit-reached"
	StatusCancelled    Status = "cancelled"
	StatusFailed       Status = "failed"
)

// Plan describes one generation run.
type Plan struct {
	// Alphabet is the ordered symbol set. Required.
	Alphabet *alphabet.Alphabet
	// Length is the number of symbols per combination. Required.
	Length int
	// Workers is the number of concurrent workers. Zero means runtime.NumCPU.
	Workers int
	// Limit caps the number of combinations produced. Zero means no limit.
	Limit uint64
	// FlushBytes is the worker buffer size that triggers a sink write.
	FlushBytes int
	// Sink receives the records. Required. The engine flushes but never
	// closes it.
	Sink sink.Sink
	// Checkpoint stores the resume rank. Nil disables resume.
	Checkpoint *checkpoint.Manager
	// CheckpointInterval is the period between checkpoint writes.
	CheckpointInterval time.Duration
	// RunID tags logs and the checkpoint sidecar.
	RunID string

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.GenerationMetrics
}

// Result is the terminal report of a run.
type Result struct {
	Status Status
	// Generated is the number of combinations handed to the sink.
	Generated uint64
	// StartRank and EndRank bound the planned interval [StartRank, EndRank).
	StartRank uint64
	EndRank   uint64
	// Checkpoint is the lowest rank not yet handed to the sink.
	Checkpoint uint64
	Started    time.Time
	Finished   time.Time
	Workers    int
	// Err is the failure cause when Status is StatusFailed.
	Err error
}

// Planned returns the number of combinations the run set out to produce.
func (r Result) Planned() uint64 {
	return r.EndRank - r.StartRank
}

// Elapsed returns the wall-clock duration of the run.
func (r Result) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Rate returns combinations per second.
func (r Result) Rate() float64 {
	secs := r.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}

	return float64(r.Generated) / secs
}

// Progress is a live snapshot of a running engine.
type Progress struct {
	Generated  uint64 `json:"generated"`
	Planned    uint64 `json:"planned"`
	StartRank  uint64 `json:"start_rank"`
	Checkpoint uint64 `json:"checkpoint"`
	Persisted  uint64 `json:"persisted"`
}

// Engine runs one validated plan.
type Engine struct {
	plan  Plan
	space space.Descriptor
	live  atomic.Pointer[liveRun]
}

type liveRun struct {
	tracker *progress.Tracker
	start   uint64
	end     uint64
}

// New validates plan, fills defaults and computes the combination space.
func New(plan Plan) (*Engine, error) {
	if plan.Alphabet == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, space.ErrInvalidAlphabet)
	}

	if plan.Sink == nil {
		return nil, fmt.Errorf("%w: sink is required", ErrInvalidPlan)
	}

	if plan.Workers < 0 || plan.FlushBytes < 0 || plan.CheckpointInterval < 0 {
		return nil, fmt.Errorf("%w: workers, flush bytes and checkpoint interval must not be negative", ErrInvalidPlan)
	}

	desc, err := space.New(plan.Alphabet.Len(), plan.Length)
	if err != nil {
		return nil, err
	}

	if plan.Limit == 0 {
		plan.Limit = space.NoLimit
	}

	if plan.Workers == 0 {
		plan.Workers = runtime.NumCPU()
	}

	if plan.FlushBytes == 0 {
		plan.FlushBytes = DefaultFlushBytes
	}

	if plan.CheckpointInterval == 0 {
		plan.CheckpointInterval = DefaultCheckpointInterval
	}

	if plan.Logger == nil {
		plan.Logger = slog.Default()
	}

	if plan.Tracer == nil {
		plan.Tracer = nooptrace.NewTracerProvider().Tracer("combogen")
	}

	if plan.RunID != "" {
		plan.Logger = observability.WithRunID(plan.Logger, plan.RunID)
	}

	return &Engine{plan: plan, space: desc}, nil
}

// Run is shorthand for New followed by Engine.Run.
func Run(ctx context.Context, plan Plan) (Result, error) {
	eng, err := New(plan)
	if err != nil {
		return Result{}, err
	}

	return eng.Run(ctx)
}

// Space returns the combination space of the plan.
func (e *Engine) Space() space.Descriptor {
	return e.space
}

// Bounds returns the interval the next Run would produce, reading the resume
// rank without taking the checkpoint lock.
func (e *Engine) Bounds() (start, end uint64, err error) {
	start, err = e.resumeRank()
	if err != nil {
		return 0, 0, err
	}

	return start, e.space.Clamp(start, e.plan.Limit), nil
}

// Progress returns a snapshot of the active run, or the zero value before Run.
func (e *Engine) Progress() Progress {
	live := e.live.Load()
	if live == nil {
		return Progress{}
	}

	return Progress{
		Generated:  live.tracker.Generated(),
		Planned:    live.end - live.start,
		StartRank:  live.start,
		Checkpoint: live.tracker.Checkpoint(),
		Persisted:  live.tracker.Persisted(),
	}
}

// Run generates the planned interval. Cancelling ctx stops workers at their
// next flush; the result then reports StatusCancelled and a nil error. A sink
// failure stops every worker and is returned both as the error and in
// Result.Err.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	ctx, span := e.plan.Tracer.Start(ctx, "combogen.run", trace.WithAttributes(
		attribute.Int("space.base", e.plan.Alphabet.Len()),
		attribute.Int("space.length", e.plan.Length),
		attribute.String("space.total", fmt.Sprint(e.space.Total)),
	))
	defer span.End()

	logger := e.plan.Logger
	cp := e.plan.Checkpoint

	if cp != nil {
		err := cp.Lock()
		if err != nil {
			return Result{}, err
		}

		defer func() {
			unlockErr := cp.Unlock()
			if unlockErr != nil {
				logger.WarnContext(ctx, "release checkpoint lock", "error", unlockErr)
			}
		}()

		cp.Describe(e.checkpointSpace(), e.plan.RunID)
	}

	start, end, err := e.Bounds()
	if err != nil {
		return Result{}, err
	}

	ranges := space.Partition(start, end, e.plan.Workers)

	opts := []progress.Option{
		progress.WithLimit(end - start),
		progress.WithLogger(logger),
		progress.WithFlush(e.plan.Sink.Flush),
	}

	if cp != nil {
		opts = append(opts, progress.WithStore(cp))
	}

	tracker := progress.NewTracker(ranges, opts...)
	e.live.Store(&liveRun{tracker: tracker, start: start, end: end})

	res := Result{
		StartRank: start,
		EndRank:   end,
		Workers:   len(ranges),
		Started:   time.Now(),
	}

	logger.InfoContext(ctx, "generation started",
		"base", e.space.Base, "length", e.space.Length, "total", e.space.Total,
		"start", start, "end", end, "workers", len(ranges))

	runErr := e.generate(ctx, ranges, tracker)

	flushErr := e.plan.Sink.Flush()
	if flushErr != nil && runErr == nil {
		runErr = fmt.Errorf("final flush: %w", flushErr)
	}

	if flushErr == nil {
		e.persist(ctx, tracker)
	}

	res.Finished = time.Now()
	res.Generated = tracker.Generated()
	res.Checkpoint = tracker.Checkpoint()
	res.Status, res.Err = e.classify(ctx, tracker, res, runErr)

	if res.Status == StatusCompleted && end == e.space.Total && cp != nil {
		clearErr := cp.Clear()
		if clearErr != nil {
			logger.WarnContext(ctx, "remove finished checkpoint", "error", clearErr)
		}
	}

	if e.plan.Metrics != nil {
		e.plan.Metrics.RecordRun(ctx, string(res.Status))
	}

	span.SetAttributes(
		attribute.String("run.status", string(res.Status)),
		attribute.String("run.generated", fmt.Sprint(res.Generated)),
	)

	if res.Status == StatusFailed {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		logger.ErrorContext(ctx, "generation failed", "generated", res.Generated, "error", res.Err)

		return res, res.Err
	}

	logger.InfoContext(ctx, "generation finished",
		"status", res.Status, "generated", res.Generated, "checkpoint", res.Checkpoint,
		"elapsed", res.Elapsed().String())

	return res, nil
}

// generate runs one worker per range until all reach a terminal state.
func (e *Engine) generate(ctx context.Context, ranges []space.Range, tracker *progress.Tracker) error {
	if len(ranges) == 0 {
		e.plan.Logger.InfoContext(ctx, "nothing to do")

		return nil
	}

	cfg := workerConfig{
		sink:       e.plan.Sink,
		tracker:    tracker,
		metrics:    e.plan.Metrics,
		tracer:     e.plan.Tracer,
		logger:     e.plan.Logger,
		flushBytes: e.plan.FlushBytes,
	}

	workers := make([]*worker, 0, len(ranges))

	for id, rng := range ranges {
		w, err := newWorker(id, rng, e.plan.Alphabet, e.plan.Length, cfg)
		if err != nil {
			return err
		}

		workers = append(workers, w)
	}

	stopWatch := context.AfterFunc(ctx, tracker.Cancel)
	defer stopWatch()

	stopTicker := e.startCheckpointTicker(ctx, tracker)
	defer stopTicker()

	var group errgroup.Group

	for _, w := range workers {
		group.Go(func() error {
			err := w.run(ctx)
			if err != nil {
				tracker.Cancel()
			}

			return err
		})
	}

	return group.Wait()
}

// startCheckpointTicker persists the checkpoint every CheckpointInterval
// until the returned stop function is called.
func (e *Engine) startCheckpointTicker(ctx context.Context, tracker *progress.Tracker) func() {
	if e.plan.Checkpoint == nil {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		ticker := time.NewTicker(e.plan.CheckpointInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.persist(ctx, tracker)
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

func (e *Engine) persist(ctx context.Context, tracker *progress.Tracker) {
	err := tracker.Persist(context.WithoutCancel(ctx))
	if err != nil && e.plan.Metrics != nil {
		e.plan.Metrics.RecordCheckpointError(ctx)
	}
}

func (e *Engine) classify(ctx context.Context, tracker *progress.Tracker, res Result, runErr error) (Status, error) {
	switch {
	case runErr != nil:
		return StatusFailed, runErr
	case res.Planned() == 0:
		return StatusCompleted, nil
	case tracker.LimitReached():
		if res.EndRank < e.space.Total {
			return StatusLimitReached, nil
		}

		return StatusCompleted, nil
	case tracker.Cancelled() || ctx.Err() != nil:
		return StatusCancelled, nil
	default:
		return StatusFailed, fmt.Errorf("%w: generated %d of %d", ErrIncompleteRun, res.Generated, res.Planned())
	}
}

// resumeRank returns the first rank to generate: zero without a checkpoint,
// otherwise the stored rank after checking it belongs to this space.
func (e *Engine) resumeRank() (uint64, error) {
	cp := e.plan.Checkpoint
	if cp == nil {
		return 0, nil
	}

	err := cp.Validate(e.checkpointSpace())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidResumeState, err)
	}

	next, found, err := cp.Load()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidResumeState, err)
	}

	if !found {
		return 0, nil
	}

	if next >= e.space.Total {
		return 0, fmt.Errorf("%w: resume rank %d is not below total %d", ErrInvalidResumeState, next, e.space.Total)
	}

	return next, nil
}

func (e *Engine) checkpointSpace() checkpoint.Space {
	return checkpoint.Space{
		AlphabetSize: e.plan.Alphabet.Len(),
		Fingerprint:  e.plan.Alphabet.Fingerprint(),
		Length:       e.plan.Length,
		Total:        e.space.Total,
	}
}
