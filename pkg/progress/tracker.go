// Package progress tracks how many combinations have been generated and the
// lowest rank below which every combination has reached the sink.
//
// Workers update the tracker once per flushed batch, never per combination,
// so counters lag the true position by at most one buffer per worker.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Sumatoshi-tech/combogen/pkg/space"
)

// Store persists a resume rank.
type Store interface {
	Save(next uint64) error
}

// Tracker holds the shared, lock-free progress state of one run.
type Tracker struct {
	generated atomic.Uint64
	stopped   atomic.Bool
	cancelled atomic.Bool
	limit     uint64
	ranges    []space.Range
	marks     []atomic.Uint64
	store     Store
	flush     func() error
	persisted atomic.Uint64
	logger    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLimit stops the run once limit combinations were reported. Zero means
// no limit.
func WithLimit(limit uint64) Option {
	return func(t *Tracker) { t.limit = limit }
}

// WithStore sets where Persist writes the checkpoint.
func WithStore(store Store) Option {
	return func(t *Tracker) { t.store = store }
}

// WithFlush sets a function Persist calls after reading the checkpoint and
// before saving it, so the saved rank never covers records still buffered.
func WithFlush(flush func() error) Option {
	return func(t *Tracker) { t.flush = flush }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker creates a tracker for the given work ranges. Slot i of Advance
// refers to ranges[i].
func NewTracker(ranges []space.Range, opts ...Option) *Tracker {
	t := &Tracker{
		ranges: ranges,
		marks:  make([]atomic.Uint64, len(ranges)),
		logger: slog.Default(),
	}

	for i, r := range ranges {
		t.marks[i].Store(r.Start)
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Report adds n to the generated counter. It never blocks.
func (t *Tracker) Report(n uint64) {
	total := t.generated.Add(n)
	if t.limit > 0 && total >= t.limit {
		t.stopped.Store(true)
	}
}

// Advance moves the high-water mark of range slot forward by n ranks.
func (t *Tracker) Advance(slot int, n uint64) {
	t.marks[slot].Add(n)
}

// Generated returns the number of combinations reported so far.
func (t *Tracker) Generated() uint64 {
	return t.generated.Load()
}

// Checkpoint returns the lowest rank not yet handed to the sink. Every rank
// below it is done. Ranks above it in later ranges may also be done; they
// are regenerated on resume.
func (t *Tracker) Checkpoint() uint64 {
	for i := range t.ranges {
		if mark := t.marks[i].Load(); mark < t.ranges[i].End {
			return mark
		}
	}

	if len(t.ranges) == 0 {
		return 0
	}

	return t.ranges[len(t.ranges)-1].End
}

// Persist writes the current checkpoint to the store. Failures are logged and
// returned but never stop the run.
func (t *Tracker) Persist(ctx context.Context) error {
	if t.store == nil || len(t.ranges) == 0 {
		return nil
	}

	next := t.Checkpoint()

	if t.flush != nil {
		err := t.flush()
		if err != nil {
			t.logger.WarnContext(ctx, "checkpoint skipped, flush failed", "next", next, "error", err)

			return fmt.Errorf("flush before checkpoint: %w", err)
		}
	}

	err := t.store.Save(next)
	if err != nil {
		t.logger.WarnContext(ctx, "checkpoint persistence failed", "next", next, "error", err)

		return fmt.Errorf("persist checkpoint: %w", err)
	}

	t.persisted.Store(next)
	t.logger.DebugContext(ctx, "checkpoint persisted", "next", next)

	return nil
}

// Persisted returns the last successfully persisted checkpoint.
func (t *Tracker) Persisted() uint64 {
	return t.persisted.Load()
}

// ShouldStop reports whether the limit was reached or the run was cancelled.
func (t *Tracker) ShouldStop() bool {
	return t.stopped.Load()
}

// Cancel sets the stop flag. It is safe to call more than once.
func (t *Tracker) Cancel() {
	t.cancelled.Store(true)
	t.stopped.Store(true)
}

// Cancelled reports whether Cancel was called.
func (t *Tracker) Cancelled() bool {
	return t.cancelled.Load()
}

// LimitReached reports whether the generated counter hit the limit.
func (t *Tracker) LimitReached() bool {
	return t.limit > 0 && t.generated.Load() >= t.limit
}
