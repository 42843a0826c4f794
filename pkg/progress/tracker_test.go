package progress

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/combogen/pkg/space"
)

type memStore struct {
	mu    sync.Mutex
	saved []uint64
	err   error
}

func (s *memStore) Save(next uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.saved = append(s.saved, next)

	return nil
}

func TestTracker_Report(t *testing.T) {
	t.Parallel()

	tr := NewTracker(space.Partition(0, 100, 4))

	tr.Report(10)
	tr.Report(5)

	assert.Equal(t, uint64(15), tr.Generated())
	assert.False(t, tr.ShouldStop())
	assert.False(t, tr.LimitReached())
}

func TestTracker_Limit(t *testing.T) {
	t.Parallel()

	tr := NewTracker(space.Partition(0, 100, 2), WithLimit(20))

	tr.Report(19)
	assert.False(t, tr.ShouldStop())

	tr.Report(3)
	assert.True(t, tr.ShouldStop())
	assert.True(t, tr.LimitReached())
}

func TestTracker_Cancel(t *testing.T) {
	t.Parallel()

	tr := NewTracker(space.Partition(0, 10, 2))
	assert.False(t, tr.Cancelled())

	tr.Cancel()
	tr.Cancel()

	assert.True(t, tr.ShouldStop())
	assert.True(t, tr.Cancelled())
	assert.False(t, tr.LimitReached())
}

func TestTracker_CheckpointIsMinimumSafeRank(t *testing.T) {
	t.Parallel()

	// Ranges: [10,14) [14,17) [17,20).
	tr := NewTracker(space.Partition(10, 20, 3))
	assert.Equal(t, uint64(10), tr.Checkpoint())

	// Later ranges finishing first do not move the checkpoint.
	tr.Advance(2, 3)
	tr.Advance(1, 2)
	assert.Equal(t, uint64(10), tr.Checkpoint())

	tr.Advance(0, 2)
	assert.Equal(t, uint64(12), tr.Checkpoint())

	tr.Advance(0, 2)
	assert.Equal(t, uint64(16), tr.Checkpoint(), "first range done, second range at 16")

	tr.Advance(1, 1)
	assert.Equal(t, uint64(20), tr.Checkpoint(), "all ranges done")
}

func TestTracker_CheckpointNoRanges(t *testing.T) {
	t.Parallel()

	tr := NewTracker(nil)
	assert.Zero(t, tr.Checkpoint())
	require.NoError(t, tr.Persist(context.Background()))
}

func TestTracker_Persist(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	tr := NewTracker(space.Partition(0, 10, 2), WithStore(store))

	tr.Advance(0, 3)
	require.NoError(t, tr.Persist(context.Background()))

	tr.Advance(0, 2)
	require.NoError(t, tr.Persist(context.Background()))

	assert.Equal(t, []uint64{3, 5}, store.saved)
	assert.Equal(t, uint64(5), tr.Persisted())
}

func TestTracker_PersistFailureIsLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	store := &memStore{err: errors.New("disk full")}
	tr := NewTracker(space.Partition(0, 10, 1), WithStore(store), WithLogger(logger))

	err := tr.Persist(context.Background())
	require.Error(t, err)
	assert.Contains(t, buf.String(), "checkpoint persistence failed")
	assert.Contains(t, buf.String(), "disk full")
	assert.False(t, tr.ShouldStop(), "persistence failure must not stop the run")
}

func TestTracker_PersistFlushesBeforeSaving(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	flushes := 0

	tr := NewTracker(space.Partition(0, 10, 1), WithStore(store), WithFlush(func() error {
		flushes++

		return nil
	}))

	tr.Advance(0, 4)
	require.NoError(t, tr.Persist(context.Background()))

	assert.Equal(t, 1, flushes)
	assert.Equal(t, []uint64{4}, store.saved)
}

func TestTracker_PersistSkippedWhenFlushFails(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	tr := NewTracker(space.Partition(0, 10, 1), WithStore(store), WithFlush(func() error {
		return errors.New("broken pipe")
	}))

	tr.Advance(0, 4)
	require.Error(t, tr.Persist(context.Background()))

	assert.Empty(t, store.saved)
	assert.Equal(t, uint64(0), tr.Persisted())
}

func TestTracker_PersistWithoutStore(t *testing.T) {
	t.Parallel()

	tr := NewTracker(space.Partition(0, 10, 1))
	require.NoError(t, tr.Persist(context.Background()))
}

func TestTracker_ConcurrentReports(t *testing.T) {
	t.Parallel()

	ranges := space.Partition(0, 8000, 8)
	tr := NewTracker(ranges)

	var wg sync.WaitGroup

	for slot := range ranges {
		wg.Add(1)

		go func(slot int) {
			defer wg.Done()

			for range 100 {
				tr.Report(10)
				tr.Advance(slot, 10)
			}
		}(slot)
	}

	wg.Wait()

	assert.Equal(t, uint64(8000), tr.Generated())
	assert.Equal(t, uint64(8000), tr.Checkpoint())
}
