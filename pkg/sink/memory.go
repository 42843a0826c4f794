package sink

import (
	"bytes"
	"fmt"
	"sync"
)

// Memory keeps records in an append-only list, optionally bounded.
type Memory struct {
	mu      sync.Mutex
	records []string
	limit   uint64
	bytes   uint64
	closed  bool
}

// NewMemory creates a memory sink holding at most limit records (0 = no cap).
func NewMemory(limit uint64) *Memory {
	return &Memory{limit: limit}
}

// Write implements Sink. A batch that would exceed the cap is rejected whole.
func (m *Memory) Write(batch []byte) error {
	n := uint64(bytes.Count(batch, []byte{'\n'}))

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	held := uint64(len(m.records))
	if m.limit > 0 && held+n > m.limit {
		return fmt.Errorf("%w: holding %d, batch of %d, cap %d", ErrCapacityExceeded, held, n, m.limit)
	}

	m.bytes += uint64(len(batch))

	for len(batch) > 0 {
		line, rest, _ := bytes.Cut(batch, []byte{'\n'})
		m.records = append(m.records, string(line))
		batch = rest
	}

	return nil
}

// Stats implements StatsReporter. Held records count as stored.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{Accepted: m.bytes, Stored: m.bytes}
}

// Flush implements Sink; memory needs no flushing.
func (m *Memory) Flush() error {
	return nil
}

// Close implements Sink. Records stay readable after Close.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.records)
}

// Records returns a copy of the stored records in arrival order.
func (m *Memory) Records() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.records))
	copy(out, m.records)

	return out
}

// Head returns up to n records from the front.
func (m *Memory) Head(n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	n = min(n, len(m.records))
	out := make([]string, n)
	copy(out, m.records[:n])

	return out
}
