package sink

import "sync/atomic"

// Null discards every write. It counts bytes so throughput can be reported.
type Null struct {
	bytes atomic.Uint64
}

// NewNull creates a discarding sink.
func NewNull() *Null {
	return &Null{}
}

// Write implements Sink.
func (n *Null) Write(batch []byte) error {
	n.bytes.Add(uint64(len(batch)))

	return nil
}

// Flush implements Sink.
func (n *Null) Flush() error { return nil }

// Close implements Sink.
func (n *Null) Close() error { return nil }

// Stats implements StatsReporter. Nothing is ever stored.
func (n *Null) Stats() Stats {
	return Stats{Accepted: n.bytes.Load()}
}
