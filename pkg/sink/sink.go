// Package sink provides the destinations generated records are delivered to.
//
// Every variant satisfies the same contract so workers never branch on the
// destination type. Implementations are safe for concurrent use; a Write
// call is atomic with respect to other Write calls, so a batch of whole
// records is never interleaved with another worker's batch.
package sink

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/combogen/pkg/units"
)

// Sentinel errors for sink operations.
var (
	ErrCapacityExceeded   = errors.New("memory sink capacity exceeded")
	ErrClosed             = errors.New("sink is closed")
	ErrUnknownMode        = errors.New("unknown output mode")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrMissingPath        = errors.New("file output requires a path")
)

// DefaultBufferSize is the file writer buffer size.
const DefaultBufferSize = 2 * units.MiB

// StdoutPath selects standard output as the file destination.
const StdoutPath = "-"

// Sink receives batches of newline-terminated records.
type Sink interface {
	// Write appends a batch of whole records contiguously.
	Write(batch []byte) error
	// Flush pushes buffered bytes to the underlying storage.
	Flush() error
	// Close flushes and releases the sink. Further writes fail with ErrClosed.
	Close() error
}

// Mode selects the sink variant.
type Mode string

// Sink modes.
const (
	ModeFile   Mode = "file"
	ModeMemory Mode = "memory"
	ModeNull   Mode = "null"
)

// Compression selects the stream wrapper of a file sink.
type Compression string

// Supported compressions.
const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionLZ4  Compression = "lz4"
)

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFile, ModeMemory, ModeNull:
		return m, nil
	case "discard", "void":
		return ModeNull, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// ParseCompression parses a compression name. Empty means none.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompressionNone, nil
	case CompressionNone, CompressionGzip, CompressionLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// Extension returns the conventional file suffix for the compression.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// Stats are the byte counts of a sink. Accepted is the uncompressed size of
// every batch taken by Write; Stored is what reached the destination so far.
type Stats struct {
	Accepted uint64
	Stored   uint64
}

// StatsReporter is implemented by sinks that count their bytes.
type StatsReporter interface {
	Stats() Stats
}

// Options configures Open.
type Options struct {
	Mode        Mode
	Path        string
	Compression Compression
	// BufferSize is the file writer buffer in bytes; zero uses DefaultBufferSize.
	BufferSize int
	// MemoryCap bounds the number of records a memory sink holds; zero is unbounded.
	MemoryCap uint64
	// Stdout receives the records when Path is StdoutPath. Nil means os.Stdout.
	Stdout io.Writer
	// Append keeps an existing output file and writes after its end. Set when
	// a run resumes into the file an earlier run produced.
	Append bool
}

// Open builds the sink selected by opts.
func Open(opts Options) (Sink, error) {
	switch opts.Mode {
	case ModeFile:
		if opts.Path == "" {
			return nil, ErrMissingPath
		}

		if opts.Path == StdoutPath && opts.Stdout != nil {
			return NewFile(nopCloser{Writer: opts.Stdout}, opts.Compression, opts.BufferSize)
		}

		return OpenFile(opts.Path, opts.Compression, opts.BufferSize, opts.Append)
	case ModeMemory:
		return NewMemory(opts.MemoryCap), nil
	case ModeNull:
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
}
