package sink

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pierrec/lz4/v4"
)

const filePerm = 0o644

// flusher is implemented by compressors that can emit a sync point.
type flusher interface {
	Flush() error
}

// nopCloser keeps stdout open when the sink closes.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// countingWriter counts the bytes that reach the destination.
type countingWriter struct {
	w io.Writer
	n atomic.Uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(uint64(n))

	return n, err
}

// File writes records through a buffered writer, optionally compressed.
// The mutex is held for one Write or Flush call at a time.
type File struct {
	mu         sync.Mutex
	dst        io.WriteCloser
	stored     *countingWriter
	accepted   atomic.Uint64
	compressor io.WriteCloser
	bw         *bufio.Writer
	closed     bool
}

// OpenFile opens path for writing, or uses stdout for StdoutPath. An existing
// file is truncated unless appendTo is set. Gzip members and lz4 frames
// written after existing ones decode as a single stream.
func OpenFile(path string, compression Compression, bufferSize int, appendTo bool) (*File, error) {
	var dst io.WriteCloser

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendTo {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	if path == StdoutPath {
		dst = nopCloser{Writer: os.Stdout}
	} else {
		f, err := os.OpenFile(path, flags, filePerm)
		if err != nil {
			return nil, fmt.Errorf("open output file: %w", err)
		}

		dst = f
	}

	fs, err := NewFile(dst, compression, bufferSize)
	if err != nil {
		return nil, errorsJoinClose(err, dst)
	}

	return fs, nil
}

// NewFile wraps an arbitrary destination. The sink owns dst and closes it.
func NewFile(dst io.WriteCloser, compression Compression, bufferSize int) (*File, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	fs := &File{dst: dst, stored: &countingWriter{w: dst}}

	var next io.Writer = fs.stored

	switch compression {
	case "", CompressionNone:
	case CompressionGzip:
		gz, err := gzip.NewWriterLevel(fs.stored, gzip.BestSpeed)
		if err != nil {
			return nil, fmt.Errorf("create gzip writer: %w", err)
		}

		fs.compressor = gz
		next = gz
	case CompressionLZ4:
		zw := lz4.NewWriter(fs.stored)

		err := zw.Apply(lz4.CompressionLevelOption(lz4.Fast))
		if err != nil {
			return nil, fmt.Errorf("configure lz4 writer: %w", err)
		}

		fs.compressor = zw
		next = zw
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}

	fs.bw = bufio.NewWriterSize(next, bufferSize)

	return fs, nil
}

// Write implements Sink.
func (f *File) Write(batch []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	_, err := f.bw.Write(batch)
	if err != nil {
		return fmt.Errorf("write batch: %w", err)
	}

	f.accepted.Add(uint64(len(batch)))

	return nil
}

// Stats implements StatsReporter. Stored counts compressed bytes and lags
// Accepted until the buffer is flushed.
func (f *File) Stats() Stats {
	return Stats{Accepted: f.accepted.Load(), Stored: f.stored.n.Load()}
}

// Flush implements Sink. Compressed streams are flushed to a sync point so
// everything written so far is decodable.
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	return f.flushLocked()
}

func (f *File) flushLocked() error {
	err := f.bw.Flush()
	if err != nil {
		return fmt.Errorf("flush buffer: %w", err)
	}

	if fl, ok := f.compressor.(flusher); ok {
		err = fl.Flush()
		if err != nil {
			return fmt.Errorf("flush compressor: %w", err)
		}
	}

	return nil
}

// Close implements Sink.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true

	err := f.bw.Flush()
	if err != nil {
		return errorsJoinClose(fmt.Errorf("flush buffer: %w", err), f.dst)
	}

	if f.compressor != nil {
		err = f.compressor.Close()
		if err != nil {
			return errorsJoinClose(fmt.Errorf("close compressor: %w", err), f.dst)
		}
	}

	err = f.dst.Close()
	if err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	return nil
}

// errorsJoinClose closes c and joins any close error with err.
func errorsJoinClose(err error, c io.Closer) error {
	closeErr := c.Close()
	if closeErr != nil {
		return errors.Join(err, fmt.Errorf("close output: %w", closeErr))
	}

	return err
}
