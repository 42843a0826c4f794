// Package profiling writes pprof CPU and heap profiles for a generation run.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// StartCPU begins CPU profiling into path. The returned stop function ends
// profiling and closes the file. An empty path returns a no-op stop.
func StartCPU(path string) (stop func() error, err error) {
	if path == "" {
		return func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile: %w", err)
	}

	err = pprof.StartCPUProfile(f)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("start cpu profile: %w", err), f.Close())
	}

	return func() error {
		pprof.StopCPUProfile()

		closeErr := f.Close()
		if closeErr != nil {
			return fmt.Errorf("close cpu profile: %w", closeErr)
		}

		return nil
	}, nil
}

// WriteHeap forces a collection and writes a heap profile to path.
// An empty path does nothing.
func WriteHeap(path string) error {
	if path == "" {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}

	runtime.GC()

	writeErr := pprof.WriteHeapProfile(f)
	closeErr := f.Close()

	if writeErr != nil {
		return fmt.Errorf("write heap profile: %w", writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close heap profile: %w", closeErr)
	}

	return nil
}
