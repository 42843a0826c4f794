package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Sumatoshi-tech/combogen/pkg/persist"
)

// Sentinel errors for checkpoint handling.
var (
	ErrLocked    = errors.New("checkpoint is locked by another run")
	ErrMalformed = errors.New("malformed checkpoint")
	ErrMismatch  = errors.New("checkpoint belongs to a different space")
)

const (
	lockSuffix     = ".lock"
	metadataSuffix = ".meta"
)

// Manager reads and writes one resume record and its sidecar.
// Save is safe for concurrent use.
type Manager struct {
	path  string
	lock  *flock.Flock
	meta  *persist.Persister[Metadata]
	mu    sync.Mutex
	space *Space
	runID string
}

// NewManager creates a manager for the resume record at path.
func NewManager(path string) *Manager {
	return &Manager{
		path: path,
		lock: flock.New(path + lockSuffix),
		meta: persist.NewPersister[Metadata](filepath.Base(path)+metadataSuffix, persist.NewYAMLCodec()),
	}
}

// Path returns the resume record path.
func (m *Manager) Path() string {
	return m.path
}

// MetadataPath returns the sidecar path.
func (m *Manager) MetadataPath() string {
	return m.meta.Path(filepath.Dir(m.path))
}

// Lock takes an exclusive advisory lock so two runs never share a record.
func (m *Manager) Lock() error {
	locked, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock checkpoint: %w", err)
	}

	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, m.path)
	}

	return nil
}

// Unlock releases the lock taken by Lock. The lock file stays on disk: a
// run blocked on its inode and a run creating a fresh file could otherwise
// both believe they hold the lock.
func (m *Manager) Unlock() error {
	err := m.lock.Unlock()
	if err != nil {
		return fmt.Errorf("unlock checkpoint: %w", err)
	}

	return nil
}

// Load returns the stored next rank. found is false when no record exists.
func (m *Manager) Load() (next uint64, found bool, err error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	text := strings.TrimSpace(string(data))

	next, err = strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrMalformed, text)
	}

	return next, true, nil
}

// Describe attaches the space and run id written to the sidecar on Save.
func (m *Manager) Describe(space Space, runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.space = &space
	m.runID = runID
}

// Validate checks that an existing sidecar matches space. A missing sidecar
// is accepted so plain integer records written by hand keep working.
func (m *Manager) Validate(space Space) error {
	meta, err := m.meta.Load(filepath.Dir(m.path))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if meta.space() != space {
		return fmt.Errorf("%w: checkpoint has K=%d L=%d, run has K=%d L=%d",
			ErrMismatch, meta.AlphabetSize, meta.Length, space.AlphabetSize, space.Length)
	}

	return nil
}

// Save atomically replaces the resume record with next, then refreshes the
// sidecar when a space was described.
func (m *Manager) Save(next uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := persist.WriteAtomic(m.path, func(w io.Writer) error {
		_, werr := fmt.Fprintf(w, "%d\n", next)

		return werr
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	if m.space == nil {
		return nil
	}

	meta := Metadata{
		Version:      MetadataVersion,
		RunID:        m.runID,
		AlphabetSize: m.space.AlphabetSize,
		Fingerprint:  fingerprintString(m.space.Fingerprint),
		Length:       m.space.Length,
		Total:        m.space.Total,
		Next:         next,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	err = m.meta.Save(filepath.Dir(m.path), &meta)
	if err != nil {
		return fmt.Errorf("save checkpoint metadata: %w", err)
	}

	return nil
}

// Metadata returns the sidecar contents.
func (m *Manager) Metadata() (*Metadata, error) {
	meta, err := m.meta.Load(filepath.Dir(m.path))
	if err != nil {
		return nil, fmt.Errorf("load checkpoint metadata: %w", err)
	}

	return meta, nil
}

// Clear removes the resume record and its sidecar.
func (m *Manager) Clear() error {
	for _, p := range []string{m.path, m.MetadataPath()} {
		err := os.Remove(p)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove checkpoint: %w", err)
		}
	}

	return nil
}
