package checkpoint

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpace = Space{AlphabetSize: 3, Fingerprint: 0xabc, Length: 3, Total: 27}

func TestManager_Paths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "run.resume"))

	assert.Equal(t, filepath.Join(dir, "run.resume"), m.Path())
	assert.Equal(t, filepath.Join(dir, "run.resume.meta.yaml"), m.MetadataPath())
}

func TestManager_LoadMissing(t *testing.T) {
	t.Parallel()

	m := NewManager(filepath.Join(t.TempDir(), "run.resume"))

	next, found, err := m.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, next)
	assert.NoFileExists(t, m.Path())
}

func TestManager_SaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	m := NewManager(path)

	require.NoError(t, m.Save(13))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "13\n", string(data))

	next, found, err := m.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(13), next)

	_, err = os.Stat(m.MetadataPath())
	assert.ErrorIs(t, err, os.ErrNotExist, "no sidecar without Describe")
}

func TestManager_LoadHandWritten(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	require.NoError(t, os.WriteFile(path, []byte("  42 \n"), 0o600))

	next, found, err := NewManager(path).Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(42), next)
}

func TestManager_LoadMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	require.NoError(t, os.WriteFile(path, []byte("-1"), 0o600))

	_, _, err := NewManager(path).Load()
	require.ErrorIs(t, err, ErrMalformed)
}

func TestManager_SidecarAndValidate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	m := NewManager(path)

	require.NoError(t, m.Validate(testSpace), "missing sidecar is accepted")

	m.Describe(testSpace, "run-1")
	require.NoError(t, m.Save(9))

	meta, err := m.Metadata()
	require.NoError(t, err)
	assert.Equal(t, MetadataVersion, meta.Version)
	assert.Equal(t, "run-1", meta.RunID)
	assert.Equal(t, uint64(9), meta.Next)
	assert.Equal(t, uint64(27), meta.Total)
	assert.Equal(t, "abc", meta.Fingerprint)
	assert.NotEmpty(t, meta.UpdatedAt)

	other := NewManager(path)
	require.NoError(t, other.Validate(testSpace))

	changed := testSpace
	changed.Fingerprint = 0xdef
	require.ErrorIs(t, other.Validate(changed), ErrMismatch)

	longer := testSpace
	longer.Length, longer.Total = 4, 81
	require.ErrorIs(t, other.Validate(longer), ErrMismatch)
}

func TestManager_ValidateMalformedSidecar(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	m := NewManager(path)

	require.NoError(t, os.WriteFile(m.MetadataPath(), []byte("version: [\n"), 0o600))
	require.ErrorIs(t, m.Validate(testSpace), ErrMalformed)
}

func TestManager_Lock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	first := NewManager(path)
	second := NewManager(path)

	require.NoError(t, first.Lock())
	require.ErrorIs(t, second.Lock(), ErrLocked)
	require.NoError(t, first.Unlock())

	require.NoError(t, second.Lock())
	require.NoError(t, second.Unlock())
}

func TestManager_UnlockKeepsLockFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	first := NewManager(path)

	require.NoError(t, first.Lock())
	require.NoError(t, first.Unlock())
	assert.FileExists(t, path+lockSuffix)

	second := NewManager(path)
	require.NoError(t, second.Lock(), "a kept lock file can be locked again")
	require.ErrorIs(t, first.Lock(), ErrLocked, "the same inode is shared by both managers")
	require.NoError(t, second.Unlock())
}

func TestManager_Clear(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	m := NewManager(path)
	m.Describe(testSpace, "")

	require.NoError(t, m.Save(1))
	require.FileExists(t, m.Path())

	require.NoError(t, m.Clear())
	assert.NoFileExists(t, m.Path())

	_, err := os.Stat(m.MetadataPath())
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, m.Clear(), "clearing twice is fine")
}

func TestManager_ConcurrentSave(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.resume")
	m := NewManager(path)
	m.Describe(testSpace, "")

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func(v uint64) {
			defer wg.Done()

			assert.NoError(t, m.Save(v))
		}(uint64(i))
	}

	wg.Wait()

	next, found, err := m.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Less(t, next, uint64(8))
}
