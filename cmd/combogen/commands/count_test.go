package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/combogen/pkg/engine"
)

func executeCount(t *testing.T, opts *GlobalOptions, args ...string) (string, error) {
	t.Helper()

	cmd := NewCountCommand(opts)

	var stdout bytes.Buffer

	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), err
}

func TestCount_FullSpace(t *testing.T) {
	t.Parallel()

	out, err := executeCount(t, &GlobalOptions{}, "3", "--charset", "abc")
	require.NoError(t, err)

	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "27")
	assert.Contains(t, out, "108 B")
}

func TestCount_Limit(t *testing.T) {
	t.Parallel()

	out, err := executeCount(t, &GlobalOptions{}, "--length", "4", "--preset", "digits", "--limit", "1500")
	require.NoError(t, err)

	assert.Contains(t, out, "10000")
	assert.Contains(t, out, "1,500")
}

func TestCount_FromResumeFile(t *testing.T) {
	t.Parallel()

	resume := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(resume, []byte("20\n"), 0o600))

	out, err := executeCount(t, &GlobalOptions{}, "3", "--charset", "abc", "--resume", resume)
	require.NoError(t, err)

	assert.Contains(t, out, "Start rank")
	assert.Contains(t, out, "20")
}

func TestCount_ResumeBeyondSpace(t *testing.T) {
	t.Parallel()

	resume := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(resume, []byte("27\n"), 0o600))

	_, err := executeCount(t, &GlobalOptions{}, "3", "--charset", "abc", "--resume", resume)
	require.ErrorIs(t, err, engine.ErrInvalidResumeState)
}

func TestCount_ShowsResumeMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	resume := filepath.Join(dir, "run.resume")
	output := filepath.Join(dir, "out.txt")

	_, _, err := runGenerate(t, &GlobalOptions{}, "3", "--charset", "abc",
		"--limit", "10", "--resume", resume, "-o", output)
	require.NoError(t, err)

	out, err := executeCount(t, &GlobalOptions{}, "3", "--charset", "abc", "--resume", resume)
	require.NoError(t, err)

	assert.Contains(t, out, "Resume run")
	assert.Contains(t, out, "Resume saved")
	assert.Contains(t, out, "17")
}

func TestCount_HandWrittenResumeHasNoMetadataRows(t *testing.T) {
	t.Parallel()

	resume := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(resume, []byte("5\n"), 0o600))

	out, err := executeCount(t, &GlobalOptions{}, "3", "--charset", "abc", "--resume", resume)
	require.NoError(t, err)

	assert.NotContains(t, out, "Resume run")
}
