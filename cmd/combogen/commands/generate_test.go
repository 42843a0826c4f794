package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/combogen/pkg/config"
)

func notTerminal(io.Writer) bool { return false }

// runGenerate executes the generate command and returns stdout and stderr.
func runGenerate(t *testing.T, opts *GlobalOptions, args ...string) (string, string, error) {
	t.Helper()

	cmd := newGenerateCommandWithDeps(opts, []os.Signal{syscall.SIGUSR2}, notTerminal)

	var stdout, stderr bytes.Buffer

	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	slices.Sort(lines)

	return lines
}

func TestGenerate_WritesFile(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "combos.txt")

	_, _, err := runGenerate(t, &GlobalOptions{Quiet: true},
		"3", "--charset", "abc", "--workers", "4", "--output", out)
	require.NoError(t, err)

	lines := readLines(t, out)
	require.Len(t, lines, 27)
	assert.Equal(t, "aaa", lines[0])
	assert.Equal(t, "ccc", lines[26])
}

func TestGenerate_Stdout(t *testing.T) {
	t.Parallel()

	stdout, _, err := runGenerate(t, &GlobalOptions{Quiet: true},
		"--length", "2", "--charset", "01", "--workers", "1", "-o", "-")
	require.NoError(t, err)

	assert.Equal(t, "00\n01\n10\n11\n", stdout)
}

func TestGenerate_LimitZero(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "combos.txt")

	_, stderr, err := runGenerate(t, &GlobalOptions{}, "3", "--charset", "abc", "--limit", "0", "-o", out)
	require.NoError(t, err)

	assert.Contains(t, stderr, "Nothing to do (limit=0).")
	assert.NoFileExists(t, out)
}

func TestGenerate_MissingLength(t *testing.T) {
	t.Parallel()

	_, _, err := runGenerate(t, &GlobalOptions{Quiet: true}, "--charset", "abc", "--mode", "null")
	require.ErrorIs(t, err, config.ErrMissingLength)
}

func TestGenerate_RejectsNonNumericLength(t *testing.T) {
	t.Parallel()

	_, _, err := runGenerate(t, &GlobalOptions{Quiet: true}, "three", "--mode", "null")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")
}

func TestGenerate_MemoryVerbose(t *testing.T) {
	t.Parallel()

	_, stderr, err := runGenerate(t, &GlobalOptions{Verbose: true},
		"3", "--charset", "abc", "--workers", "1", "--mode", "memory")
	require.NoError(t, err)

	assert.Contains(t, stderr, "Total combinations")
	assert.Contains(t, stderr, "Performance report")
	assert.Contains(t, stderr, "completed")
	assert.Contains(t, stderr, "Memory sink holds 27 records; first 5:")
	assert.Contains(t, stderr, "  aaa\n  aab\n  aac\n  aba\n  abb\n")
}

func TestGenerate_MemoryCapFails(t *testing.T) {
	t.Parallel()

	_, stderr, err := runGenerate(t, &GlobalOptions{},
		"3", "--charset", "abc", "--workers", "1", "--mode", "memory", "--memory-cap", "5", "--flush-size", "8")
	require.ErrorIs(t, err, ErrRunFailed)

	assert.Contains(t, stderr, "failed")
}

func TestGenerate_LimitThenResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	resume := filepath.Join(dir, "resume.txt")
	out := filepath.Join(dir, "first.txt")

	_, stderr, err := runGenerate(t, &GlobalOptions{},
		"3", "--charset", "abc", "--workers", "1", "--limit", "10", "--resume", resume, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "limit-reached")

	data, err := os.ReadFile(resume)
	require.NoError(t, err)
	assert.Equal(t, "10\n", string(data))

	rest := filepath.Join(dir, "rest.txt")

	_, stderr, err = runGenerate(t, &GlobalOptions{},
		"3", "--charset", "abc", "--workers", "2", "--resume", resume, "-o", rest)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Resuming from")

	all := append(readLines(t, out), readLines(t, rest)...)
	slices.Sort(all)
	require.Len(t, all, 27)
	assert.Equal(t, "aaa", all[0])
	assert.Equal(t, "ccc", all[26])

	assert.NoFileExists(t, resume, "a finished space leaves no resume state")
}

func TestDescribeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output config.OutputConfig
		want   string
	}{
		{name: "file", output: config.OutputConfig{Mode: "file", Path: "out.txt", Compression: "none"}, want: "out.txt"},
		{name: "compressed", output: config.OutputConfig{Mode: "file", Path: "out.gz", Compression: "gzip"}, want: "out.gz (gzip)"},
		{name: "stdout", output: config.OutputConfig{Mode: "file", Path: "-", Compression: "none"}, want: "stdout"},
		{name: "memory", output: config.OutputConfig{Mode: "memory", Compression: "none"}, want: "(memory)"},
		{name: "null", output: config.OutputConfig{Mode: "null", Compression: "none"}, want: "(none)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			cfg.Output.Mode = tt.output.Mode
			cfg.Output.Path = tt.output.Path
			cfg.Output.Compression = tt.output.Compression

			assert.Equal(t, tt.want, describeOutput(&cfg))
		})
	}
}

func TestGenerate_HeapProfile(t *testing.T) {
	t.Parallel()

	heap := filepath.Join(t.TempDir(), "heap.pprof")

	_, _, err := runGenerate(t, &GlobalOptions{Quiet: true},
		"3", "--charset", "abc", "--mode", "null", "--heapprofile", heap)
	require.NoError(t, err)

	assert.FileExists(t, heap)
}

func TestGenerate_DiagnosticsServer(t *testing.T) {
	t.Parallel()

	_, _, err := runGenerate(t, &GlobalOptions{Quiet: true},
		"3", "--charset", "abc", "--mode", "null", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
}

func TestGenerate_ResumeAppendsToSameOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	resume := filepath.Join(dir, "resume.txt")
	out := filepath.Join(dir, "combos.txt")

	_, _, err := runGenerate(t, &GlobalOptions{Quiet: true},
		"3", "--charset", "abc", "--workers", "2", "--limit", "13", "--resume", resume, "-o", out)
	require.NoError(t, err)
	require.Len(t, readLines(t, out), 13)

	_, _, err = runGenerate(t, &GlobalOptions{Quiet: true},
		"3", "--charset", "abc", "--workers", "3", "--resume", resume, "-o", out)
	require.NoError(t, err)

	lines := readLines(t, out)
	require.Len(t, lines, 27)
	assert.Len(t, slices.Compact(lines), 27, "no record repeated")
	assert.NoFileExists(t, resume)
}

func TestGenerate_FreshRunTruncatesOutput(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "combos.txt")
	require.NoError(t, os.WriteFile(out, []byte("stale\n"), 0o600))

	_, _, err := runGenerate(t, &GlobalOptions{Quiet: true}, "2", "--charset", "ab", "-o", out)
	require.NoError(t, err)

	assert.Equal(t, []string{"aa", "ab", "ba", "bb"}, readLines(t, out))
}

func TestGenerate_SingleSymbolLongLength(t *testing.T) {
	t.Parallel()

	stdout, _, err := runGenerate(t, &GlobalOptions{Quiet: true}, "65", "--charset", "a", "-o", "-")
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("a", 65)+"\n", stdout)
}
