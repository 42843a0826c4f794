package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/combogen/pkg/version"
)

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCommand()

	var stdout bytes.Buffer

	cmd.SetOut(&stdout)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version.Get().String()+"\n", stdout.String())
}

func TestVersionCommand_JSON(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCommand()

	var stdout bytes.Buffer

	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--json"})

	require.NoError(t, cmd.Execute())

	var info version.Info

	require.NoError(t, json.Unmarshal(stdout.Bytes(), &info))
	assert.Equal(t, version.Get(), info)
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.Subset(t, names, []string{"generate", "count", "config", "version"})
}
