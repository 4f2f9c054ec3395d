package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "round_robin_4")
	assert.Contains(t, out, "write_read")

	out, err = execute(t, "presets", "--dump", "write_read")
	require.NoError(t, err)
	assert.Contains(t, out, "masters: 1")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "--preset", "weighted_3")
	require.NoError(t, err)
	assert.Contains(t, out, "weighted_3 is valid: 3 masters, 1 slaves, weighted_round_robin arbitration")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("masters: 0\nslaves: []\n"), 0o644))
	_, err = execute(t, "validate", "--config", path)
	assert.ErrorContains(t, err, "validation failed")

	_, err = execute(t, "validate", "--config", path, "--preset", "weighted_3")
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--preset", "write_read", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Cycles: 20")
	assert.Contains(t, out, "Completed: 2, Errors: 0")
}

func TestRunCommandBadLogLevel(t *testing.T) {
	_, err := execute(t, "run", "--log-level", "loud")
	assert.Error(t, err)
}

func TestRunPausedNeedsListen(t *testing.T) {
	_, err := execute(t, "run", "--paused")
	assert.ErrorContains(t, err, "--paused requires --listen")
}
