package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommandPrintsYAML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ZED_CONFIG", "")
	t.Setenv("ZED_SERVER_URL", "ws://zed.local:9000/ws")

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "url: ws://zed.local:9000/ws")
	assert.Contains(t, out.String(), "silence: 1.5s")
}

func TestRunRejectsUnknownMode(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ZED_CONFIG", "")

	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--mode", "walkie-talkie"})
	assert.ErrorContains(t, cmd.Execute(), "walkie-talkie")
}
