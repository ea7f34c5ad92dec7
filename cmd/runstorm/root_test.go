package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "runstorm dev")
}

func TestConfigPath_Flag(t *testing.T) {
	flagConfig = "custom.toml"
	defer func() { flagConfig = "" }()

	path, err := configPath()
	require.NoError(t, err)
	assert.Equal(t, "custom.toml", path)
}

func TestConfigPath_UserFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("user config dir follows XDG_CONFIG_HOME on linux only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := configPath()
	require.NoError(t, err)
	assert.Equal(t, "", path)

	want := filepath.Join(dir, "runstorm", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(want), 0o755))
	require.NoError(t, os.WriteFile(want, nil, 0o644))

	path, err = configPath()
	require.NoError(t, err)
	assert.Equal(t, want, path)
}
