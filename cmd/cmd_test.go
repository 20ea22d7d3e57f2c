package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/bnema/popkeys/internal/bridge"
	"github.com/bnema/popkeys/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "popkeys.toml")}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		config.SetConfigPath("")
		configFile = ""
	})

	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "popkeys "+Version)
	assert.Contains(t, out, "commit:")
}

func TestDetectCommand(t *testing.T) {
	t.Setenv(bridge.DesktopEnv, "ubuntu:GNOME")
	out := execute(t, "detect")
	assert.Contains(t, out, "ubuntu:GNOME")
	assert.Contains(t, out, "gnome")
	assert.Contains(t, out, "org.gnome.SettingsDaemon.MediaKeys")

	t.Setenv(bridge.DesktopEnv, "KDE")
	out = execute(t, "detect")
	assert.Contains(t, out, "generic")
	assert.Contains(t, out, "XF86AudioPlay")
}

func TestStatusWithoutDaemon(t *testing.T) {
	t.Setenv("POPKEYS_IPC_SOCKET_PATH", filepath.Join(t.TempDir(), "none.sock"))
	out := execute(t, "status")
	assert.Contains(t, out, "not running")
}

func TestConfigShow(t *testing.T) {
	out := execute(t, "config", "show")
	assert.Contains(t, out, "keys.app_name")
	assert.Contains(t, out, config.DefaultAppName)
	assert.Contains(t, out, "ipc.queue_size")
}

func TestEffectiveLogLevel(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.Logging.LogLevel = "warn"

	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, "warn", effectiveLogLevel(&cfg))

	t.Setenv("LOG_LEVEL", "error")
	assert.Equal(t, "", effectiveLogLevel(&cfg))

	logLevel = "info"
	t.Cleanup(func() { logLevel = "" })
	assert.Equal(t, "info", effectiveLogLevel(&cfg))

	verbose = true
	t.Cleanup(func() { verbose = false })
	assert.Equal(t, "debug", effectiveLogLevel(&cfg))
}
