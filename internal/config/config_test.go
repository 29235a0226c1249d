package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConstants(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 55555, cfg.Port)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.AcceptTimeout())
	assert.Equal(t, 25, cfg.MaxPerIP)
	assert.Equal(t, 900*time.Millisecond, cfg.HandshakeTimeout())
	assert.Equal(t, 10*time.Second, cfg.LinkInterval())
	assert.Equal(t, 50*time.Millisecond, cfg.RelayCycle())
	assert.Equal(t, time.Hour, cfg.DBUpdateIntervalDur())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chessd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 44444\nlink_interval: 1\nmax_connection_per_ip: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 44444, cfg.Port)
	assert.Equal(t, time.Second, cfg.LinkInterval())
	assert.Equal(t, 3, cfg.MaxPerIP)
	// Untouched fields keep defaults.
	assert.Equal(t, 5, cfg.MaxAttempts)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chessd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDataDirFlattensDots(t *testing.T) {
	cfg := Default()
	cfg.BindAddress = "192.168.0.5"
	cfg.Port = 55555
	cfg.DataRoot = "/tmp"

	assert.Equal(t, "/tmp/data_192_168_0_5_55555", cfg.DataDir())
	assert.Equal(t, "/tmp/data_192_168_0_5_55555/users.db", cfg.DatabasePath())
}
