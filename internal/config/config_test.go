package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntua-el20059/Chordify/internal/chord"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, chord.ConsistencyLinearizable, cfg.Consistency)
	assert.Equal(t, 1, cfg.ReplicationFactor)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		path := writeConfig(t, `
port: 5001
data_dir: /var/lib/chordify
http_addr: ":8080"
consistency: eventual
replication_factor: 3
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 5001, cfg.Port)
		assert.Equal(t, "/var/lib/chordify", cfg.DataDir)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, chord.ConsistencyEventual, cfg.Consistency)
		assert.Equal(t, 3, cfg.ReplicationFactor)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "port: 5002\n"))
		require.NoError(t, err)
		assert.Equal(t, 5002, cfg.Port)
		assert.Equal(t, chord.ConsistencyLinearizable, cfg.Consistency)
		assert.Equal(t, 1, cfg.ReplicationFactor)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown consistency", func(t *testing.T) {
		_, err := Load(writeConfig(t, "consistency: causal\n"))
		assert.Error(t, err)
	})

	t.Run("non-positive replication factor", func(t *testing.T) {
		_, err := Load(writeConfig(t, "replication_factor: 0\n"))
		assert.Error(t, err)
	})
}
