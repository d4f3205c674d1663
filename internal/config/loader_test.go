package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "openbridge.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.SpecPath)
	assert.Equal(t, ".env", cfg.EnvFile)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console)
	assert.True(t, cfg.Logging.Redaction)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openbridge.json")
	content := `{
		"spec_path": "/specs",
		"env_file": "/etc/openbridge/.env",
		"tool_prefix": "ob_",
		"servers": {"cars": "http://localhost:9000"},
		"logging": {"level": "debug", "pretty": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "/specs", cfg.SpecPath)
	assert.Equal(t, "/etc/openbridge/.env", cfg.EnvFile)
	assert.Equal(t, "ob_", cfg.ToolPrefix)
	assert.Equal(t, "http://localhost:9000", cfg.Servers["cars"])
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)

	// Untouched fields keep their defaults.
	assert.True(t, cfg.Logging.Redaction)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openbridge.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}
