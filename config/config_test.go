package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
dbFile: data/branch.db
logLevel: debug
logFormat: json
autosave: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FileConfig{
		DBFile:    "data/branch.db",
		LogLevel:  "debug",
		LogFormat: "json",
		Autosave:  false,
	}, cfg)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "dbFile: from-file.db\nlogLevel: info\n")
	t.Setenv("LIBRARY_DB_FILE", "from-env.db")
	t.Setenv("LIBRARY_LOG_LEVEL", "warn")
	t.Setenv("LIBRARY_LOG_FORMAT", "json")
	t.Setenv("LIBRARY_AUTOSAVE", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBFile)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.Autosave)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown level", body: "logLevel: chatty\n"},
		{name: "unknown format", body: "logFormat: xml\n"},
		{name: "blank db file", body: "dbFile: '  '\n"},
		{name: "malformed yaml", body: "dbFile: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestNewLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := FileConfig{LogLevel: "warn", LogFormat: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "book_id", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"book_id":3`)
}
