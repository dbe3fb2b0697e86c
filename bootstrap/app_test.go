package bootstrap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/config"
)

// TestEnsureDataDirectory tests parent directory creation for the database.
func TestEnsureDataDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "argus.db")

	require.NoError(t, ensureDataDirectory(dbPath))
	assert.DirExists(t, filepath.Join(dir, "nested"))

	// In-memory databases need no directory.
	assert.NoError(t, ensureDataDirectory(":memory:"))
}

// TestInitLogger tests level and format handling.
func TestInitLogger(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	logger, sugar, err := InitLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NotNil(t, sugar)

	cfg.Logging.Format = "console"
	_, _, err = InitLogger(cfg)
	assert.NoError(t, err)

	cfg.Logging.Level = "verbose"
	_, _, err = InitLogger(cfg)
	assert.Error(t, err)
}
