package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.toml")
	content := "HashtableSize = 1024\nCallStackDepth = 64\nOutput = \"out.log\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.HashtableSize)
	assert.Equal(t, 64, cfg.CallStackDepth)
	assert.Equal(t, "out.log", cfg.Output)
}

func TestLoadConfigPartialFileKeepsOtherDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.toml")
	require.NoError(t, os.WriteFile(path, []byte("Output = \"out.log\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultStoreSize, cfg.HashtableSize)
	assert.Equal(t, CallStackDepth, cfg.CallStackDepth)
	assert.Equal(t, "out.log", cfg.Output)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/tracker.toml")
	assert.Equal(t, NotFound, Kind(err))
}
