package forkdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFillsInDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`rpc_url = "https://example.invalid"`+"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid", cfg.RPCURL)
	assert.Equal(t, 30*time.Second, cfg.RPCTimeout, "omitted rpc_timeout must keep the default")
	assert.Equal(t, BlockingModeDefault, cfg.BlockingMode())
}

func TestConfigBlockingModeNameResolution(t *testing.T) {
	assert.Equal(t, BlockingModeContext, Config{BlockingModeName: "context"}.BlockingMode())
	assert.Equal(t, BlockingModeDefault, Config{BlockingModeName: "bogus"}.BlockingMode())
	assert.Equal(t, BlockingModeDefault, Config{}.BlockingMode())
}

func TestLoadConfigMissingFileReturnsError(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
