package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geeth24/xpool-agent/pkg/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Server.URL)
	assert.Equal(t, 3*time.Second, cfg.Tasks.PollInterval)
	assert.Equal(t, 20, cfg.Prompt.DefaultMaxResults)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.History.Persist)
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "settings.yaml")
	contents := `
server:
  url: http://xpool.internal:9000
tasks:
  poll_interval: 5s
prompt:
  default_max_results: 50
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(contents), 0644))

	cfg, err := config.Load(cfgFile)
	require.NoError(t, err)

	assert.Equal(t, "http://xpool.internal:9000", cfg.Server.URL)
	assert.Equal(t, 5*time.Second, cfg.Tasks.PollInterval)
	assert.Equal(t, 50, cfg.Prompt.DefaultMaxResults)
}

func TestGetAfterLoad(t *testing.T) {
	viper.Reset()

	_, err := config.Load("")
	require.NoError(t, err)

	assert.NotNil(t, config.Get())
}
