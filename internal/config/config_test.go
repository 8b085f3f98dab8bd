package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "", "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnaconv.yaml")
	content := `controller: avatar
read_only: true
store:
  backend: sqlite
  path: /tmp/plugins.db
watch:
  debounce: 2s
tracing:
  enabled: true
  exporter: none
  sample_rate: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(viper.New(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "avatar", cfg.Controller)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/plugins.db", cfg.Store.Path)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.True(t, cfg.Watch.Enabled, "unset keys keep their defaults")
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)
	assert.Equal(t, ":8080", cfg.Listen)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnaconv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("controller: fromfile\n"), 0o644))
	t.Setenv("DNACONV_CONTROLLER", "fromenv")
	t.Setenv("DNACONV_STORE_BACKEND", "memory")

	cfg, err := Load(viper.New(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Controller)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DNACONV_LISTEN=127.0.0.1:9999\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DNACONV_LISTEN") })

	cfg, err := Load(viper.New(), "", envFile)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(viper.New(), "", ".env")
	require.NoError(t, err)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnaconv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: redis\n"), 0o644))

	_, err := Load(viper.New(), path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store backend "redis"`)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Controller = ""
	cfg.Store.Path = ""
	cfg.LogLevel = "loud"
	cfg.Watch.Debounce = 0
	cfg.Tracing.SampleRate = 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 5)
}

func TestValidate_MemoryNeedsNoPath(t *testing.T) {
	cfg := Defaults()
	cfg.Store = StoreConfig{Backend: BackendMemory}
	assert.NoError(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "debug"

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}
