package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.Lifecycle.TimeToLive)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "gofac", cfg.Metrics.Namespace)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
lifecycle:
  time_to_live: 30s
  dispose_on_invalidate: true
logging:
  level: debug
  encoding: console
metrics:
  enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Lifecycle.TimeToLive)
	assert.True(t, cfg.Lifecycle.DisposeOnInvalidate)
	assert.False(t, cfg.Lifecycle.AllowInheritance)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Encoding)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "gofac", cfg.Metrics.Namespace, "unset keys keep their defaults")
	assert.Len(t, cfg.RegistrationOptions(), 3)
}

func TestParseInvalid(t *testing.T) {
	tests := map[string]string{
		"negative ttl":   "lifecycle:\n  time_to_live: -1s\n",
		"bad level":      "logging:\n  level: loud\n",
		"bad encoding":   "logging:\n  encoding: xml\n",
		"no namespace":   "metrics:\n  namespace: \"\"\n",
		"malformed yaml": "lifecycle: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileEnvFileAndEnvironment(t *testing.T) {
	path := writeFile(t, "gofac.yaml", "lifecycle:\n  time_to_live: 1m\nlogging:\n  level: warn\n")
	envFile := writeFile(t, ".env", "GOFAC_METRICS_NAMESPACE=fromdotenv\nGOFAC_LOG_LEVEL=error\n")
	t.Setenv("GOFAC_LOG_LEVEL", "debug")
	t.Setenv("GOFAC_DISPOSE_ON_INVALIDATE", "true")
	t.Setenv("GOFAC_METRICS_NAMESPACE", "")
	os.Unsetenv("GOFAC_METRICS_NAMESPACE")

	cfg, err := Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Lifecycle.TimeToLive)
	assert.Equal(t, "debug", cfg.Logging.Level, "process environment wins over .env")
	assert.True(t, cfg.Lifecycle.DisposeOnInvalidate)
	assert.Equal(t, "fromdotenv", cfg.Metrics.Namespace)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("GOFAC_TIME_TO_LIVE", "soon")
	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "GOFAC_TIME_TO_LIVE")
}

func TestLoadBadBool(t *testing.T) {
	t.Setenv("GOFAC_ALLOW_INHERITANCE", "maybe")
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "GOFAC_ALLOW_INHERITANCE")
}
