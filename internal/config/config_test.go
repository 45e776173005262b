package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-indexer/internal/domain"
)

const sample = `
log_level: debug
resolutions: [1m, 1h]
chains:
  - name: arbitrum
    source:
      path: ${TEST_EVENTS_DIR}/arbitrum.jsonl
  - name: avalanche
    source:
      type: ws
      url: ws://localhost:8546/events
    store:
      backend: postgres
      dsn: postgres://indexer@localhost/perp
`

func TestParse_ExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("TEST_EVENTS_DIR", "/data")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.Dedupe)
	require.Len(t, cfg.Chains, 2)

	arb, ok := cfg.Chain("arbitrum")
	require.True(t, ok)
	assert.Equal(t, SourceFile, arb.Source.Type)
	assert.Equal(t, "/data/arbitrum.jsonl", arb.Source.Path)
	assert.Equal(t, BackendMemory, arb.Store.Backend)

	res, err := cfg.ParsedResolutions()
	require.NoError(t, err)
	assert.Equal(t, []domain.Resolution{domain.Resolution1m, domain.Resolution1h}, res)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("TEST_EVENTS_DIR", "/data")
	t.Setenv("PERP_INDEXER_LOG_FORMAT", "json")
	t.Setenv("PERP_INDEXER_DEDUPE", "false")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.Dedupe)

	t.Setenv("PERP_INDEXER_DEDUPE", "maybe")
	_, err = Parse([]byte(sample))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no chains", "log_level: info\n"},
		{"missing name", "chains:\n  - source: {path: a.jsonl}\n"},
		{"duplicate", "chains:\n  - {name: a, source: {path: a}}\n  - {name: a, source: {path: b}}\n"},
		{"file without path", "chains:\n  - name: a\n"},
		{"ws without url", "chains:\n  - {name: a, source: {type: ws}}\n"},
		{"bad source", "chains:\n  - {name: a, source: {type: kafka}}\n"},
		{"bad backend", "chains:\n  - {name: a, source: {path: a}, store: {backend: redis}}\n"},
		{"missing dsn", "chains:\n  - {name: a, source: {path: a}, store: {backend: sqlite}}\n"},
		{"bad resolution", "resolutions: [2m]\nchains:\n  - {name: a, source: {path: a}}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chains:\n  - {name: a, source: {path: a.jsonl}}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.MetricsAddr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "absent.env")))
	assert.NoError(t, LoadEnvFile(""))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PERP_TEST_ENV_FILE_VALUE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PERP_TEST_ENV_FILE_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("PERP_TEST_ENV_FILE_VALUE"))
}
