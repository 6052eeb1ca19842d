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
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "nutri.toml", `
source = "graph"

[backend]
base_url = "http://api.local"
max_retries = 4
timeout = "500ms"

[memgraph]
uri = "bolt://graph:7687"

[history]
store = "redis"
redis_addr = "localhost:6379"

[search]
rerank = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "graph", cfg.Source)
	assert.Equal(t, "http://api.local", cfg.Backend.BaseURL)
	assert.Equal(t, 4, cfg.Backend.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Backend.Timeout.Std())
	assert.Equal(t, "info", cfg.Log.Mode, "defaults survive")
	assert.Equal(t, "bolt://graph:7687", cfg.Memgraph.URI)
	assert.Equal(t, "redis", cfg.History.Store)
	assert.True(t, cfg.Search.Rerank)
	assert.Equal(t, 10, cfg.Search.HistorySize)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "nutri.yaml", `
backend:
  base_url: http://yaml.local
  timeout: 2s
history:
  store: sql
  sql_driver: sqlite
  sql_dsn: ":memory:"
llm:
  provider: openai
  model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rest", cfg.Source)
	assert.Equal(t, "http://yaml.local", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Backend.Timeout.Std())
	assert.Equal(t, "sql", cfg.History.Store)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	path := writeFile(t, "bad.toml", `source = "sparql"`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load("../../config/config.toml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NUTRI_BACKEND_URL", "http://env.local")
	t.Setenv("NUTRI_SOURCE", "graph")
	t.Setenv("NUTRI_BACKEND_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("NUTRI_HISTORY_STORE", "redis")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "http://env.local", cfg.Backend.BaseURL)
	assert.Equal(t, "graph", cfg.Source)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout.Std())
	assert.Equal(t, "redis:6379", cfg.History.RedisAddr)
}

func TestApplyEnvBadDuration(t *testing.T) {
	t.Setenv("NUTRI_BACKEND_TIMEOUT", "soon")
	assert.Error(t, Default().ApplyEnv())
}
