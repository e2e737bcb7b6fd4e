package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexai/cortexbi/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CORTEXBI_CONFIG", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, config.BackendBigQuery, cfg.Backend)
	assert.Equal(t, config.ProviderAnthropic, cfg.LLMProvider)
	assert.Equal(t, 1000, cfg.MaxRows)
	assert.Equal(t, time.Hour, cfg.ConversationTTL())
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cortexbi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
backend: sqlite
database_url: "file::memory:"
llm_provider: gemini
model_list:
  gemini: gemini-2.5-flash
`), 0o600))
	t.Setenv("CORTEXBI_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, config.BackendSQLite, cfg.Backend)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model())
}

func TestLoadJSONFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cortexbi.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9090, "max_rows": 50}`), 0o600))
	t.Setenv("CORTEXBI_CONFIG", path)
	t.Setenv("CORTEXBI_PORT", "7070")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 50, cfg.MaxRows)
}

func TestValidate(t *testing.T) {
	t.Setenv("CORTEXBI_CONFIG", "")

	t.Setenv("CORTEXBI_BACKEND", "oracle")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("CORTEXBI_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err = config.Load()
	assert.Error(t, err, "postgres needs a dsn")
}
