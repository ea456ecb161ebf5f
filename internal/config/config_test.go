package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://scanner@localhost/scanner
search:
  provider: googlenews
scheduler:
  pollInterval: 10s
pipeline:
  maxQueries: 4
`), 0o600))

	t.Chdir(dir)
	t.Setenv(configPathEnv, path)
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(aiProviderEnv, "openai")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "googlenews", cfg.Search.Provider)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.Backoff, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Pipeline.MaxQueries)
	assert.Equal(t, "sk-test", cfg.AI.OpenAI.APIKey)
	assert.Equal(t, defaultOpenAIModel, cfg.AI.OpenAI.Model)
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_DSN=file:fromenv.db\n"), 0o600))
	t.Chdir(dir)
	t.Setenv(configPathEnv, "")
	// godotenv never overrides variables that are already set, so clear it first.
	t.Setenv(databaseDSNEnv, "")
	require.NoError(t, os.Unsetenv(databaseDSNEnv))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file:fromenv.db", cfg.Database.DSN)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.AI.Provider = "anthropic"
	cfg.Search.Provider = "serper"
	cfg.Database.Driver = "mysql"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.anthropic.apiKey")
	assert.Contains(t, err.Error(), "search.serper.apiKey")
	assert.Contains(t, err.Error(), "database.driver")

	cfg = Default()
	cfg.AI.Provider = "mistral"
	assert.ErrorContains(t, cfg.Validate(), "not supported")
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
}
