package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "jsonfile", cfg.Storage.Backend)
	require.Equal(t, "data", cfg.Storage.DataDir)
	require.Equal(t, "web", cfg.Crawl.Searcher)
	require.Equal(t, 10, cfg.Crawl.MaxResultsPerQuery)
	require.Equal(t, DefaultQueries, cfg.Crawl.DefaultQueries)
	require.False(t, cfg.Schedule.Enabled)
	require.False(t, cfg.PubSub.Enabled)
	require.True(t, cfg.Logging.Development)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 9090
storage:
  backend: memory
crawl:
  searcher: static
  default_queries:
    - "city light buyout"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.Equal(t, "static", cfg.Crawl.Searcher)
	require.Equal(t, []string{"city light buyout"}, cfg.Crawl.DefaultQueries)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "etcd"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "postgres"
	require.Error(t, cfg.Validate(), "postgres without dsn must fail")

	cfg = base()
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.PubSub.Enabled = true
	require.Error(t, cfg.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
