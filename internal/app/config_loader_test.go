package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/iwara-dl-go/internal/domain"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, `{
		"email": "me@example.org",
		"password": "secret",
		"download": {
			"base_dir": "`+filepath.ToSlash(dir)+`/videos",
			"max_attempts": 7,
			"stall_timeout": "90s"
		},
		"ledger": {"path": "`+filepath.ToSlash(dir)+`/download_log.json"},
		"orchestrator": {"concurrency": 8, "retry_delay": "1m"}
	}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "me@example.org", config.Email)
	assert.Equal(t, "secret", config.Password)
	assert.Equal(t, filepath.Join(dir, "videos"), filepath.Clean(config.Download.BaseDir))
	assert.Equal(t, 7, config.Download.MaxAttempts)
	assert.Equal(t, 90*time.Second, config.Download.StallTimeout)
	assert.Equal(t, 8, config.Orchestrator.Concurrency)
	assert.Equal(t, time.Minute, config.Orchestrator.RetryDelay)

	// Untouched keys keep their defaults
	defaults := domain.DefaultConfig()
	assert.Equal(t, defaults.API.SignSuffix, config.API.SignSuffix)
	assert.Equal(t, defaults.Download.RetryMarkers, config.Download.RetryMarkers)
	assert.Equal(t, defaults.Orchestrator.MaxExternalRetries, config.Orchestrator.MaxExternalRetries)
	assert.NoError(t, RequireCredentials(config))
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	path := writeConfigFile(t, `{"email": "me@example.org", "password": "secret"}`)
	t.Setenv("IWARADL_ORCHESTRATOR_CONCURRENCY", "3")
	t.Setenv("IWARADL_PASSWORD", "from-env")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, config.Orchestrator.Concurrency)
	assert.Equal(t, "from-env", config.Password)
}

func TestLoadConfig_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfigFile(t, `{"download": {"base_dir": "$HOME/videos"}, "ledger": {"path": "~/log.json"}}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "videos"), config.Download.BaseDir)
	assert.Equal(t, filepath.Join(home, "log.json"), config.Ledger.Path)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port", `{"server": {"port": 70000}}`},
		{"concurrency", `{"orchestrator": {"concurrency": 0}}`},
		{"attempts", `{"download": {"max_attempts": 0}}`},
		{"external retries", `{"orchestrator": {"max_external_retries": -1}}`},
		{"malformed json", `{"email": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestValidateConfig_DefaultsThumbnailDir(t *testing.T) {
	config := domain.DefaultConfig()
	config.Download.BaseDir = "/data/videos"
	config.Download.ThumbnailDir = ""

	require.NoError(t, validateConfig(config))
	assert.Equal(t, filepath.Join("/data/videos", "thumbnails"), config.Download.ThumbnailDir)
}

func TestRequireCredentials(t *testing.T) {
	config := domain.DefaultConfig()
	assert.ErrorIs(t, RequireCredentials(config), ErrPlaceholderCredentials)

	config.Email = "me@example.org"
	config.Password = ""
	assert.ErrorIs(t, RequireCredentials(config), ErrPlaceholderCredentials)

	config.Password = "secret"
	assert.NoError(t, RequireCredentials(config))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	config := domain.DefaultConfig()
	config.Email = "me@example.org"
	config.Password = "secret"
	config.Download.BaseDir = filepath.Join(dir, "videos")
	config.Download.ThumbnailDir = filepath.Join(dir, "thumbs")
	config.Download.LogsDir = filepath.Join(dir, "logs")
	config.Ledger.Path = filepath.Join(dir, "download_log.json")
	config.Orchestrator.RetryDelay = 45 * time.Second

	path := filepath.Join(dir, "nested", "config.json")
	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, config.Email, loaded.Email)
	assert.Equal(t, config.Download.BaseDir, loaded.Download.BaseDir)
	assert.Equal(t, 45*time.Second, loaded.Orchestrator.RetryDelay)
	assert.Equal(t, config.Download.StallTimeout, loaded.Download.StallTimeout)
	assert.Equal(t, config.API.UserAgent, loaded.API.UserAgent)
	assert.Equal(t, config.Download.RetryMarkers, loaded.Download.RetryMarkers)
}

func TestStructToMap_DurationsAsStrings(t *testing.T) {
	m := structToMap(domain.OrchestratorConfig{Concurrency: 2, RetryDelay: 10 * time.Second})

	assert.Equal(t, 2, m["concurrency"])
	assert.Equal(t, "10s", m["retry_delay"])
}
