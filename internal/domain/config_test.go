package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "https://api.iwara.tv", config.API.BaseURL)
	assert.Equal(t, "https://files.iwara.tv", config.API.FilesURL)
	assert.Equal(t, 30*time.Second, config.API.Timeout)
	assert.Equal(t, 5, config.Download.MaxAttempts)
	assert.Equal(t, 60*time.Second, config.Download.ProgressInterval)
	assert.Equal(t, 10*time.Second, config.Orchestrator.RetryDelay)
	assert.Equal(t, 4, config.Orchestrator.Concurrency)
	assert.Equal(t, 3, config.Orchestrator.MaxExternalRetries)
	assert.Equal(t, 5000, config.Server.Port)
	assert.False(t, config.Notification.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestConfig_HasPlaceholderCredentials(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		expected bool
	}{
		{"defaults", PlaceholderEmail, PlaceholderPassword, true},
		{"placeholder email", PlaceholderEmail, "secret", true},
		{"placeholder password", "me@example.org", PlaceholderPassword, true},
		{"empty email", "", "secret", true},
		{"real credentials", "me@example.org", "secret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Email = tt.email
			config.Password = tt.password
			assert.Equal(t, tt.expected, config.HasPlaceholderCredentials())
		})
	}
}
