package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yourusername/iwara-dl-go/internal/domain"
)

// ErrPlaceholderCredentials is returned when the config still carries the sample credentials
var ErrPlaceholderCredentials = errors.New("email and password must be set in config.json")

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	// Set up viper
	v := viper.New()
	v.SetConfigType("json")

	// If config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.iwara-dl")
		v.AddConfigPath("/etc/iwara-dl")
	}

	// Read environment variables, e.g. IWARADL_EMAIL or IWARADL_DOWNLOAD_BASE_DIR
	v.SetEnvPrefix("IWARADL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in paths
	config = expandPaths(config)

	// Validate config
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys makes every known key visible to AutomaticEnv even when the file omits it
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"email", "password",
		"api.base_url", "api.files_url", "api.timeout", "api.user_agent", "api.sign_suffix",
		"download.base_dir", "download.thumbnail_dir", "download.logs_dir", "download.max_attempts",
		"download.stall_timeout", "download.interrupt_backoff", "download.network_backoff",
		"download.verify_backoff", "download.marker_backoff", "download.retry_markers",
		"download.progress_interval",
		"ledger.path",
		"orchestrator.concurrency", "orchestrator.stagger_delay", "orchestrator.retry_delay",
		"orchestrator.max_external_retries",
		"server.host", "server.port",
		"notification.enabled", "notification.sound", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.ThumbnailDir = expandPath(config.Download.ThumbnailDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Ledger.Path = expandPath(config.Ledger.Path)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	// Expand home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// Replace $HOME before the generic expansion so it works without a HOME variable
	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	// Expand environment variables
	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.API.BaseURL == "" || config.API.FilesURL == "" {
		return fmt.Errorf("api base_url and files_url must be configured")
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Download.ThumbnailDir == "" {
		config.Download.ThumbnailDir = filepath.Join(config.Download.BaseDir, "thumbnails")
	}

	if config.Download.MaxAttempts < 1 {
		return fmt.Errorf("download max attempts must be at least 1")
	}

	if config.Download.StallTimeout <= 0 {
		return fmt.Errorf("download stall timeout must be positive")
	}

	if config.Ledger.Path == "" {
		return fmt.Errorf("ledger path not configured")
	}

	if config.Orchestrator.Concurrency < 1 {
		return fmt.Errorf("orchestrator concurrency must be at least 1")
	}

	if config.Orchestrator.MaxExternalRetries < 0 {
		return fmt.Errorf("max external retries cannot be negative")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// RequireCredentials rejects a config whose credentials are missing or still the sample values
func RequireCredentials(config *domain.Config) error {
	if config.HasPlaceholderCredentials() {
		return ErrPlaceholderCredentials
	}
	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("json")

	// Marshal config to viper
	v.Set("email", config.Email)
	v.Set("password", config.Password)
	v.Set("api", structToMap(config.API))
	v.Set("download", structToMap(config.Download))
	v.Set("ledger", structToMap(config.Ledger))
	v.Set("orchestrator", structToMap(config.Orchestrator))
	v.Set("server", structToMap(config.Server))
	v.Set("notification", structToMap(config.Notification))
	v.Set("logging", structToMap(config.Logging))

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// structToMap flattens one config section into mapstructure keys. Durations are written
// as strings such as "30s" so the saved file stays readable.
func structToMap(section interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	value := reflect.ValueOf(section)
	typ := value.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		key := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if key == "" || key == "-" {
			continue
		}
		fieldValue := value.Field(i).Interface()
		if d, ok := fieldValue.(time.Duration); ok {
			out[key] = d.String()
			continue
		}
		out[key] = fieldValue
	}
	return out
}
