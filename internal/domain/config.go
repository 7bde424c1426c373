package domain

import "time"

// Placeholder credentials shipped in the sample config. A run refuses to start with them.
const (
	PlaceholderEmail    = "your_email@example.com"
	PlaceholderPassword = "your_password"
)

// Config represents the application configuration
type Config struct {
	Email        string             `mapstructure:"email"`
	Password     string             `mapstructure:"password"`
	API          APIConfig          `mapstructure:"api"`
	Download     DownloadConfig     `mapstructure:"download"`
	Ledger       LedgerConfig       `mapstructure:"ledger"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Server       ServerConfig       `mapstructure:"server"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// APIConfig contains the video platform endpoints and request settings
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	FilesURL   string        `mapstructure:"files_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
	SignSuffix string        `mapstructure:"sign_suffix"`
}

// DownloadConfig contains transfer engine configuration
type DownloadConfig struct {
	BaseDir          string        `mapstructure:"base_dir"`
	ThumbnailDir     string        `mapstructure:"thumbnail_dir"`
	LogsDir          string        `mapstructure:"logs_dir"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	StallTimeout     time.Duration `mapstructure:"stall_timeout"`
	InterruptBackoff time.Duration `mapstructure:"interrupt_backoff"`
	NetworkBackoff   time.Duration `mapstructure:"network_backoff"`
	VerifyBackoff    time.Duration `mapstructure:"verify_backoff"`
	MarkerBackoff    time.Duration `mapstructure:"marker_backoff"`
	RetryMarkers     []string      `mapstructure:"retry_markers"` // matched case-insensitively in error text
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// LedgerConfig contains completion ledger configuration
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// OrchestratorConfig contains batch run configuration
type OrchestratorConfig struct {
	Concurrency        int           `mapstructure:"concurrency"`
	StaggerDelay       time.Duration `mapstructure:"stagger_delay"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	MaxExternalRetries int           `mapstructure:"max_external_retries"`
}

// ServerConfig contains ledger view server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Email:    PlaceholderEmail,
		Password: PlaceholderPassword,
		API: APIConfig{
			BaseURL:    "https://api.iwara.tv",
			FilesURL:   "https://files.iwara.tv",
			Timeout:    30 * time.Second,
			UserAgent:  "Mozilla/5.0",
			SignSuffix: "_5nFp9kmbNnHdAFhaqMvt",
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/iwara-dl/downloads",
			ThumbnailDir:     "$HOME/iwara-dl/downloads/thumbnails",
			LogsDir:          "$HOME/iwara-dl/logs",
			MaxAttempts:      5,
			StallTimeout:     300 * time.Second,
			InterruptBackoff: 5 * time.Second,
			NetworkBackoff:   5 * time.Second,
			VerifyBackoff:    2 * time.Second,
			MarkerBackoff:    10 * time.Second,
			RetryMarkers:     []string{"需稍后重试", "retry later"},
			ProgressInterval: 60 * time.Second,
		},
		Ledger: LedgerConfig{
			Path: "$HOME/iwara-dl/download_log.json",
		},
		Orchestrator: OrchestratorConfig{
			Concurrency:        4,
			StaggerDelay:       100 * time.Millisecond,
			RetryDelay:         10 * time.Second,
			MaxExternalRetries: 3,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}

// HasPlaceholderCredentials reports whether the credentials were left at their sample values.
func (c *Config) HasPlaceholderCredentials() bool {
	return c.Email == "" || c.Password == "" ||
		c.Email == PlaceholderEmail || c.Password == PlaceholderPassword
}
