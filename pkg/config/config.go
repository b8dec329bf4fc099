package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for imgfetch
type Config struct {
	// HTTP client and retry behavior
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// HTTPConfig holds HTTP transport and retry configuration
type HTTPConfig struct {
	MaxRetries         int           `yaml:"max_retries" json:"max_retries"`
	BackoffBase        time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffJitter      time.Duration `yaml:"backoff_jitter" json:"backoff_jitter"`
	MaxBackoffTotal    time.Duration `yaml:"max_backoff_total" json:"max_backoff_total"`
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	UserAgents         []string      `yaml:"user_agents" json:"user_agents"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RequestsPerMinute   int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MinFileSize         int64         `yaml:"min_file_size" json:"min_file_size"`
	MaxFileSize         int64         `yaml:"max_file_size" json:"max_file_size"`
	OverwriteExisting   bool          `yaml:"overwrite_existing" json:"overwrite_existing"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory      string `yaml:"base_directory" json:"base_directory"`
	CreateQueryFolders bool   `yaml:"create_query_folders" json:"create_query_folders"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			MaxRetries:      3,
			BackoffBase:     500 * time.Millisecond,
			BackoffJitter:   200 * time.Millisecond,
			MaxBackoffTotal: 15 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
			RequestsPerMinute:   60,
			MinFileSize:         0,
			MaxFileSize:         0, // 0 means no limit
			OverwriteExisting:   false,
		},
		Output: OutputConfig{
			BaseDirectory:      "./downloads",
			CreateQueryFolders: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if dir := os.Getenv("IMGFETCH_OUTPUT_DIR"); dir != "" {
		c.Output.BaseDirectory = dir
	}
	if level := os.Getenv("IMGFETCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("IMGFETCH_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
	if retries := os.Getenv("IMGFETCH_MAX_RETRIES"); retries != "" {
		var val int
		fmt.Sscanf(retries, "%d", &val)
		if val >= 0 {
			c.HTTP.MaxRetries = val
		}
	}
	if rpm := os.Getenv("IMGFETCH_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.Download.RequestsPerMinute = val
		}
	}
	if workers := os.Getenv("IMGFETCH_CONCURRENT_DOWNLOADS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile looks for a config file in standard locations
func (c *Config) findConfigFile() string {
	candidates := []string{
		"imgfetch.yaml",
		"imgfetch.yml",
		".imgfetch.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "imgfetch", "config.yaml"),
			filepath.Join(home, ".imgfetch.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.HTTP.MaxRetries < 0 {
		return errors.New("http.max_retries must be non-negative")
	}
	if c.HTTP.BackoffBase <= 0 {
		return errors.New("http.backoff_base must be positive")
	}
	if c.HTTP.BackoffJitter < 0 {
		return errors.New("http.backoff_jitter must be non-negative")
	}
	if c.HTTP.MaxBackoffTotal < 0 {
		return errors.New("http.max_backoff_total must be non-negative")
	}
	if c.Download.ConcurrentDownloads < 1 {
		return errors.New("download.concurrent_downloads must be at least 1")
	}
	if c.Download.RequestsPerMinute < 1 {
		return errors.New("download.requests_per_minute must be at least 1")
	}
	if c.Download.MaxFileSize > 0 && c.Download.MinFileSize > c.Download.MaxFileSize {
		return errors.New("download.min_file_size cannot exceed download.max_file_size")
	}
	if c.Output.BaseDirectory == "" {
		return errors.New("output.base_directory cannot be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies command line flag values over the config
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v > 0 {
		c.Download.RequestsPerMinute = v
	}
	if v, ok := flags["max-retries"].(int); ok && v >= 0 {
		c.HTTP.MaxRetries = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["overwrite"].(bool); ok {
		c.Download.OverwriteExisting = v
	}
	if v, ok := flags["timeout"].(int); ok && v > 0 {
		c.Download.DownloadTimeout = time.Duration(v) * time.Second
	}
	if v, ok := flags["query-folders"].(bool); ok {
		c.Output.CreateQueryFolders = v
	}
}

// Load builds the effective configuration.
//
// Precedence, lowest to highest: defaults, config file, environment
// variables, command line flags.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Load .env file if present (ignore errors, it's optional)
	_ = godotenv.Load()

	cfg := DefaultConfig()

	// Find config file if not explicitly provided
	if configPath == "" {
		configPath = cfg.findConfigFile()
	}

	if configPath != "" {
		if err := cfg.LoadFromFile(configPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if flags != nil {
		cfg.MergeCommandLineFlags(flags)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
