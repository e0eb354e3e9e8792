package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/catalog-cache/pkg/logging"
	"github.com/Sternrassler/catalog-cache/pkg/service"
	"github.com/Sternrassler/catalog-cache/pkg/workerpool"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the proxy configuration. Precedence, lowest first: built-in
// defaults, environment, --config file, explicit flags.
type Config struct {
	Port int `yaml:"port"`

	BaseURL        string        `yaml:"base_url"`
	FirstPageURL   string        `yaml:"first_page_url"`
	PageSize       int           `yaml:"page_size"`
	MaxPages       int           `yaml:"max_pages"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`

	// RedisURL enables shared upstream quota tracking when set.
	RedisURL string `yaml:"redis_url"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// DefaultConfig returns the defaults with environment overrides applied.
func DefaultConfig() *Config {
	return &Config{
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("CATALOG_BASE_URL", ""),
		FirstPageURL:   getEnv("CATALOG_FIRST_PAGE", ""),
		PageSize:       getEnvInt("PAGE_SIZE", service.DefaultPageSize),
		MaxPages:       getEnvInt("MAX_PAGES", service.DefaultMaxPages),
		Workers:        getEnvInt("WORKERS", workerpool.DefaultConfig().Workers),
		QueueSize:      getEnvInt("QUEUE_SIZE", service.DefaultPageSize*service.DefaultMaxPages),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", service.DefaultRequestTimeout),
		UserAgent:      getEnv("USER_AGENT", service.DefaultUserAgent),
		RedisURL:       getEnv("REDIS_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnv("LOG_PRETTY", "") == "true",
	}
}

// Global is the configuration bound to the command line flags.
var Global = DefaultConfig()

var configPath string

// InitFlags registers the command line flags.
func InitFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.IntVarP(&Global.Port, "port", "p", Global.Port, "HTTP listen port")
	flags.StringVar(&Global.BaseURL, "base-url", Global.BaseURL, "Upstream catalog base URL")
	flags.StringVar(&Global.FirstPageURL, "first-page", Global.FirstPageURL, "Relative URL of the first catalog page")
	flags.IntVar(&Global.PageSize, "page-size", Global.PageSize, "Items per upstream page")
	flags.IntVar(&Global.MaxPages, "max-pages", Global.MaxPages, "Maximum resident pages")
	flags.IntVar(&Global.Workers, "workers", Global.Workers, "Concurrent upstream requests")
	flags.IntVar(&Global.QueueSize, "queue-size", Global.QueueSize, "Upstream requests allowed to wait for a worker")
	flags.DurationVar(&Global.RequestTimeout, "request-timeout", Global.RequestTimeout, "Timeout per upstream request")
	flags.StringVar(&Global.UserAgent, "user-agent", Global.UserAgent, "User-Agent sent upstream")
	flags.StringVar(&Global.RedisURL, "redis-url", Global.RedisURL, "Redis address for quota tracking (optional)")
	flags.StringVar(&Global.LogLevel, "log-level", Global.LogLevel, "Log level (debug, info, warn, error)")
	flags.BoolVar(&Global.LogPretty, "log-pretty", Global.LogPretty, "Human-readable console logs")
}

// LoadFile merges a YAML file into cfg. Flags set on the command line keep
// their values.
func LoadFile(path string, cfg *Config, flags *pflag.FlagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if flags == nil {
		return nil
	}

	// Re-apply explicit flags over the file values
	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		if err := f.Value.Set(f.Value.String()); err != nil && setErr == nil {
			setErr = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	return setErr
}

// Validate checks the proxy-level settings. Service settings are validated
// by service.New.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be 1-65535 (got %d)", c.Port)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ServiceConfig converts to the service configuration.
func (c *Config) ServiceConfig() service.Config {
	cfg := service.DefaultConfig(c.BaseURL, c.FirstPageURL)
	cfg.PageSize = c.PageSize
	cfg.MaxPages = c.MaxPages
	cfg.Workers = c.Workers
	cfg.QueueSize = c.QueueSize
	cfg.RequestTimeout = c.RequestTimeout
	cfg.UserAgent = c.UserAgent
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
