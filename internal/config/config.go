package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every variable, e.g. DASHBOARD_SERVER_PORT.
const EnvPrefix = "DASHBOARD"

type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Workbook WorkbookConfig `envconfig:"WORKBOOK"`
	Logger   LoggerConfig   `envconfig:"LOG"`
	Security SecurityConfig `envconfig:"SECURITY"`
	Tracing  TracingConfig  `envconfig:"TRACING"`
}

type ServerConfig struct {
	Host            string        `split_words:"true" default:"localhost"`
	Port            int           `split_words:"true" default:"8084"`
	ReadTimeout     time.Duration `split_words:"true" default:"10s"`
	WriteTimeout    time.Duration `split_words:"true" default:"30s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
}

// WorkbookConfig locates the sales workbook. LayoutFile optionally replaces
// the default sheet layout; CacheDir "" disables the normalized cache.
type WorkbookConfig struct {
	Path        string `split_words:"true" default:"sales.xlsx"`
	LayoutFile  string `split_words:"true"`
	CacheDir    string `split_words:"true" default:".cache"`
	MaxUploadMB int64  `split_words:"true" default:"32"`
}

type LoggerConfig struct {
	Level  string `split_words:"true" default:"info"`
	Format string `split_words:"true" default:"json"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `split_words:"true" default:"true"`
	RateLimitRPS    int      `split_words:"true" default:"100"`
	RateLimitBurst  int      `split_words:"true" default:"10"`
	AllowedOrigins  []string `split_words:"true" default:"http://localhost:8084"`
	TrustedProxies  []string `split_words:"true" default:"127.0.0.1"`
}

// TracingConfig enables the stdout span exporter.
type TracingConfig struct {
	Enabled     bool   `split_words:"true" default:"false"`
	ServiceName string `split_words:"true" default:"inventory-dashboard"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if strings.TrimSpace(c.Workbook.Path) == "" {
		return fmt.Errorf("workbook path cannot be empty")
	}

	if c.Workbook.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes is the multipart upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return c.Workbook.MaxUploadMB << 20
}
