// Package config loads and validates process configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"sync"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Deployment modes accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds every setting the process reads from the environment.
type Config struct {
	Env         string `env:"APP_ENV,default=production"`
	ServiceName string `env:"AWS_LAMBDA_FUNCTION_NAME,default=bookstore"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT"`

	CORSOrigins    []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS   int      `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST,default=0"`

	// Local development server only.
	HTTPAddr      string `env:"HTTP_ADDR,default=:8080"`
	SchedulesFile string `env:"SCHEDULES_FILE,default=config/schedules.yaml"`
}

var cached = sync.OnceValues(Load)

// Get returns the process configuration, loading and validating it on first
// access. The outcome, including a validation failure, is cached for the
// lifetime of the process.
func Get() (*Config, error) {
	return cached()
}

// MustGet is Get for entry points that cannot run without configuration.
func MustGet() *Config {
	cfg, err := Get()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads .env (when present) and the environment and validates the
// result. It does not cache; most callers want Get.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalises and checks the decoded values.
func (c *Config) Validate() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}

	if _, err := parseDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	switch c.LogFormat {
	case "":
		c.LogFormat = "json"
		if c.IsDevelopment() {
			c.LogFormat = "text"
		}
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}

	origins := c.CORSOrigins[:0]
	for _, origin := range c.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.CORSOrigins = origins

	return nil
}

// IsDevelopment reports whether verbose, human-readable logging is enabled.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// DatabaseHost returns the host name of DATABASE_URL, for logging.
func (c *Config) DatabaseHost() string {
	u, err := parseDatabaseURL(c.DatabaseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func parseDatabaseURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("DATABASE_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("DATABASE_URL must be a URL with scheme and host")
	}
	return u, nil
}
