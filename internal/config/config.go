// Package config assembles the downloader configuration from defaults, an
// optional YAML file and AMADOWN_* environment variables. Command line flags
// are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aesuli/amadown2py/pkg/crawl"
	"github.com/aesuli/amadown2py/pkg/fetcher"
	"github.com/aesuli/amadown2py/pkg/logging"
	"github.com/aesuli/amadown2py/pkg/signals"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Config is the full downloader configuration.
type Config struct {
	Crawl   CrawlConfig   `yaml:"crawl"`
	Output  string        `yaml:"out"`
	Redis   RedisConfig   `yaml:"redis"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// CrawlConfig controls fetching and pagination.
type CrawlConfig struct {
	Domain         string   `yaml:"domain"`
	Force          bool     `yaml:"force"`
	MaxRetries     int      `yaml:"max_retries"`
	Timeout        Duration `yaml:"timeout"`
	Pause          float64  `yaml:"pause"`
	MaxReviews     int      `yaml:"max_reviews"`
	Captcha        bool     `yaml:"captcha"`
	MaxPageRetries int      `yaml:"max_page_retries"`
	Extractor      string   `yaml:"extractor"`
	UserAgent      string   `yaml:"user_agent"`
	BaseURL        string   `yaml:"base_url"`
}

// RedisConfig enables the Redis mirror when Addr is set.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// MetricsConfig enables the /metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the command line defaults.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			Domain:     "com",
			MaxRetries: 3,
			Timeout:    Seconds(180),
			Pause:      1.0,
			MaxReviews: -1,
			Extractor:  "regex",
			UserAgent:  fetcher.DefaultUserAgent,
		},
		Output: "amazonreviews",
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// LoadFile merges a YAML file over cfg. It returns ErrConfigNotFound when
// the file does not exist.
func LoadFile(path string, cfg *Config) error {
	fh, err := os.Open(path) //nolint:gosec // user-provided config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()

	return LoadFromReader(fh, cfg)
}

// LoadFromReader merges YAML from r over cfg. Unknown keys are rejected.
func LoadFromReader(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	return nil
}

func (c *Config) normalise() {
	c.Crawl.Domain = strings.Trim(strings.TrimSpace(c.Crawl.Domain), ".")
	c.Crawl.Extractor = strings.ToLower(strings.TrimSpace(c.Crawl.Extractor))
	c.Crawl.UserAgent = strings.TrimSpace(c.Crawl.UserAgent)
	c.Crawl.BaseURL = strings.TrimSpace(c.Crawl.BaseURL)
	c.Output = strings.TrimSpace(c.Output)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// Validate checks the configuration before a run.
func (c Config) Validate() error {
	if c.Crawl.Domain == "" {
		return errors.New("crawl.domain must be set")
	}
	if strings.ContainsAny(c.Crawl.Domain, "/: ") {
		return fmt.Errorf("crawl.domain %q is not a domain suffix", c.Crawl.Domain)
	}
	if c.Crawl.MaxRetries < 0 {
		return fmt.Errorf("crawl.max_retries must be >= 0 (got %d)", c.Crawl.MaxRetries)
	}
	if c.Crawl.Timeout.Duration < 0 {
		return fmt.Errorf("crawl.timeout must be >= 0 (got %s)", c.Crawl.Timeout.Duration)
	}
	if c.Crawl.Pause < 0 {
		return fmt.Errorf("crawl.pause must be >= 0 (got %v)", c.Crawl.Pause)
	}
	if c.Crawl.MaxPageRetries < 0 {
		return fmt.Errorf("crawl.max_page_retries must be >= 0 (got %d)", c.Crawl.MaxPageRetries)
	}
	if _, err := signals.ByName(c.Crawl.Extractor); err != nil {
		return fmt.Errorf("crawl.extractor: %w", err)
	}
	if c.Crawl.BaseURL != "" {
		u, err := url.Parse(c.Crawl.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("crawl.base_url %q must be an http(s) URL", c.Crawl.BaseURL)
		}
	}
	if c.Output == "" {
		return errors.New("out must be set")
	}
	if c.Redis.TTL.Duration < 0 {
		return fmt.Errorf("redis.ttl must be >= 0 (got %s)", c.Redis.TTL.Duration)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// CrawlerConfig converts to the controller configuration.
func (c Config) CrawlerConfig() crawl.Config {
	return crawl.Config{
		Domain:         c.Crawl.Domain,
		BaseURL:        c.Crawl.BaseURL,
		Force:          c.Crawl.Force,
		MaxRetries:     c.Crawl.MaxRetries,
		Timeout:        c.Crawl.Timeout.Duration,
		Pause:          c.Crawl.Pause,
		MaxReviews:     c.Crawl.MaxReviews,
		StrictCaptcha:  c.Crawl.Captcha,
		MaxPageRetries: c.Crawl.MaxPageRetries,
	}
}

// LoggerConfig converts to the logging configuration, writing to out.
func (c Config) LoggerConfig(out io.Writer) logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Logging.Level),
		Pretty: c.Logging.Pretty,
		Output: out,
	}
}

// RedisTTL returns the mirror key expiry.
func (c Config) RedisTTL() time.Duration {
	return c.Redis.TTL.Duration
}
