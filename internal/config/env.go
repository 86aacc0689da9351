package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "AMADOWN_"

// DefaultEnvFile is loaded by LoadDotEnv when no file is given.
const DefaultEnvFile = ".env"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads variables from files into the process environment.
// Variables already set are kept. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with AMADOWN_* variables from the process
// environment.
func ApplyEnv(cfg *Config) error {
	return ApplyEnvFrom(os.LookupEnv, cfg)
}

// ApplyEnvFrom overrides cfg with AMADOWN_* variables returned by lookup.
func ApplyEnvFrom(lookup LookupFunc, cfg *Config) error {
	e := envReader{lookup: lookup}

	e.str("DOMAIN", &cfg.Crawl.Domain)
	e.boolean("FORCE", &cfg.Crawl.Force)
	e.integer("MAX_RETRIES", &cfg.Crawl.MaxRetries)
	e.duration("TIMEOUT", &cfg.Crawl.Timeout)
	e.float("PAUSE", &cfg.Crawl.Pause)
	e.integer("MAX_REVIEWS", &cfg.Crawl.MaxReviews)
	e.boolean("CAPTCHA", &cfg.Crawl.Captcha)
	e.integer("MAX_PAGE_RETRIES", &cfg.Crawl.MaxPageRetries)
	e.str("EXTRACTOR", &cfg.Crawl.Extractor)
	e.str("USER_AGENT", &cfg.Crawl.UserAgent)
	e.str("BASE_URL", &cfg.Crawl.BaseURL)
	e.str("OUT", &cfg.Output)
	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)
	e.integer("REDIS_DB", &cfg.Redis.DB)
	e.duration("REDIS_TTL", &cfg.Redis.TTL)
	e.str("METRICS_ADDR", &cfg.Metrics.Addr)
	e.str("LOG_LEVEL", &cfg.Logging.Level)
	e.boolean("LOG_PRETTY", &cfg.Logging.Pretty)

	if len(e.errs) > 0 {
		return errors.Join(e.errs...)
	}
	cfg.normalise()
	return nil
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, value, err))
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) float(name string, dst *float64) {
	v, ok := e.get(name)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = f
}

func (e *envReader) duration(name string, dst *Duration) {
	v, ok := e.get(name)
	if !ok || v == "" {
		return
	}
	d, err := ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	dst.Duration = d
}
