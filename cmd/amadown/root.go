package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aesuli/amadown2py/internal/config"
	"github.com/aesuli/amadown2py/pkg/artifact"
	"github.com/aesuli/amadown2py/pkg/crawl"
	"github.com/aesuli/amadown2py/pkg/fetcher"
	"github.com/aesuli/amadown2py/pkg/logging"
	"github.com/aesuli/amadown2py/pkg/metrics"
	"github.com/aesuli/amadown2py/pkg/signals"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// NewRootCmd creates the amadown command.
func NewRootCmd() *cobra.Command {
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "amadown [flags] ID...",
		Short: "Download the review pages of products",
		Long: `amadown downloads every review listing page of the given product
identifiers, newest reviews first, and saves each page as
<out>/<domain>/<id>/<id>_<page>.html.

Pages already on disk are skipped on later runs, except the first page,
which is always fetched again to learn the current page count. Use --force
to download everything again.

Settings are read from defaults, then --config, then .env and AMADOWN_*
environment variables, then command line flags.`,
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	f := cmd.Flags()
	f.StringP("domain", "d", def.Crawl.Domain, "site locale, e.g. com, co.uk, de")
	f.BoolP("force", "f", def.Crawl.Force, "download pages that are already on disk")
	f.IntP("maxretries", "r", def.Crawl.MaxRetries, "connection attempts per request")
	f.IntP("timeout", "t", int(def.Crawl.Timeout.Seconds()), "seconds per HTTP request")
	f.Float64P("pause", "p", def.Crawl.Pause, "initial seconds to wait after each request")
	f.IntP("maxreviews", "m", def.Crawl.MaxReviews, "stop after about this many reviews per product (<=0: all)")
	f.StringP("out", "o", def.Output, "output directory")
	f.BoolP("captcha", "c", def.Crawl.Captcha, "retry every challenge page instead of only the first")
	f.Int("max-page-retries", def.Crawl.MaxPageRetries, "give up a product after this many retries of one page (0: never)")
	f.String("extractor", def.Crawl.Extractor, "content signal extractor: regex or dom")
	f.String("user-agent", def.Crawl.UserAgent, "User-Agent header")
	f.String("base-url", def.Crawl.BaseURL, "site root overriding http://www.amazon.<domain>")
	f.String("redis-addr", def.Redis.Addr, "mirror captured pages to this Redis server")
	f.Duration("redis-ttl", def.Redis.TTL.Duration, "expiry of mirrored pages (0: none)")
	f.String("metrics-addr", def.Metrics.Addr, "serve Prometheus metrics on this address")
	f.String("config", "", "YAML configuration file")
	f.String("log-level", def.Logging.Level, "log level: debug, info, warn, error")
	f.Bool("log-pretty", def.Logging.Pretty, "human-readable console logs instead of JSON")

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := logging.Setup(cfg.LoggerConfig(cmd.ErrOrStderr()))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn().Msg("Received shutdown signal, cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return run(ctx, cfg, args, logger)
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set explicitly.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()

	path, err := flags.GetString("config")
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return cfg, fmt.Errorf("%s: %w", path, err)
			}
			return cfg, err
		}
	}

	if err := config.LoadDotEnv(); err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := applyFlags(flags, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var errs []error
	flags.Visit(func(fl *pflag.Flag) {
		var err error
		switch fl.Name {
		case "domain":
			cfg.Crawl.Domain, err = flags.GetString(fl.Name)
		case "force":
			cfg.Crawl.Force, err = flags.GetBool(fl.Name)
		case "maxretries":
			cfg.Crawl.MaxRetries, err = flags.GetInt(fl.Name)
		case "timeout":
			var secs int
			secs, err = flags.GetInt(fl.Name)
			cfg.Crawl.Timeout = config.Seconds(secs)
		case "pause":
			cfg.Crawl.Pause, err = flags.GetFloat64(fl.Name)
		case "maxreviews":
			cfg.Crawl.MaxReviews, err = flags.GetInt(fl.Name)
		case "out":
			cfg.Output, err = flags.GetString(fl.Name)
		case "captcha":
			cfg.Crawl.Captcha, err = flags.GetBool(fl.Name)
		case "max-page-retries":
			cfg.Crawl.MaxPageRetries, err = flags.GetInt(fl.Name)
		case "extractor":
			cfg.Crawl.Extractor, err = flags.GetString(fl.Name)
		case "user-agent":
			cfg.Crawl.UserAgent, err = flags.GetString(fl.Name)
		case "base-url":
			cfg.Crawl.BaseURL, err = flags.GetString(fl.Name)
		case "redis-addr":
			cfg.Redis.Addr, err = flags.GetString(fl.Name)
		case "redis-ttl":
			var ttl time.Duration
			ttl, err = flags.GetDuration(fl.Name)
			cfg.Redis.TTL = config.DurationFrom(ttl)
		case "metrics-addr":
			cfg.Metrics.Addr, err = flags.GetString(fl.Name)
		case "log-level":
			cfg.Logging.Level, err = flags.GetString(fl.Name)
		case "log-pretty":
			cfg.Logging.Pretty, err = flags.GetBool(fl.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", fl.Name, err))
		}
	})
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg config.Config, ids []string, logger zerolog.Logger) error {
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr, logger.With().Str("component", "metrics").Logger())
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	extractor, err := signals.ByName(cfg.Crawl.Extractor)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	f := fetcher.New(fetcher.Config{
		UserAgent: cfg.Crawl.UserAgent,
		Logger:    logger.With().Str("component", "fetcher").Logger(),
	})

	ctrl, err := crawl.New(f, store, extractor, cfg.CrawlerConfig(), logger.With().Str("component", "crawl").Logger())
	if err != nil {
		return err
	}

	logger.Info().
		Strs("ids", ids).
		Str("domain", cfg.Crawl.Domain).
		Str("out", cfg.Output).
		Msg("Starting download")

	results, err := ctrl.RunAll(ctx, ids)
	for _, res := range results {
		logger.Info().
			Str("product_id", res.Target.ID).
			Str("stop_reason", string(res.StopReason)).
			Int("captured", res.Captured).
			Int("skipped", res.Skipped).
			Int("pages", res.LastKnownPage).
			Msg("Product done")
	}
	return err
}

// openStore returns the disk store, teed into a Redis mirror when one is
// configured.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (artifact.Store, func(), error) {
	files := artifact.NewFileStore(cfg.Output)
	if cfg.Redis.Addr == "" {
		return files, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.RedisTTL()).Msg("Mirroring pages to Redis")

	mirror := artifact.NewRedisMirror(client, cfg.RedisTTL())
	tee := artifact.NewTee(files, logger.With().Str("component", "artifact").Logger(), mirror)
	return tee, func() { client.Close() }, nil
}
