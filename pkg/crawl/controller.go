package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aesuli/amadown2py/pkg/artifact"
	"github.com/aesuli/amadown2py/pkg/fetcher"
	"github.com/aesuli/amadown2py/pkg/signals"
)

// PageFetcher downloads one page. *fetcher.HTTPFetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (fetcher.Outcome, error)
}

// Config holds the controller configuration.
type Config struct {
	// Domain is the site locale suffix, e.g. "com" or "co.uk".
	Domain string

	// BaseURL overrides SiteURL(Domain).
	BaseURL string

	// Force refetches pages that already have an artifact.
	Force bool

	// MaxRetries is passed to the fetcher as its attempt count.
	MaxRetries int

	// Timeout bounds each connection attempt.
	Timeout time.Duration

	// Pause is the initial pacing delay in seconds.
	Pause float64

	// MaxReviews stops a target once page*ReviewsPerPage reaches it.
	// Zero or negative means no budget.
	MaxReviews int

	// StrictCaptcha retries every challenge page, not only the first.
	StrictCaptcha bool

	// MaxPageRetries caps consecutive retries of one page. Zero means no cap.
	MaxPageRetries int
}

// DefaultConfig returns the command line defaults.
func DefaultConfig() Config {
	return Config{
		Domain:     "com",
		MaxRetries: 3,
		Timeout:    180 * time.Second,
		Pause:      1.0,
		MaxReviews: -1,
	}
}

// Result summarizes one target.
type Result struct {
	Target Target

	// Captured is the number of artifacts written.
	Captured int

	// Skipped is the number of pages already on disk.
	Skipped int

	// Retries is the number of same-page retries.
	Retries int

	LastKnownPage int
	FinalPause    float64

	// LastStatus is the status of the fetch that stopped the target.
	LastStatus int

	StopReason StopReason

	// Err is set for StopStoreError and StopCancelled.
	Err error
}

// Controller runs the pagination loop.
type Controller struct {
	fetcher   PageFetcher
	store     artifact.Store
	extractor signals.Extractor
	cfg       Config
	logger    zerolog.Logger
}

// New creates a Controller.
func New(f PageFetcher, store artifact.Store, extractor signals.Extractor, cfg Config, logger zerolog.Logger) (*Controller, error) {
	if f == nil {
		return nil, errors.New("crawl: fetcher is required")
	}
	if store == nil {
		return nil, errors.New("crawl: store is required")
	}
	if extractor == nil {
		extractor = signals.NewRegex()
	}
	if strings.TrimSpace(cfg.Domain) == "" {
		return nil, errors.New("crawl: domain is required")
	}
	if cfg.Pause < 0 {
		return nil, fmt.Errorf("crawl: negative pause %v", cfg.Pause)
	}

	return &Controller{
		fetcher:   f,
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// PageURL returns the URL of a page of id.
func (c *Controller) PageURL(id string, page int) string {
	base := c.cfg.BaseURL
	if base == "" {
		base = SiteURL(c.cfg.Domain)
	}
	return PageURL(base, id, page)
}

// RunAll crawls ids one after another. A target that stops on a fetch
// failure does not prevent the others; artifact errors are collected and
// returned joined. Cancellation stops the batch.
func (c *Controller) RunAll(ctx context.Context, ids []string) ([]Result, error) {
	if len(ids) == 0 {
		return nil, ErrNoTargets
	}

	results := make([]Result, 0, len(ids))
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
			break
		}

		res := c.Run(ctx, id)
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, res.Err))
		}
		if res.StopReason == StopCancelled {
			break
		}
	}

	return results, errors.Join(errs...)
}

// Run crawls every review page of one product identifier.
func (c *Controller) Run(ctx context.Context, id string) Result {
	target := Target{ID: id, Domain: c.cfg.Domain}
	state := NewCrawlState(target, c.cfg.Pause, c.PageURL(id, 1))
	res := Result{Target: target}
	logger := c.logger.With().Str("domain", target.Domain).Str("product_id", id).Logger()

	pauseSeconds.Set(state.PauseSeconds)

	for state.HasMore() {
		if err := ctx.Err(); err != nil {
			return c.finish(logger, state, res, StopCancelled, fmt.Errorf("%w: %w", ErrCancelled, err))
		}

		page := state.CurrentPage
		key := artifact.Key{Domain: target.Domain, ID: id, Page: page}

		if page > 1 && !c.cfg.Force {
			exists, err := c.store.Exists(ctx, key)
			if err != nil {
				return c.finish(logger, state, res, StopStoreError, err)
			}
			if exists {
				res.Skipped++
				pagesSkippedTotal.Inc()
				logger.Debug().Int("page", page).Msg("Already got page")
				c.observeArtifact(ctx, logger, state, key)
				if c.budgetReached(page) {
					return c.finish(logger, state, res, StopBudget, nil)
				}
				state.Skip()
				continue
			}
		}

		pageURL := c.PageURL(id, page)
		logger.Info().Str("url", pageURL).Int("page", page).Msg("Fetching page")

		out, err := c.fetcher.Fetch(ctx, fetcher.Request{
			URL:        pageURL,
			Referer:    state.RefererURL,
			MaxRetries: c.cfg.MaxRetries,
			Timeout:    c.cfg.Timeout,
			Pause:      state.Pause(),
		})
		if err != nil {
			if errors.Is(err, fetcher.ErrCancelled) {
				return c.finish(logger, state, res, StopCancelled, fmt.Errorf("%w: %w", ErrCancelled, err))
			}
			return c.finish(logger, state, res, StopFetchFailed, nil)
		}

		var sig signals.Page
		if out.HasContent && out.StatusCode == 200 {
			sig = signals.Inspect(c.extractor, out.Content)
		}
		d := Decide(Observation{StatusCode: out.StatusCode, HasContent: out.HasContent, Signals: sig}, c.cfg.StrictCaptcha, page == 1)

		state.PauseSeconds = d.Pause.Apply(state.PauseSeconds)
		pauseSeconds.Set(state.PauseSeconds)

		switch d.Action {
		case RetrySamePage:
			state.Retries++
			res.Retries++
			pageRetriesTotal.WithLabelValues(d.Reason).Inc()
			if d.Reason == ReasonChallenge {
				challengesTotal.WithLabelValues("retry").Inc()
			}
			logger.Warn().
				Int("page", page).
				Int("status", out.StatusCode).
				Str("reason", d.Reason).
				Float64("pause_seconds", state.PauseSeconds).
				Int("retry", state.Retries).
				Msg("Retrying page")
			if c.cfg.MaxPageRetries > 0 && state.Retries > c.cfg.MaxPageRetries {
				res.LastStatus = out.StatusCode
				return c.finish(logger, state, res, StopRetryBudget, nil)
			}
			continue

		case StopTarget:
			res.LastStatus = out.StatusCode
			logger.Info().
				Int("page", page).
				Int("status", out.StatusCode).
				Bool("has_content", out.HasContent).
				Str("url", pageURL).
				Msg("Done downloading")
			return c.finish(logger, state, res, StopFetchFailed, nil)
		}

		if sig.Challenge {
			challengesTotal.WithLabelValues("tolerate").Inc()
			logger.Warn().
				Int("page", page).
				Float64("pause_seconds", state.PauseSeconds).
				Msg("Challenge page kept")
		}
		if sig.HasMaxPage {
			state.Observe(sig.MaxPage)
		}

		if err := c.store.Save(ctx, key, out.Content); err != nil {
			return c.finish(logger, state, res, StopStoreError, err)
		}
		res.Captured++
		pagesCapturedTotal.Inc()
		logger.Info().
			Int("page", page).
			Int("last_known_page", state.LastKnownPage).
			Msg("Got page")

		state.Relieve()
		pauseSeconds.Set(state.PauseSeconds)

		if c.budgetReached(page) {
			state.Advance(pageURL)
			return c.finish(logger, state, res, StopBudget, nil)
		}
		state.Advance(pageURL)
	}

	return c.finish(logger, state, res, StopCompleted, nil)
}

// observeArtifact reads paging markers from a skipped page so the crawl can
// continue past it.
func (c *Controller) observeArtifact(ctx context.Context, logger zerolog.Logger, state *CrawlState, key artifact.Key) {
	loader, ok := c.store.(artifact.Loader)
	if !ok {
		return
	}
	content, err := loader.Load(ctx, key)
	if err != nil {
		logger.Debug().Err(err).Int("page", key.Page).Msg("Cannot read existing artifact")
		return
	}
	if p, ok := c.extractor.MaxPageIndex(content); ok {
		state.Observe(p)
	}
}

func (c *Controller) budgetReached(page int) bool {
	return c.cfg.MaxReviews > 0 && page*ReviewsPerPage >= c.cfg.MaxReviews
}

func (c *Controller) finish(logger zerolog.Logger, state *CrawlState, res Result, reason StopReason, err error) Result {
	res.StopReason = reason
	res.Err = err
	res.LastKnownPage = state.LastKnownPage
	res.FinalPause = state.PauseSeconds
	targetsTotal.WithLabelValues(string(reason)).Inc()

	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Err(err)
	}
	ev.Str("stop_reason", string(reason)).
		Int("captured", res.Captured).
		Int("skipped", res.Skipped).
		Int("retries", res.Retries).
		Int("last_known_page", res.LastKnownPage).
		Msg("Target finished")
	return res
}
