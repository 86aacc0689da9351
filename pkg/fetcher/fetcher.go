// Package fetcher performs a single paced, bounded-retry GET of a review page.
//
// Only connection-level failures are retried here. Any HTTP status that
// comes back with a response is handed to the caller untouched; deciding
// what a 503 or a 404 means is the crawl controller's job.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// DefaultUserAgent is a desktop browser agent; the site rejects obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux i686) AppleWebKit/534.30 (KHTML, like Gecko) Ubuntu/11.04 Chromium/12.0.742.91 Chrome/12.0.742.91 Safari/534.30"

// Request describes one page fetch.
type Request struct {
	URL     string
	Referer string

	// MaxRetries is the number of connection attempts. Zero or less makes
	// no request and returns the give-up outcome.
	MaxRetries int

	// Timeout bounds each attempt. Zero means no per-call deadline.
	Timeout time.Duration

	// Pause is slept after a completed read, before Fetch returns.
	Pause time.Duration
}

// Outcome is the result of a fetch.
type Outcome struct {
	// Content is the body decoded to UTF-8.
	Content string

	// HasContent is false when no read completed or the body was empty.
	HasContent bool

	// StatusCode is the HTTP status, or GiveUpStatus when attempts ran out.
	StatusCode int

	// Attempts is the number of connection attempts made.
	Attempts int
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config holds the fetcher configuration.
type Config struct {
	// UserAgent overrides DefaultUserAgent when set.
	UserAgent string

	// Sleep replaces the post-read pause; tests stub it out.
	Sleep Sleeper

	// Transport replaces the HTTP round tripper.
	Transport http.RoundTripper

	Logger zerolog.Logger
}

// HTTPFetcher fetches pages over HTTP using resty.
type HTTPFetcher struct {
	http   *resty.Client
	sleep  Sleeper
	logger zerolog.Logger
}

// New creates an HTTPFetcher.
func New(cfg Config) *HTTPFetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	client := resty.New().
		SetRetryCount(0).
		SetHeader("User-Agent", ua).
		SetLogger(restyLogger{cfg.Logger})
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}

	return &HTTPFetcher{
		http:   client,
		sleep:  sleep,
		logger: cfg.Logger,
	}
}

// Fetch downloads req.URL, retrying connection failures up to
// req.MaxRetries times. The only error it returns is ErrCancelled.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (Outcome, error) {
	attempts := max(req.MaxRetries, 0)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{StatusCode: GiveUpStatus, Attempts: attempt - 1}, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		start := time.Now()
		resp, err := f.get(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{StatusCode: GiveUpStatus, Attempts: attempt}, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
			class := classifyError(err)
			fetchAttemptsTotal.WithLabelValues(string(class)).Inc()
			f.logger.Debug().
				Err(err).
				Str("url", req.URL).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Str("error_class", string(class)).
				Msg("Connection attempt failed")
			continue
		}

		fetchAttemptsTotal.WithLabelValues("ok").Inc()
		fetchDuration.Observe(time.Since(start).Seconds())
		httpResponsesTotal.WithLabelValues(strconv.Itoa(resp.StatusCode())).Inc()

		body := resp.Body()
		out := Outcome{
			Content:    decodeBody(body, resp.Header().Get("Content-Type")),
			HasContent: len(body) > 0,
			StatusCode: resp.StatusCode(),
			Attempts:   attempt,
		}

		pauseSecondsTotal.Add(req.Pause.Seconds())
		if err := f.sleep(ctx, req.Pause); err != nil {
			return out, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return out, nil
	}

	fetchExhaustedTotal.Inc()
	f.logger.Debug().
		Str("url", req.URL).
		Int("attempts", attempts).
		Msg("Connection attempts exhausted")

	return Outcome{StatusCode: GiveUpStatus, Attempts: attempts}, nil
}

// get issues one GET bounded by req.Timeout. resty reads the whole body
// before returning, so cancelling the attempt context afterwards is safe.
func (f *HTTPFetcher) get(ctx context.Context, req Request) (*resty.Response, error) {
	attemptCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	return f.http.R().
		SetContext(attemptCtx).
		SetHeader("Referer", req.Referer).
		Get(req.URL)
}

// decodeBody converts body to UTF-8 using the charset announced by the
// Content-Type header or the document itself. Without a declaration a body
// that is valid UTF-8 is kept as is.
func decodeBody(body []byte, contentType string) string {
	if len(body) == 0 {
		return ""
	}
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && utf8.Valid(body) {
		return string(body)
	}
	if name == "utf-8" || enc == nil {
		return strings.ToValidUTF8(string(body), string(utf8.RuneError))
	}
	return decodeWith(enc, body)
}

func decodeWith(enc encoding.Encoding, body []byte) string {
	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return strings.ToValidUTF8(string(body), string(utf8.RuneError))
	}
	return string(out)
}

// restyLogger routes resty's internal messages into zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Debug().Str("source", "resty").Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Debug().Str("source", "resty").Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Str("source", "resty").Msgf(format, v...)
}
