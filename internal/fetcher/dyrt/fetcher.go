// Package dyrt fetches campground search result pages from The Dyrt's
// location search API.
package dyrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/campground"
	"github.com/JakeFAU/campground-crawler/internal/crawler"
	"github.com/JakeFAU/campground-crawler/internal/geo"
	"github.com/JakeFAU/campground-crawler/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Upstream defaults.
const (
	DefaultBaseURL   = "https://thedyrt.com/api/v6/locations/search-results"
	DefaultSiteURL   = "https://thedyrt.com/camping"
	DefaultReferer   = "https://thedyrt.com/search"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultPageSize  = 500
	MaxPageSize      = 500

	maxBodyBytes = 32 << 20
)

// DefaultSortOptions are the orderings a request picks from at random. The
// choice only varies the request shape; it carries no meaning for the crawl.
var DefaultSortOptions = []string{
	"recommended",
	"name-raw",
	"-rating,-reviews-count",
	"-reviews-count",
	"price-low-cents,price-high-cents",
	"-price-high-cents,-price-low-cents",
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// RateLimiter gates outgoing requests.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// RetryPolicy bounds attempts per page.
type RetryPolicy interface {
	ShouldRetry(err error, attempts int) bool
	Backoff(attempt int) time.Duration
	MaxAttempts() int
}

// Config configures a Fetcher.
type Config struct {
	BaseURL     string
	SiteURL     string
	UserAgent   string
	Referer     string
	PageSize    int
	Timeout     time.Duration
	SortOptions []string
	// ResponseDelay is the politeness pause taken after every successful response.
	ResponseDelay crawler.Jitter
}

// Fetcher implements crawler.PageFetcher against the search endpoint.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter RateLimiter
	retry   RetryPolicy
	pauser  crawler.Pauser
	logger  *zap.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRateLimiter gates every attempt through l.
func WithRateLimiter(l RateLimiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithRetryPolicy replaces the default exponential policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(f *Fetcher) {
		if p != nil {
			f.retry = p
		}
	}
}

// WithPauser replaces the timer pauser used for backoff and politeness.
func WithPauser(p crawler.Pauser) Option {
	return func(f *Fetcher) {
		if p != nil {
			f.pauser = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New builds a Fetcher, filling unset config with defaults.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = DefaultSiteURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageSize > MaxPageSize {
		return nil, fmt.Errorf("page size %d exceeds upstream maximum %d", cfg.PageSize, MaxPageSize)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.SortOptions) == 0 {
		cfg.SortOptions = DefaultSortOptions
	}

	f := &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry: crawler.NewExponentialRetryPolicy(
			crawler.DefaultMaxAttempts, crawler.DefaultBaseDelay, crawler.DefaultMaxJitter,
		),
		pauser: crawler.TimerPauser{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// PageSize is the number of records requested per page.
func (f *Fetcher) PageSize() int {
	return f.cfg.PageSize
}

// FetchPage requests one page for bound. Failed attempts are retried per the
// retry policy; once exhausted the page is reported empty. Only context
// errors are returned.
func (f *Fetcher) FetchPage(ctx context.Context, bound orb.Bound, page int) (crawler.Page, error) {
	bbox := geo.FormatBBox(bound)
	for attempt := 0; ; attempt++ {
		items, err := f.fetchOnce(ctx, bbox, page)
		if err == nil {
			metrics.ObserveFetch(metrics.FetchSuccess)
			result := f.toPage(items)
			f.pauser.Pause(ctx, f.cfg.ResponseDelay.Draw())
			if ctxErr := ctx.Err(); ctxErr != nil {
				return crawler.Page{}, ctxErr
			}
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.Page{}, ctxErr
		}

		throttled := IsStatus(err, http.StatusTooManyRequests)
		if throttled {
			metrics.ObserveFetch(metrics.FetchThrottled)
		} else {
			metrics.ObserveFetch(metrics.FetchError)
		}
		if !f.retry.ShouldRetry(err, attempt+1) {
			metrics.ObserveFetch(metrics.FetchExhausted)
			f.logger.Error("Giving up on page",
				zap.String("bbox", bbox),
				zap.Int("page", page),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return crawler.Page{Signal: crawler.SignalEmpty}, nil
		}

		wait := f.retry.Backoff(attempt)
		metrics.ObserveFetchRetry()
		msg := "Page request failed, retrying"
		if throttled {
			msg = "Upstream throttled page request, backing off"
		}
		f.logger.Warn(msg,
			zap.String("bbox", bbox),
			zap.Int("page", page),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", f.retry.MaxAttempts()),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		f.pauser.Pause(ctx, wait)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.Page{}, ctxErr
		}
	}
}

// toPage normalizes items and derives the continuation signal: no items is
// EMPTY, a short page is LAST, a full page is MORE.
func (f *Fetcher) toPage(items []searchItem) crawler.Page {
	if len(items) == 0 {
		return crawler.Page{Signal: crawler.SignalEmpty}
	}
	records := make([]campground.RawRecord, len(items))
	for i, item := range items {
		records[i] = campground.NewRawRecord(item.Attributes, f.cfg.SiteURL)
	}
	metrics.ObserveRecords(len(records))
	signal := crawler.SignalMore
	if len(records) < f.cfg.PageSize {
		signal = crawler.SignalLast
	}
	return crawler.Page{Records: records, Signal: signal}
}

type searchResponse struct {
	Data []searchItem `json:"data"`
}

type searchItem struct {
	Attributes map[string]any `json:"attributes"`
}

func (f *Fetcher) fetchOnce(ctx context.Context, bbox string, page int) ([]searchItem, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.requestURL(bbox, page), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", f.cfg.Referer)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page %d: %w", page, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("Failed to close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return payload.Data, nil
}

func (f *Fetcher) requestURL(bbox string, page int) string {
	params := url.Values{}
	params.Set("filter[search][bbox]", bbox)
	params.Set("page[number]", strconv.Itoa(page))
	params.Set("page[size]", strconv.Itoa(f.cfg.PageSize))
	params.Set("sort", f.cfg.SortOptions[rand.IntN(len(f.cfg.SortOptions))])
	return f.cfg.BaseURL + "?" + params.Encode()
}

// IsStatus reports whether err carries an upstream status code equal to code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
