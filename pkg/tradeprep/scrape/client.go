package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
)

// DefaultBaseURL is the publications library listing.
const DefaultBaseURL = "https://www.usitc.gov/commission_publications_library"

const challengeMarker = "Challenge Validation"

// Config controls listing requests.
type Config struct {
	BaseURL string
	// Params are added to every listing request; the page number is set
	// per request.
	Params  map[string]string
	Headers map[string]string
	// CacheDir holds fetched pages as page_NNNN.html. Empty disables the
	// cache.
	CacheDir     string
	MaxAttempts  int
	RequestDelay time.Duration
	RetryDelay   time.Duration
	Timeout      time.Duration
}

// DefaultConfig returns the listing settings, sorted by publication date
// ascending, with browser-like headers.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Params: map[string]string{
			"order": "field_pub_arch_pub_date_1",
			"sort":  "asc",
		},
		Headers: map[string]string{
			"User-Agent":                "Mozilla/5.0 (X11; Linux x86_64; rv:91.0) Gecko/20100101 Firefox/91.0",
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.5",
			"Upgrade-Insecure-Requests": "1",
		},
		MaxAttempts:  5,
		RequestDelay: time.Second,
		RetryDelay:   3 * time.Second,
		Timeout:      15 * time.Second,
	}
}

// Client fetches and parses listing pages.
type Client struct {
	cfg    Config
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. A nil httpClient uses one with cfg.Timeout;
// a nil logger discards logs.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", internalerr.ErrInvalidConfig, err)
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create page cache: %w", err)
		}
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = def.Timeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, base: base, http: httpClient, logger: logger, sleep: sleepCtx}, nil
}

// TotalPages returns the zero-based index of the last listing page.
func (c *Client) TotalPages(ctx context.Context) (int, error) {
	body, err := c.fetch(ctx, -1)
	if err != nil {
		return 0, err
	}
	return ParseTotalPages(body)
}

// FetchPage returns the HTML of a listing page, from the page cache when
// present. Only successful responses are cached.
func (c *Client) FetchPage(ctx context.Context, page int) (string, error) {
	if body, ok := c.cached(page); ok {
		c.logger.Debug("page from cache", zap.Int("page", page))
		return body, nil
	}
	body, err := c.fetch(ctx, page)
	if err != nil {
		return "", err
	}
	c.store(page, body)
	return body, nil
}

// Scrape collects publications from pages 0 through the last page. A
// positive maxPages limits how many pages are read. Pages that cannot be
// fetched are logged and contribute no records.
func (c *Client) Scrape(ctx context.Context, maxPages int) ([]Publication, error) {
	last, err := c.TotalPages(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("could not read page count, scraping first page only", zap.Error(err))
		last = 0
	}
	if maxPages > 0 && maxPages-1 < last {
		last = maxPages - 1
	}
	c.logger.Info("scraping listing", zap.Int("pages", last+1))

	var pubs []Publication
	for page := 0; page <= last; page++ {
		body, err := c.FetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return pubs, ctx.Err()
			}
			c.logger.Warn("page skipped", zap.Int("page", page), zap.Error(err))
			continue
		}
		found, err := ParsePublications(body, c.base)
		if err != nil {
			c.logger.Warn("page unparsable", zap.Int("page", page), zap.Error(err))
			continue
		}
		c.logger.Debug("page scraped", zap.Int("page", page), zap.Int("records", len(found)))
		pubs = append(pubs, found...)
	}
	return pubs, nil
}

// fetch requests a page, retrying Cloudflare challenges, 403s and network
// errors with exponential delay. A negative page omits the page parameter.
func (c *Client) fetch(ctx context.Context, page int) (string, error) {
	var last error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if err := c.sleep(ctx, c.delay(attempt)); err != nil {
			return "", err
		}
		body, retry, err := c.get(ctx, page)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retry {
			return "", err
		}
		last = err
		c.logger.Debug("listing request failed",
			zap.Int("page", page), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return "", fmt.Errorf("page %d after %d attempts: %w", page, c.cfg.MaxAttempts, last)
}

// delay is RequestDelay before the first attempt and
// RetryDelay * 2^(attempt-1) before later ones.
func (c *Client) delay(attempt int) time.Duration {
	if attempt == 0 {
		return c.cfg.RequestDelay
	}
	return c.cfg.RetryDelay * time.Duration(1<<(attempt-1))
}

func (c *Client) get(ctx context.Context, page int) (string, bool, error) {
	u := *c.base
	q := u.Query()
	for k, v := range c.cfg.Params {
		q.Set(k, v)
	}
	if page >= 0 {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", false, err
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", internalerr.ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("%w: read body: %v", internalerr.ErrTransient, err)
	}
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", true, fmt.Errorf("%w: http 403", internalerr.ErrTransient)
	case resp.StatusCode >= 400:
		return "", false, fmt.Errorf("%w: http %d", internalerr.ErrFatal, resp.StatusCode)
	}
	body := string(data)
	if strings.Contains(body, challengeMarker) {
		return "", true, fmt.Errorf("%w: cloudflare challenge", internalerr.ErrTransient)
	}
	return body, false, nil
}

func (c *Client) pagePath(page int) string {
	return filepath.Join(c.cfg.CacheDir, fmt.Sprintf("page_%04d.html", page))
}

func (c *Client) cached(page int) (string, bool) {
	if c.cfg.CacheDir == "" {
		return "", false
	}
	data, err := os.ReadFile(c.pagePath(page))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("page cache unreadable", zap.Int("page", page), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *Client) store(page int, body string) {
	if c.cfg.CacheDir == "" {
		return
	}
	if err := os.WriteFile(c.pagePath(page), []byte(body), 0o644); err != nil {
		c.logger.Warn("page cache write failed", zap.Int("page", page), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SubjectCount is the number of publications with one subject.
type SubjectCount struct {
	Subject string
	Count   int
}

// TopSubjects returns the n most frequent subjects, ties broken by name.
func TopSubjects(pubs []Publication, n int) []SubjectCount {
	counts := make(map[string]int)
	for _, p := range pubs {
		counts[p.Subject]++
	}
	out := make([]SubjectCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, SubjectCount{Subject: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Subject < out[j].Subject
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
