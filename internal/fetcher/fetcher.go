// Package fetcher downloads listing pages from the upstream marketplace.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent identifies as a desktop browser; the upstream site rejects
// default client identifiers.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0"

const maxBodySize = 10 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Kind classifies a fetch failure by whether retrying could succeed.
type Kind int

// Failure kinds.
const (
	Transient Kind = iota + 1
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// FetchError reports a failed page fetch.
type FetchError struct {
	Kind       Kind
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s failure: status %d", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a FetchError worth retrying.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Transient
}

// IsPermanent reports whether err is a FetchError that must not be retried.
func IsPermanent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Permanent
}

// Config holds the fetcher settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Rate is the maximum number of requests per second; zero disables limiting.
	Rate float64
}

// Fetcher downloads listing pages. It is safe for concurrent use.
type Fetcher struct {
	client    HTTPClient
	baseURL   string
	userAgent string
	timeout   time.Duration
	limiter   *rate.Limiter
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient, cfg Config) *Fetcher {
	f := &Fetcher{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.timeout <= 0 {
		f.timeout = 30 * time.Second
	}
	if cfg.Rate > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return f
}

// BaseURL returns the site root used to build page URLs.
func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// PageURL builds the search results URL for one page.
func (f *Fetcher) PageURL(category, listingType string, page int) string {
	q := url.Values{}
	q.Set("viewType", "listing")
	q.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s/pl/wyniki/%s/%s/cala-polska?%s",
		f.baseURL, url.PathEscape(listingType), url.PathEscape(category), q.Encode())
}

// Fetch downloads one results page and returns its HTML.
// Failures are returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, category, listingType string, page int) (string, error) {
	pageURL := f.PageURL(category, listingType, page)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", &FetchError{Kind: Transient, URL: pageURL, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{Kind: Permanent, URL: pageURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "pl-PL,pl;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Kind: Transient, URL: pageURL, Err: fmt.Errorf("http get: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			URL:        pageURL,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &FetchError{Kind: Transient, URL: pageURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return string(body), nil
}

// classifyStatus treats 4xx as permanent for the page, except 408 and 429
// which the upstream uses for throttling.
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return Transient
	case code >= 400 && code < 500:
		return Permanent
	default:
		return Transient
	}
}
