// Package sheriff scrapes Oregon sheriff's sale listings, one county page
// at a time.
package sheriff

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auction-cli/internal/fetcher"
	"github.com/sells-group/auction-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://oregonsheriffssales.org"

	// DefaultInterval is the minimum gap between page loads.
	DefaultInterval = 2 * time.Second

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// minPageBytes is the smallest body treated as a real county page.
	minPageBytes = 500
)

// ErrEmptyPage is returned when a county page is blank or a bare stub.
var ErrEmptyPage = eris.New("sheriff: empty county page")

// countyRegion maps lowercase county names to catalog regions.
var countyRegion = map[string]string{
	"deschutes":  "Central Oregon",
	"jefferson":  "Central Oregon",
	"crook":      "Central Oregon",
	"union":      "Central Oregon",
	"multnomah":  "Portland Metro",
	"clackamas":  "Portland Metro",
	"washington": "Portland Metro",
	"yamhill":    "Portland Metro",
	"marion":     "Salem / Mid-Valley",
	"polk":       "Salem / Mid-Valley",
	"benton":     "Salem / Mid-Valley",
	"linn":       "Salem / Mid-Valley",
	"lane":       "Eugene / Lane County",
	"lincoln":    "Eugene / Lane County",
	"jackson":    "Southern Oregon",
	"josephine":  "Southern Oregon",
	"douglas":    "Southern Oregon",
	"klamath":    "Southern Oregon",
	"coos":       "Southern Oregon",
	"curry":      "Southern Oregon",
}

// RegionForCounty returns the catalog region of an Oregon county, or "".
func RegionForCounty(county string) string {
	return countyRegion[strings.ToLower(strings.TrimSpace(county))]
}

// CountiesForRegion returns the counties that make up a region, sorted.
func CountiesForRegion(region string) []string {
	var out []string
	for county, r := range countyRegion {
		if strings.EqualFold(r, region) {
			out = append(out, county)
		}
	}
	sort.Strings(out)
	return out
}

// Client defines the sheriff's sale operations.
type Client interface {
	// County returns the scheduled sales listed for one county.
	County(ctx context.Context, county string) ([]Listing, error)
}

// Option configures the sheriff client.
type Option func(*httpClient)

// WithBaseURL sets the site root (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.opts.Client = hc }
}

// WithLimiter replaces the default 2s limiter.
func WithLimiter(l *resilience.Limiter) Option {
	return func(c *httpClient) { c.opts.Limiter = l }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.opts.Retry = cfg }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.opts.Timeout = d }
}

type httpClient struct {
	baseURL string
	opts    fetcher.HTTPOptions
	http    *fetcher.HTTPFetcher
}

// NewClient creates a sheriff's sale scraper.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		opts: fetcher.HTTPOptions{
			Source:    "sheriff",
			UserAgent: browserUserAgent,
			Timeout:   20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.opts.Limiter == nil {
		c.opts.Limiter = resilience.NewLimiter("sheriff", DefaultInterval)
	}
	c.http = fetcher.NewHTTPFetcher(c.opts)
	return c
}

func (c *httpClient) County(ctx context.Context, county string) ([]Listing, error) {
	slug := strings.ToLower(strings.TrimSpace(county))
	body, err := c.http.Do(ctx, fetcher.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/county/" + slug + "/",
		Header: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,*/*"},
			"Accept-Language": {"en-US,en;q=0.9"},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "sheriff: county %s", slug)
	}
	if len(bytes.TrimSpace(body)) < minPageBytes {
		return nil, ErrEmptyPage
	}

	listings, err := ParseCountyPage(bytes.NewReader(body), slug)
	if err != nil {
		return nil, eris.Wrapf(err, "sheriff: county %s", slug)
	}
	return listings, nil
}
