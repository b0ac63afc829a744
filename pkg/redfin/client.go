// Package redfin downloads Redfin's public listing CSV export and keeps the
// foreclosure and bank-owned rows.
package redfin

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auction-cli/internal/fetcher"
	"github.com/sells-group/auction-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://www.redfin.com/stingray/api/gis-csv"

	// DefaultInterval is the minimum gap between downloads.
	DefaultInterval = 3 * time.Second

	defaultMaxResults = 350
	browserUserAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Sale-type filters understood by the export.
	saleTypeForeclosure = "2"
	saleTypeAll         = "1,2,3,5,6,7"

	// regionTypeZip selects a zip code region.
	regionTypeZip = "2"

	mlsNotice = `"In accordance`
)

var (
	// ErrBlocked is returned when the export answers with an HTML page,
	// which is how rate limiting and bot checks surface.
	ErrBlocked = eris.New("redfin: html response instead of csv")
	// ErrEmpty is returned for a blank response body.
	ErrEmpty = eris.New("redfin: empty response")
)

// Client defines the Redfin operations.
type Client interface {
	// Foreclosures returns foreclosure listings for a zip code. It asks for
	// foreclosures directly and, when that yields nothing, downloads every
	// sale type and filters locally.
	Foreclosures(ctx context.Context, zip string) ([]Listing, error)
}

// Option configures the Redfin client.
type Option func(*httpClient)

// WithBaseURL sets the export URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.opts.Client = hc }
}

// WithLimiter replaces the default 3s limiter.
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

// WithMaxResults caps the rows requested per download.
func WithMaxResults(n int) Option {
	return func(c *httpClient) { c.maxResults = n }
}

type httpClient struct {
	baseURL    string
	maxResults int
	opts       fetcher.HTTPOptions
	http       *fetcher.HTTPFetcher
}

// NewClient creates a Redfin client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    defaultBaseURL,
		maxResults: defaultMaxResults,
		opts: fetcher.HTTPOptions{
			Source:    "redfin",
			UserAgent: browserUserAgent,
			Timeout:   20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.opts.Limiter == nil {
		c.opts.Limiter = resilience.NewLimiter("redfin", DefaultInterval)
	}
	c.http = fetcher.NewHTTPFetcher(c.opts)
	return c
}

func (c *httpClient) Foreclosures(ctx context.Context, zip string) ([]Listing, error) {
	listings, err := c.download(ctx, zip, saleTypeForeclosure)
	if err != nil || len(listings) > 0 {
		return listings, err
	}

	all, err := c.download(ctx, zip, saleTypeAll)
	if err != nil {
		return nil, err
	}
	var out []Listing
	for _, l := range all {
		if IsForeclosureType(l.SaleType) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *httpClient) download(ctx context.Context, zip, saleTypes string) ([]Listing, error) {
	params := url.Values{
		"al":          {"1"},
		"sf":          {saleTypes},
		"status":      {"1"},
		"uipt":        {"1"},
		"num_homes":   {strconv.Itoa(c.maxResults)},
		"region_id":   {zip},
		"region_type": {regionTypeZip},
	}
	body, err := c.http.Do(ctx, fetcher.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "?" + params.Encode(),
		Header: http.Header{
			"Accept":          {"text/csv,text/plain,*/*"},
			"Accept-Language": {"en-US,en;q=0.9"},
			"Referer":         {"https://www.redfin.com/"},
		},
	})
	if err != nil {
		return nil, err
	}
	return parseCSV(ctx, body)
}

// parseCSV validates the body and maps its rows to listings.
func parseCSV(ctx context.Context, body []byte) ([]Listing, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmpty
	}
	if trimmed[0] == '<' {
		return nil, ErrBlocked
	}

	// The export sometimes prepends an MLS notice line.
	var clean bytes.Buffer
	for line := range strings.SplitSeq(string(trimmed), "\n") {
		if strings.HasPrefix(line, mlsNotice) {
			continue
		}
		clean.WriteString(line)
		clean.WriteByte('\n')
	}

	rows, err := fetcher.ReadRecords(ctx, &clean)
	if err != nil {
		return nil, eris.Wrap(err, "redfin: parse csv")
	}
	out := make([]Listing, 0, len(rows))
	for _, row := range rows {
		if l, ok := parseRow(row); ok {
			out = append(out, l)
		}
	}
	return out, nil
}
