// Package batchdata provides a client for the BatchData property search and
// lookup API.
package batchdata

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auction-cli/internal/fetcher"
	"github.com/sells-group/auction-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.batchdata.com/api/v1"

	// DefaultInterval is the minimum gap between calls.
	DefaultInterval = 500 * time.Millisecond

	defaultPropertyType = "Single Family Residential"
	defaultTake         = 25
)

// ErrNoKey is returned by every call when the client has no API token.
var ErrNoKey = eris.New("batchdata: api key not configured")

// Client defines the BatchData operations used by the pipeline.
type Client interface {
	// Search lists pre-foreclosure properties in a city within a value range.
	Search(ctx context.Context, q SearchQuery) ([]Property, error)
	// Lookup returns mortgage, lien and pre-foreclosure context for one address.
	Lookup(ctx context.Context, addr Address) (*Property, error)
}

// SearchQuery filters a property search.
type SearchQuery struct {
	City         string
	State        string
	MinValue     float64
	MaxValue     float64
	PropertyType string
}

// Option configures the BatchData client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.opts.Client = hc }
}

// WithLimiter replaces the default 0.5s limiter.
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

// WithTake sets the maximum results per search.
func WithTake(n int) Option {
	return func(c *httpClient) { c.take = n }
}

type httpClient struct {
	apiKey  string
	baseURL string
	take    int
	opts    fetcher.HTTPOptions
	http    *fetcher.HTTPFetcher
}

// NewClient creates a BatchData client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		take:    defaultTake,
		opts: fetcher.HTTPOptions{
			Source:  "batchdata",
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.opts.Limiter == nil {
		c.opts.Limiter = resilience.NewLimiter("batchdata", DefaultInterval)
	}
	c.http = fetcher.NewHTTPFetcher(c.opts)
	return c
}

func (c *httpClient) Search(ctx context.Context, q SearchQuery) ([]Property, error) {
	ptype := q.PropertyType
	if ptype == "" {
		ptype = defaultPropertyType
	}
	req := searchRequest{
		Address:      Address{City: q.City, State: q.State},
		PropertyType: ptype,
	}
	if q.MinValue > 0 || q.MaxValue > 0 {
		req.MarketValueRange = &valueRange{Min: q.MinValue, Max: q.MaxValue}
	}
	body := map[string]any{
		"requests": []searchRequest{req},
		"options":  map[string]int{"take": c.take},
	}

	var resp response
	if err := c.post(ctx, "property/search", body, &resp); err != nil {
		return nil, err
	}
	return resp.Results.Properties, nil
}

func (c *httpClient) Lookup(ctx context.Context, addr Address) (*Property, error) {
	body := map[string]any{
		"requests": []map[string]Address{{"address": addr}},
	}
	var resp response
	if err := c.post(ctx, "property/lookup", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results.Properties) == 0 {
		return nil, nil
	}
	p := resp.Results.Properties[0]
	return &p, nil
}

func (c *httpClient) post(ctx context.Context, endpoint string, in, out any) error {
	if c.apiKey == "" {
		return ErrNoKey
	}
	header := http.Header{
		"Authorization": {"Bearer " + c.apiKey},
		"Accept":        {"application/json"},
	}
	if err := c.http.PostJSON(ctx, c.baseURL+"/"+endpoint, header, in, out); err != nil {
		return eris.Wrapf(err, "batchdata: %s", endpoint)
	}
	return nil
}
