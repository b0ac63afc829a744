// Package auctioncom reads Auction.com listings through an Apify actor. A
// stored dataset is read when a dataset id is configured; otherwise the
// actor is run synchronously for one state or county.
package auctioncom

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/fetcher"
	"github.com/sells-group/auction-cli/internal/region"
	"github.com/sells-group/auction-cli/internal/resilience"
)

const (
	defaultBaseURL  = "https://api.apify.com/v2"
	actorID         = "parseforge~auction-com-property-scraper-ppe"
	defaultMaxItems = 100
	siteRoot        = "https://www.auction.com/residential/"
)

// ErrNoKey is returned by every call when the client has no Apify token.
var ErrNoKey = eris.New("auctioncom: apify token not configured")

// Query selects the listings of one state, optionally narrowed to a county.
type Query struct {
	State  string // full name or two-letter abbreviation
	County string
}

// Client defines the Auction.com operations.
type Client interface {
	// Listings returns the auction listings for q. Items without an address
	// or a positive opening bid are dropped.
	Listings(ctx context.Context, q Query) ([]Listing, error)
}

// Option configures the Auction.com client.
type Option func(*httpClient)

// WithBaseURL sets a custom Apify API root (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.opts.Client = hc }
}

// WithLimiter sets the request limiter.
func WithLimiter(l *resilience.Limiter) Option {
	return func(c *httpClient) { c.opts.Limiter = l }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.opts.Retry = cfg }
}

// WithTimeout sets the per-request timeout. Synchronous actor runs can take
// minutes.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.opts.Timeout = d }
}

// WithDataset reads items from an existing dataset instead of running the
// actor.
func WithDataset(id string) Option {
	return func(c *httpClient) { c.datasetID = id }
}

// WithMaxItems caps the items requested per actor run.
func WithMaxItems(n int) Option {
	return func(c *httpClient) { c.maxItems = n }
}

type httpClient struct {
	token     string
	baseURL   string
	datasetID string
	maxItems  int
	opts      fetcher.HTTPOptions
	http      *fetcher.HTTPFetcher
}

// NewClient creates an Auction.com client authenticated with an Apify token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		baseURL:  defaultBaseURL,
		maxItems: defaultMaxItems,
		opts: fetcher.HTTPOptions{
			Source:  "auctioncom",
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = fetcher.NewHTTPFetcher(c.opts)
	return c
}

func (c *httpClient) Listings(ctx context.Context, q Query) ([]Listing, error) {
	if c.token == "" {
		return nil, ErrNoKey
	}

	var (
		items []Item
		err   error
	)
	if c.datasetID != "" {
		items, err = c.datasetItems(ctx)
	} else {
		items, err = c.runActor(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	state := region.NormalizeState(q.State)
	var out []Listing
	for _, it := range items {
		l, ok := it.Listing()
		if !ok {
			continue
		}
		// Stored datasets may span several states.
		if state != "" && l.State != "" && !strings.EqualFold(l.State, state) {
			continue
		}
		out = append(out, l)
	}
	zap.L().Debug("auctioncom: listings",
		zap.String("state", state),
		zap.Int("items", len(items)),
		zap.Int("kept", len(out)),
	)
	return out, nil
}

func (c *httpClient) datasetItems(ctx context.Context) ([]Item, error) {
	params := url.Values{"format": {"json"}, "clean": {"true"}, "token": {c.token}}
	u := c.baseURL + "/datasets/" + url.PathEscape(c.datasetID) + "/items?" + params.Encode()

	body, err := c.http.Download(ctx, u, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, eris.Wrap(err, "auctioncom: dataset items")
	}
	defer body.Close() //nolint:errcheck

	items, err := fetcher.CollectJSONArray[Item](ctx, body)
	if err != nil {
		return nil, eris.Wrap(err, "auctioncom: decode dataset")
	}
	return items, nil
}

type actorInput struct {
	StartURL string `json:"startUrl"`
	MaxItems int    `json:"maxItems"`
}

func (c *httpClient) runActor(ctx context.Context, q Query) ([]Item, error) {
	start := StartURL(q)
	if start == "" {
		return nil, eris.Errorf("auctioncom: no listing page for state %q", q.State)
	}
	params := url.Values{"token": {c.token}, "format": {"json"}}
	u := c.baseURL + "/acts/" + actorID + "/run-sync-get-dataset-items?" + params.Encode()

	payload, err := json.Marshal(actorInput{StartURL: start, MaxItems: c.maxItems})
	if err != nil {
		return nil, eris.Wrap(err, "auctioncom: encode actor input")
	}
	body, err := c.http.Do(ctx, fetcher.Request{
		Method: http.MethodPost,
		URL:    u,
		Header: http.Header{"Content-Type": {"application/json"}, "Accept": {"application/json"}},
		Body:   payload,
	})
	if err != nil {
		return nil, eris.Wrap(err, "auctioncom: run actor")
	}

	items, err := fetcher.CollectJSONArray[Item](ctx, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "auctioncom: decode run output")
	}
	return items, nil
}

// StartURL returns the Auction.com page the actor starts from: the county
// page when a county is given, otherwise the state page.
func StartURL(q Query) string {
	abbr := region.StateAbbr(q.State)
	if abbr == "" {
		return ""
	}
	u := siteRoot + strings.ToLower(abbr) + "/"
	if county := strings.TrimSpace(q.County); county != "" {
		slug := strings.ReplaceAll(strings.ToLower(county), " ", "-")
		u += strings.TrimSuffix(slug, "-county") + "-county"
	}
	return u
}
