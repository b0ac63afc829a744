// Package attom provides a client for the ATTOM property API served through
// RapidAPI.
package attom

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auction-cli/internal/fetcher"
	"github.com/sells-group/auction-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://attom-property.p.rapidapi.com/propertyapi/v1.0.0"
	rapidAPIHost   = "attom-property.p.rapidapi.com"

	// DefaultInterval is the minimum gap between calls on the free tier.
	DefaultInterval = 2 * time.Second

	defaultPageSize = 20
)

// ErrNoKey is returned by every call when the client has no API key.
var ErrNoKey = eris.New("attom: api key not configured")

// Client defines the ATTOM operations used by the pipeline.
type Client interface {
	// AVM returns the automated valuation for one address.
	AVM(ctx context.Context, address, cityStateZip string) (*AVM, error)
	// PropertyDetail returns building, lot and assessment data for one address.
	PropertyDetail(ctx context.Context, address, cityStateZip string) (*Property, error)
	// SaleSnapshot lists recent sales in a zip within a price range.
	SaleSnapshot(ctx context.Context, q SaleQuery) ([]Property, error)
	// PropertySnapshot lists properties in a zip.
	PropertySnapshot(ctx context.Context, zip string) ([]Property, error)
	// SalesHistory returns the recorded sales of one address.
	SalesHistory(ctx context.Context, address, cityStateZip string) ([]SaleEvent, error)
}

// SaleQuery filters a sale snapshot.
type SaleQuery struct {
	Zip      string
	MinPrice float64
	MaxPrice float64
}

// AVM is an automated valuation.
type AVM struct {
	Value float64 `json:"value"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
}

// SaleEvent is one recorded sale.
type SaleEvent struct {
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

// Option configures the ATTOM client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
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

// WithPageSize sets the snapshot page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) { c.pageSize = n }
}

type httpClient struct {
	apiKey   string
	baseURL  string
	pageSize int
	opts     fetcher.HTTPOptions
	http     *fetcher.HTTPFetcher
}

// NewClient creates an ATTOM client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		pageSize: defaultPageSize,
		opts: fetcher.HTTPOptions{
			Source:  "attom",
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.opts.Limiter == nil {
		c.opts.Limiter = resilience.NewLimiter("attom", DefaultInterval)
	}
	c.http = fetcher.NewHTTPFetcher(c.opts)
	return c
}

func (c *httpClient) AVM(ctx context.Context, address, cityStateZip string) (*AVM, error) {
	var resp response
	if err := c.get(ctx, "avm/detail", addressParams(address, cityStateZip), &resp); err != nil {
		return nil, err
	}
	if len(resp.Property) == 0 {
		return nil, nil
	}
	amt := resp.Property[0].AVM.Amount
	if amt.Value <= 0 {
		return nil, nil
	}
	return &AVM{Value: amt.Value, Low: amt.Low, High: amt.High}, nil
}

func (c *httpClient) PropertyDetail(ctx context.Context, address, cityStateZip string) (*Property, error) {
	var resp response
	if err := c.get(ctx, "property/detail", addressParams(address, cityStateZip), &resp); err != nil {
		return nil, err
	}
	if len(resp.Property) == 0 {
		return nil, nil
	}
	p := resp.Property[0]
	return &p, nil
}

func (c *httpClient) SaleSnapshot(ctx context.Context, q SaleQuery) ([]Property, error) {
	params := url.Values{
		"postalcode": {q.Zip},
		"pagesize":   {strconv.Itoa(c.pageSize)},
	}
	if q.MinPrice > 0 {
		params.Set("minsaleamt", strconv.FormatFloat(q.MinPrice, 'f', 0, 64))
	}
	if q.MaxPrice > 0 {
		params.Set("maxsaleamt", strconv.FormatFloat(q.MaxPrice, 'f', 0, 64))
	}
	var resp response
	if err := c.get(ctx, "sale/snapshot", params, &resp); err != nil {
		return nil, err
	}
	return resp.Property, nil
}

func (c *httpClient) PropertySnapshot(ctx context.Context, zip string) ([]Property, error) {
	params := url.Values{
		"postalcode": {zip},
		"pagesize":   {strconv.Itoa(c.pageSize)},
	}
	var resp response
	if err := c.get(ctx, "property/snapshot", params, &resp); err != nil {
		return nil, err
	}
	return resp.Property, nil
}

func (c *httpClient) SalesHistory(ctx context.Context, address, cityStateZip string) ([]SaleEvent, error) {
	var resp response
	if err := c.get(ctx, "saleshistory/detail", addressParams(address, cityStateZip), &resp); err != nil {
		return nil, err
	}
	var out []SaleEvent
	for _, p := range resp.Property {
		for _, s := range p.SaleHistory {
			if s.Amount.SaleAmt <= 0 {
				continue
			}
			out = append(out, SaleEvent{Amount: s.Amount.SaleAmt, Date: s.SalesSearchDate})
		}
		if p.Sale.Amount.SaleAmt > 0 && len(p.SaleHistory) == 0 {
			out = append(out, SaleEvent{Amount: p.Sale.Amount.SaleAmt, Date: p.Sale.SalesSearchDate})
		}
	}
	return out, nil
}

func (c *httpClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrNoKey
	}
	header := http.Header{
		"X-RapidAPI-Key":  {c.apiKey},
		"X-RapidAPI-Host": {rapidAPIHost},
		"Accept":          {"application/json"},
	}
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	if err := c.http.GetJSON(ctx, u, header, out); err != nil {
		return eris.Wrapf(err, "attom: %s", endpoint)
	}
	return nil
}

func addressParams(address, cityStateZip string) url.Values {
	return url.Values{
		"address1": {address},
		"address2": {cityStateZip},
	}
}
