// Package census reads ACS 5-year housing and income figures per zip code
// tabulation area and turns them into a 1-10 neighborhood score.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auction-cli/internal/fetcher"
	"github.com/sells-group/auction-cli/internal/resilience"
)

const defaultBaseURL = "https://api.census.gov/data/2022/acs/acs5"

// ACS variable codes.
const (
	varMedianIncome    = "B19013_001E"
	varPopulation      = "B01003_001E"
	varMedianAge       = "B01002_001E"
	varMedianHomeValue = "B25077_001E"
	varMedianRent      = "B25064_001E"
	varHousingUnits    = "B25002_001E"
	varVacantUnits     = "B25002_003E"
	varOwnerOccupied   = "B25003_002E"
	varRenterOccupied  = "B25003_003E"
)

var variables = []string{
	varMedianIncome, varPopulation, varMedianAge, varMedianHomeValue, varMedianRent,
	varHousingUnits, varVacantUnits, varOwnerOccupied, varRenterOccupied,
}

// Neighborhood holds the ACS figures for one zip. Zero means unreported.
type Neighborhood struct {
	Zip             string  `json:"zip"`
	Name            string  `json:"name"`
	MedianIncome    int     `json:"median_income"`
	Population      int     `json:"population"`
	MedianAge       int     `json:"median_age"`
	MedianHomeValue int     `json:"median_home_value"`
	MedianRent      int     `json:"median_rent"`
	HousingUnits    int     `json:"housing_units"`
	VacantUnits     int     `json:"vacant_units"`
	OwnerOccupied   int     `json:"owner_occupied"`
	RenterOccupied  int     `json:"renter_occupied"`
	VacancyRate     float64 `json:"vacancy_rate"`         // percent, -1 when unknown
	OwnerRate       float64 `json:"owner_occupancy_rate"` // percent, -1 when unknown
}

// Client defines the Census operations.
type Client interface {
	// Neighborhood returns the ACS figures for zip, or nil when the zip has
	// no data.
	Neighborhood(ctx context.Context, zip string) (*Neighborhood, error)
	// Score returns the 1-10 neighborhood score for zip, or 0 when the zip
	// has no data.
	Score(ctx context.Context, zip string) (int, error)
}

// Option configures the Census client.
type Option func(*httpClient)

// WithBaseURL sets the ACS dataset URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.opts.Client = hc }
}

// WithLimiter sets a limiter. The default is unlimited.
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
	apiKey  string
	baseURL string
	opts    fetcher.HTTPOptions
	http    *fetcher.HTTPFetcher
}

// NewClient creates a Census client. The key is optional; keyless calls are
// subject to a low daily quota.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		opts: fetcher.HTTPOptions{
			Source:  "census",
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = fetcher.NewHTTPFetcher(c.opts)
	return c
}

func (c *httpClient) Neighborhood(ctx context.Context, zip string) (*Neighborhood, error) {
	params := url.Values{
		"get": {"NAME," + strings.Join(variables, ",")},
		"for": {"zip code tabulation area:" + zip},
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	body, err := c.http.Do(ctx, fetcher.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "?" + params.Encode(),
		Header: http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "census: zcta %s", zip)
	}
	// An unknown zip yields 204 with an empty body.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	n, err := parseRows(body)
	if err != nil {
		return nil, eris.Wrapf(err, "census: zcta %s", zip)
	}
	if n != nil {
		n.Zip = zip
	}
	return n, nil
}

func (c *httpClient) Score(ctx context.Context, zip string) (int, error) {
	n, err := c.Neighborhood(ctx, zip)
	if err != nil || n == nil {
		return 0, err
	}
	return NeighborhoodScore(n), nil
}

// parseRows reads the ACS header + values row response.
func parseRows(body []byte) (*Neighborhood, error) {
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, eris.Wrap(err, "decode rows")
	}
	if len(rows) < 2 {
		return nil, nil
	}
	header, values := rows[0], rows[1]

	col := make(map[string]string, len(header))
	for i, h := range header {
		if i >= len(values) {
			break
		}
		col[fmt.Sprint(h)] = cell(values[i])
	}

	n := &Neighborhood{
		Name:            col["NAME"],
		MedianIncome:    positive(col[varMedianIncome]),
		Population:      positive(col[varPopulation]),
		MedianAge:       positive(col[varMedianAge]),
		MedianHomeValue: positive(col[varMedianHomeValue]),
		MedianRent:      positive(col[varMedianRent]),
		HousingUnits:    positive(col[varHousingUnits]),
		VacantUnits:     positive(col[varVacantUnits]),
		OwnerOccupied:   positive(col[varOwnerOccupied]),
		RenterOccupied:  positive(col[varRenterOccupied]),
		VacancyRate:     -1,
		OwnerRate:       -1,
	}
	if n.HousingUnits > 0 && n.VacantUnits > 0 {
		n.VacancyRate = round1(float64(n.VacantUnits) / float64(n.HousingUnits) * 100)
	}
	if n.OwnerOccupied > 0 && n.RenterOccupied > 0 {
		n.OwnerRate = round1(float64(n.OwnerOccupied) / float64(n.OwnerOccupied+n.RenterOccupied) * 100)
	}
	return n, nil
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// positive parses an ACS value. Missing, malformed and the negative
// annotation codes (e.g. -666666666) all map to 0.
func positive(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return int(f)
}
