package census

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auction-cli/internal/resilience"
)

const testBase = "https://census.test/data/2022/acs/acs5"

const bendRows = `[
 ["NAME","B19013_001E","B01003_001E","B01002_001E","B25077_001E","B25064_001E","B25002_001E","B25002_003E","B25003_002E","B25003_003E","zip code tabulation area"],
 ["ZCTA5 97701","82000","61000","41","520000","1600","28000","2100","17000","8900","97701"]
]`

func newTestClient(t *testing.T, key string) (Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	c := NewClient(key,
		WithBaseURL(testBase),
		WithHTTPClient(&http.Client{Transport: mt}),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)
	return c, mt
}

func TestNeighborhood(t *testing.T) {
	c, mt := newTestClient(t, "ck")
	mt.RegisterResponder(http.MethodGet, testBase,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "zip code tabulation area:97701", q.Get("for"))
			assert.Equal(t, "ck", q.Get("key"))
			assert.Contains(t, q.Get("get"), varMedianIncome)
			return httpmock.NewStringResponse(http.StatusOK, bendRows), nil
		})

	n, err := c.Neighborhood(context.Background(), "97701")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "97701", n.Zip)
	assert.Equal(t, 82000, n.MedianIncome)
	assert.Equal(t, 520000, n.MedianHomeValue)
	assert.InDelta(t, 7.5, n.VacancyRate, 0.01)
	assert.InDelta(t, 65.6, n.OwnerRate, 0.01)

	score, err := c.Score(context.Background(), "97701")
	require.NoError(t, err)
	// 5 +1 income +1 value +0 vacancy +0 owner
	assert.Equal(t, 7, score)
}

func TestNeighborhood_EmptyBody(t *testing.T) {
	c, mt := newTestClient(t, "")
	mt.RegisterResponder(http.MethodGet, testBase,
		func(req *http.Request) (*http.Response, error) {
			assert.Empty(t, req.URL.Query().Get("key"))
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	n, err := c.Neighborhood(context.Background(), "00000")
	require.NoError(t, err)
	assert.Nil(t, n)

	score, err := c.Score(context.Background(), "00000")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestNeighborhood_NullsAndAnnotations(t *testing.T) {
	c, mt := newTestClient(t, "")
	mt.RegisterResponder(http.MethodGet, testBase,
		httpmock.NewStringResponder(http.StatusOK, `[
			["NAME","B19013_001E","B25077_001E","B25002_001E","B25002_003E"],
			["ZCTA5 97759",null,"-666666666","1200","50"]
		]`))

	n, err := c.Neighborhood(context.Background(), "97759")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Zero(t, n.MedianIncome)
	assert.Zero(t, n.MedianHomeValue)
	assert.InDelta(t, 4.2, n.VacancyRate, 0.01)
	assert.Equal(t, -1.0, n.OwnerRate)
}

func TestNeighborhood_ServerError(t *testing.T) {
	c, mt := newTestClient(t, "")
	mt.RegisterResponder(http.MethodGet, testBase,
		httpmock.NewStringResponder(http.StatusBadRequest, "error: unknown variable"))

	_, err := c.Neighborhood(context.Background(), "97701")
	require.Error(t, err)
}

func TestNeighborhoodScore(t *testing.T) {
	unknown := func(n Neighborhood) *Neighborhood {
		if n.VacancyRate == 0 {
			n.VacancyRate = -1
		}
		if n.OwnerRate == 0 {
			n.OwnerRate = -1
		}
		return &n
	}

	tests := []struct {
		name string
		n    *Neighborhood
		want int
	}{
		{"no data", unknown(Neighborhood{}), 5},
		{"affluent", &Neighborhood{MedianIncome: 120000, MedianHomeValue: 600000, VacancyRate: 2, OwnerRate: 80}, 10},
		{"distressed", &Neighborhood{MedianIncome: 30000, MedianHomeValue: 90000, VacancyRate: 22, OwnerRate: 35}, 1},
		{"6.5 rounds to 6", unknown(Neighborhood{MedianIncome: 80000, MedianHomeValue: 300000}), 6},
		{"5.5 rounds to 6", unknown(Neighborhood{MedianIncome: 60000, MedianHomeValue: 300000}), 6},
		{"mid vacancy", &Neighborhood{MedianIncome: 40000, VacancyRate: 12, OwnerRate: 55}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeighborhoodScore(tt.n))
		})
	}
}
