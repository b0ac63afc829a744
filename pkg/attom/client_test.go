package attom

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auction-cli/internal/resilience"
)

const testBase = "https://attom.test/v1"

func newTestClient(t *testing.T, key string) (Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	c := NewClient(key,
		WithBaseURL(testBase),
		WithHTTPClient(&http.Client{Transport: mt}),
		WithLimiter(resilience.NewLimiter("attom", 0)),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2}),
	)
	return c, mt
}

func TestAVM(t *testing.T) {
	c, mt := newTestClient(t, "k")
	mt.RegisterResponder(http.MethodGet, testBase+"/avm/detail",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "k", req.Header.Get("X-RapidAPI-Key"))
			assert.Equal(t, rapidAPIHost, req.Header.Get("X-RapidAPI-Host"))
			assert.Equal(t, "12 Pine St", req.URL.Query().Get("address1"))
			assert.Equal(t, "Bend, OR 97701", req.URL.Query().Get("address2"))
			return httpmock.NewStringResponse(http.StatusOK,
				`{"property":[{"avm":{"amount":{"value":412000,"high":450000,"low":380000}}}]}`), nil
		})

	avm, err := c.AVM(context.Background(), "12 Pine St", "Bend, OR 97701")
	require.NoError(t, err)
	require.NotNil(t, avm)
	assert.Equal(t, AVM{Value: 412000, Low: 380000, High: 450000}, *avm)
}

func TestAVM_NoProperty(t *testing.T) {
	c, mt := newTestClient(t, "k")
	mt.RegisterResponder(http.MethodGet, testBase+"/avm/detail",
		httpmock.NewStringResponder(http.StatusOK, `{"status":{"code":0},"property":[]}`))

	avm, err := c.AVM(context.Background(), "1 Main", "Bend, OR 97701")
	require.NoError(t, err)
	assert.Nil(t, avm)
}

func TestSaleSnapshot(t *testing.T) {
	c, mt := newTestClient(t, "k")
	mt.RegisterResponder(http.MethodGet, testBase+"/sale/snapshot",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "97701", q.Get("postalcode"))
			assert.Equal(t, "100000", q.Get("minsaleamt"))
			assert.Equal(t, "900000", q.Get("maxsaleamt"))
			assert.Equal(t, "20", q.Get("pagesize"))
			return httpmock.NewStringResponse(http.StatusOK, `{"property":[{
				"address":{"line1":"61 NW Elm Ave","locality":"BEND","countrySubd":"OR","postal1":"97701"},
				"location":{"latitude":"44.0582","longitude":"-121.3153"},
				"summary":{"yearbuilt":1998},
				"building":{"size":{"universalsize":1650},"rooms":{"beds":3,"bathstotal":2}},
				"sale":{"saleTransDate":"2025-11-04","amount":{"saleamt":285000,"saletranstype":"REO Sale"}}
			}]}`), nil
		})

	props, err := c.SaleSnapshot(context.Background(), SaleQuery{Zip: "97701", MinPrice: 100000, MaxPrice: 900000})
	require.NoError(t, err)
	require.Len(t, props, 1)

	p := props[0]
	assert.Equal(t, "61 NW Elm Ave", p.Street())
	assert.Equal(t, 1650, p.Sqft())
	assert.Equal(t, 1998, p.YearBuilt())
	assert.Equal(t, 285000.0, p.SaleAmount())
	assert.Equal(t, "REO Sale", p.SaleType())
	assert.Equal(t, "2025-11-04", p.SaleDate())
	lat, lng := p.Coordinates()
	assert.InDelta(t, 44.0582, lat, 1e-6)
	assert.InDelta(t, -121.3153, lng, 1e-6)
}

func TestPropertyDetail(t *testing.T) {
	c, mt := newTestClient(t, "k")
	mt.RegisterResponder(http.MethodGet, testBase+"/property/detail",
		httpmock.NewStringResponder(http.StatusOK, `{"property":[{
			"address":{"oneLine":"5 Oak Ct, Redmond, OR 97756"},
			"building":{"size":{"livingsize":1200},"summary":{"yearbuilt":1975}},
			"assessment":{"assessed":{"assdttlvalue":210000},"market":{"mktttlvalue":330000},"tax":{"taxamt":3100}}
		}]}`))

	p, err := c.PropertyDetail(context.Background(), "5 Oak Ct", "Redmond, OR 97756")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "5 Oak Ct", p.Street())
	assert.Equal(t, 1200, p.Sqft())
	assert.Equal(t, 1975, p.YearBuilt())
	assert.Equal(t, 330000.0, p.Assessment.Market.MktTtlValue)
	assert.Equal(t, 3100.0, p.Assessment.Tax.TaxAmt)
}

func TestSalesHistory(t *testing.T) {
	c, mt := newTestClient(t, "k")
	mt.RegisterResponder(http.MethodGet, testBase+"/saleshistory/detail",
		httpmock.NewStringResponder(http.StatusOK, `{"property":[{"salehistory":[
			{"salesSearchDate":"2019-06-01","amount":{"saleamt":240000}},
			{"salesSearchDate":"2011-02-01","amount":{"saleamt":0}}
		]}]}`))

	sales, err := c.SalesHistory(context.Background(), "5 Oak Ct", "Redmond, OR 97756")
	require.NoError(t, err)
	assert.Equal(t, []SaleEvent{{Amount: 240000, Date: "2019-06-01"}}, sales)
}

func TestNoKey(t *testing.T) {
	c, mt := newTestClient(t, "")
	_, err := c.PropertySnapshot(context.Background(), "97701")
	require.ErrorIs(t, err, ErrNoKey)
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestAuthFailure(t *testing.T) {
	c, mt := newTestClient(t, "bad")
	mt.RegisterResponder(http.MethodGet, testBase+"/sale/snapshot",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"message":"invalid key"}`))

	_, err := c.SaleSnapshot(context.Background(), SaleQuery{Zip: "97701"})
	require.Error(t, err)
	assert.True(t, resilience.IsAuthFailure(err))
	assert.Equal(t, 1, mt.GetTotalCallCount(), "4xx is not retried")
}

func TestTransientRetried(t *testing.T) {
	c, mt := newTestClient(t, "k")
	mt.RegisterResponder(http.MethodGet, testBase+"/property/snapshot",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	_, err := c.PropertySnapshot(context.Background(), "97701")
	require.Error(t, err)
	assert.Equal(t, 2, mt.GetTotalCallCount())
}
