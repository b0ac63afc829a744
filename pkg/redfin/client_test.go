package redfin

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auction-cli/internal/resilience"
)

const testBase = "https://redfin.test/stingray/api/gis-csv"

const header = `SALE TYPE,SOLD DATE,PROPERTY TYPE,ADDRESS,CITY,STATE OR PROVINCE,ZIP OR POSTAL CODE,PRICE,BEDS,BATHS,LOCATION,SQUARE FEET,LOT SIZE,YEAR BUILT,DAYS ON MARKET,$/SQUARE FEET,HOA/MONTH,STATUS,URL (SEE https://www.redfin.com/buy-a-home/comparative-market-analysis FOR INFO ON PRICING),SOURCE,MLS#,FAVORITE,INTERESTED,LATITUDE,LONGITUDE`

func newTestClient(t *testing.T) (Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	c := NewClient(
		WithBaseURL(testBase),
		WithHTTPClient(&http.Client{Transport: mt}),
		WithLimiter(resilience.NewLimiter("redfin", 0)),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)
	return c, mt
}

func TestForeclosures(t *testing.T) {
	c, mt := newTestClient(t)
	body := `"In accordance with local MLS rules, some MLS listings are not included in the download"
` + header + `
Foreclosure,,Single Family Residential,2140 NE Lotno Dr,Bend,OR,97701,"$389,000",3,2,Bend,1584,8712,1994,12,246,—,Active,https://www.redfin.com/OR/Bend/2140-NE-Lotno-Dr-97701/home/1,Oregon Datashare,220175001,N,Y,44.0712,-121.2801
`
	mt.RegisterResponder(http.MethodGet, testBase,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "97701", q.Get("region_id"))
			assert.Equal(t, "2", q.Get("region_type"))
			assert.Equal(t, saleTypeForeclosure, q.Get("sf"))
			assert.Contains(t, req.Header.Get("User-Agent"), "Mozilla/5.0")
			return httpmock.NewStringResponse(http.StatusOK, body), nil
		})

	got, err := c.Foreclosures(context.Background(), "97701")
	require.NoError(t, err)
	require.Len(t, got, 1)

	l := got[0]
	assert.Equal(t, "2140 NE Lotno Dr", l.Address)
	assert.Equal(t, "OR", l.State)
	assert.Equal(t, 389000.0, l.Price)
	assert.Equal(t, 3, l.Beds)
	assert.Equal(t, 1584, l.Sqft)
	assert.Equal(t, 0.2, l.LotAcres)
	assert.Equal(t, 1994, l.YearBuilt)
	assert.Zero(t, l.HOAMonthly)
	assert.Equal(t, "220175001", l.MLSNumber)
	assert.Equal(t, "https://www.redfin.com/OR/Bend/2140-NE-Lotno-Dr-97701/home/1", l.URL)
	assert.InDelta(t, -121.2801, l.Longitude, 1e-6)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestForeclosures_FallbackFiltersLocally(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testBase,
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("sf") == saleTypeForeclosure {
				return httpmock.NewStringResponse(http.StatusOK, header+"\n"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, header+`
MLS Listing,,Single Family Residential,1 Market St,Bend,OR,97701,450000,3,2,,1500,,2001,3,300,,Active,u1,MLS,1,N,Y,44,-121
Bank Owned,,Single Family Residential,2 REO Way,Bend,OR,97701,310000,3,2,,1400,,1988,40,221,,Active,u2,MLS,2,N,Y,44,-121
New Construction,,Single Family Residential,3 No Price Rd,Bend,OR,97701,,3,2,,1400,,2024,1,,,Active,u3,MLS,3,N,Y,44,-121
`), nil
		})

	got, err := c.Foreclosures(context.Background(), "97701")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2 REO Way", got[0].Address)
	assert.Equal(t, 2, mt.GetTotalCallCount())
}

func TestForeclosures_HTMLIsBlocked(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testBase,
		httpmock.NewStringResponder(http.StatusOK, "<!DOCTYPE html><html><body>captcha</body></html>"))

	_, err := c.Foreclosures(context.Background(), "97701")
	require.ErrorIs(t, err, ErrBlocked)
}

func TestForeclosures_EmptyBody(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testBase, httpmock.NewStringResponder(http.StatusOK, "  \n"))

	_, err := c.Foreclosures(context.Background(), "97701")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestForeclosures_RateLimited(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testBase, httpmock.NewStringResponder(http.StatusTooManyRequests, ""))

	_, err := c.Foreclosures(context.Background(), "97701")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestIsForeclosureType(t *testing.T) {
	for _, st := range []string{"Foreclosure", "Bank Owned", "REO", "Short Sale", "HUD home", "Auction"} {
		assert.True(t, IsForeclosureType(st), st)
	}
	for _, st := range []string{"", "MLS Listing", "New Construction Home"} {
		assert.False(t, IsForeclosureType(st), st)
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, 1250.0, number("$1,250"))
	assert.Zero(t, number("—"))
	assert.Zero(t, number("N/A"))
	assert.Zero(t, number(""))
}
