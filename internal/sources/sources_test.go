package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/pipeline"
	"github.com/sells-group/auction-cli/internal/resilience"
	"github.com/sells-group/auction-cli/pkg/attom"
	"github.com/sells-group/auction-cli/pkg/auctioncom"
	"github.com/sells-group/auction-cli/pkg/batchdata"
	"github.com/sells-group/auction-cli/pkg/redfin"
	"github.com/sells-group/auction-cli/pkg/sheriff"
)

type mockATTOM struct{ mock.Mock }

func (m *mockATTOM) AVM(ctx context.Context, address, csz string) (*attom.AVM, error) {
	args := m.Called(ctx, address, csz)
	v, _ := args.Get(0).(*attom.AVM)
	return v, args.Error(1)
}

func (m *mockATTOM) PropertyDetail(ctx context.Context, address, csz string) (*attom.Property, error) {
	args := m.Called(ctx, address, csz)
	v, _ := args.Get(0).(*attom.Property)
	return v, args.Error(1)
}

func (m *mockATTOM) SaleSnapshot(ctx context.Context, q attom.SaleQuery) ([]attom.Property, error) {
	args := m.Called(ctx, q)
	v, _ := args.Get(0).([]attom.Property)
	return v, args.Error(1)
}

func (m *mockATTOM) PropertySnapshot(ctx context.Context, zip string) ([]attom.Property, error) {
	args := m.Called(ctx, zip)
	v, _ := args.Get(0).([]attom.Property)
	return v, args.Error(1)
}

func (m *mockATTOM) SalesHistory(ctx context.Context, address, csz string) ([]attom.SaleEvent, error) {
	args := m.Called(ctx, address, csz)
	v, _ := args.Get(0).([]attom.SaleEvent)
	return v, args.Error(1)
}

type mockBatch struct{ mock.Mock }

func (m *mockBatch) Search(ctx context.Context, q batchdata.SearchQuery) ([]batchdata.Property, error) {
	args := m.Called(ctx, q)
	v, _ := args.Get(0).([]batchdata.Property)
	return v, args.Error(1)
}

func (m *mockBatch) Lookup(ctx context.Context, addr batchdata.Address) (*batchdata.Property, error) {
	args := m.Called(ctx, addr)
	v, _ := args.Get(0).(*batchdata.Property)
	return v, args.Error(1)
}

type mockRedfin struct{ mock.Mock }

func (m *mockRedfin) Foreclosures(ctx context.Context, zip string) ([]redfin.Listing, error) {
	args := m.Called(ctx, zip)
	v, _ := args.Get(0).([]redfin.Listing)
	return v, args.Error(1)
}

type mockSheriff struct{ mock.Mock }

func (m *mockSheriff) County(ctx context.Context, county string) ([]sheriff.Listing, error) {
	args := m.Called(ctx, county)
	v, _ := args.Get(0).([]sheriff.Listing)
	return v, args.Error(1)
}

type mockAuction struct{ mock.Mock }

func (m *mockAuction) Listings(ctx context.Context, q auctioncom.Query) ([]auctioncom.Listing, error) {
	args := m.Called(ctx, q)
	v, _ := args.Get(0).([]auctioncom.Listing)
	return v, args.Error(1)
}

var bendQuery = pipeline.Query{
	City:     "Bend",
	State:    "Oregon",
	Zip:      "97701",
	Region:   "Central Oregon",
	MinPrice: 100000,
	MaxPrice: 500000,
}

func attomProperty() attom.Property {
	var p attom.Property
	p.Address.Line1 = "61234 SE Brosterhous Rd"
	p.Address.Locality = "BEND"
	p.Address.CountrySubd = "OR"
	p.Address.Postal1 = "97702"
	p.Summary.PropType = "SFR"
	p.Summary.YearBuilt = 1996
	p.Building.Size.LivingSize = 1820
	p.Building.Rooms.Beds = 3
	p.Building.Rooms.BathsTotal = 2
	p.Assessment.Market.MktTtlValue = 455000
	p.Sale.Amount.SaleAmt = 287500
	p.Sale.Amount.SaleTransType = "REO Sale"
	p.Location.Latitude = "44.03"
	p.Location.Longitude = "-121.29"
	return p
}

func TestATTOMSale_Search(t *testing.T) {
	c := &mockATTOM{}
	c.On("SaleSnapshot", mock.Anything, attom.SaleQuery{Zip: "97701", MinPrice: 100000, MaxPrice: 500000}).
		Return([]attom.Property{attomProperty()}, nil)

	src := NewATTOMSale(c)
	assert.Equal(t, model.SourceATTOMSale, src.Name())
	assert.Equal(t, pipeline.KindAPI, src.Kind())

	recs, err := src.Search(context.Background(), bendQuery)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "61234 SE Brosterhous Rd", r.String("address"))
	assert.Equal(t, 287500.0, r.Float("sale_amount"))
	assert.Equal(t, 1820, r.Int("sqft"))
	assert.Equal(t, "Single Family", r.String("property_type"))
	assert.Equal(t, "REO Sale", r.String("sale_type"))
	assert.InDelta(t, -121.29, r.Signed("longitude"), 1e-9)
	c.AssertExpectations(t)
}

func TestATTOMSale_NoZipSkipsCall(t *testing.T) {
	c := &mockATTOM{}
	recs, err := NewATTOMSale(c).Search(context.Background(), pipeline.Query{City: "Bend", State: "Oregon"})
	require.NoError(t, err)
	assert.Empty(t, recs)
	c.AssertNotCalled(t, "SaleSnapshot", mock.Anything, mock.Anything)
}

func TestATTOMProperty_NoKeyIsUnavailable(t *testing.T) {
	c := &mockATTOM{}
	c.On("PropertySnapshot", mock.Anything, "97701").Return(nil, attom.ErrNoKey)

	_, err := NewATTOMProperty(c).Search(context.Background(), bendQuery)
	require.ErrorIs(t, err, pipeline.ErrUnavailable)
}

func TestATTOMProperty_AuthFailureIsUnavailable(t *testing.T) {
	c := &mockATTOM{}
	c.On("PropertySnapshot", mock.Anything, "97701").
		Return(nil, resilience.CheckStatus("attom", 401))

	_, err := NewATTOMProperty(c).Search(context.Background(), bendQuery)
	require.ErrorIs(t, err, pipeline.ErrUnavailable)
}

func TestATTOMProperty_OtherErrorsPassThrough(t *testing.T) {
	c := &mockATTOM{}
	boom := errors.New("boom")
	c.On("PropertySnapshot", mock.Anything, "97701").Return(nil, boom)

	_, err := NewATTOMProperty(c).Search(context.Background(), bendQuery)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, pipeline.ErrUnavailable)
}

func TestATTOMValuation(t *testing.T) {
	c := &mockATTOM{}
	c.On("AVM", mock.Anything, "1 Main St", "Bend, OR 97701").
		Return(&attom.AVM{Value: 410000, Low: 380000, High: 440000}, nil)
	c.On("AVM", mock.Anything, "2 Main St", "Bend, OR 97701").Return(nil, nil)

	v := NewATTOMValuation(c)
	assert.Equal(t, "attom_avm", v.Name())

	got, err := v.Valuation(context.Background(), &model.Property{Address: "1 Main St", City: "Bend", State: "Oregon", ZipCode: "97701"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 410000.0, got.Value)
	assert.Equal(t, "attom_avm", got.Source)

	got, err = v.Valuation(context.Background(), &model.Property{Address: "2 Main St", City: "Bend", State: "Oregon", ZipCode: "97701"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCityStateZip(t *testing.T) {
	assert.Equal(t, "Bend, OR 97701", cityStateZip(&model.Property{City: "Bend", State: "Oregon", ZipCode: "97701"}))
	assert.Equal(t, "Austin, TX", cityStateZip(&model.Property{City: "Austin", State: "Texas"}))
	assert.Equal(t, "WA 98101", cityStateZip(&model.Property{State: "Washington", ZipCode: "98101"}))
}

func batchProperty() batchdata.Property {
	p := batchdata.Property{
		Address: batchdata.Address{Street: "88 NW Elm Ave", City: "Redmond", State: "OR", Zip: "97756"},
		PreForeclosure: &batchdata.PreForeclosure{
			TrusteeName:      "Clear Recon Corp",
			DefaultAmount:    41000,
			FilingType:       "Notice of Default",
			RecordingDate:    "2025-11-02",
			AuctionDate:      "2026-05-20",
			OpeningBidAmount: 198000,
		},
		Mortgage: &batchdata.Mortgage{LenderName: "Umpqua Bank", Balance: 176000, LoanType: "Conventional"},
	}
	p.Valuation.EstimatedValue = 352000
	p.Valuation.PriceRangeMin = 330000
	p.Valuation.PriceRangeMax = 370000
	p.Building.YearBuilt = 1979
	return p
}

func TestBatchData_Search(t *testing.T) {
	c := &mockBatch{}
	c.On("Search", mock.Anything, batchdata.SearchQuery{City: "Bend", State: "OR", MinValue: 100000, MaxValue: 500000}).
		Return([]batchdata.Property{batchProperty()}, nil)

	recs, err := NewBatchData(c).Search(context.Background(), bendQuery)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, 198000.0, r.Float("sale_amount"))
	assert.Equal(t, "Clear Recon Corp", r.String("foreclosing_entity"))
	assert.Equal(t, 41000.0, r.Float("total_debt"))
	assert.Equal(t, "Notice of Default", r.String("foreclosure_stage"))
	assert.Equal(t, "Umpqua Bank", r.String("mortgage_lender"))
	assert.Equal(t, "2026-05-20", r.String("auction_date"))
}

func TestBatchData_ForbiddenIsUnavailable(t *testing.T) {
	c := &mockBatch{}
	c.On("Search", mock.Anything, mock.Anything).Return(nil, resilience.CheckStatus("batchdata", 403))

	_, err := NewBatchData(c).Search(context.Background(), bendQuery)
	require.ErrorIs(t, err, pipeline.ErrUnavailable)
}

func TestBatchLookup_SharedAcrossStages(t *testing.T) {
	c := &mockBatch{}
	bp := batchProperty()
	c.On("Lookup", mock.Anything, batchdata.Address{Street: "88 NW Elm Ave", City: "Redmond", State: "OR", Zip: "97756"}).
		Return(&bp, nil).Once()

	lookup := newBatchLookup(c, time.Minute)
	val := &batchValuation{lookup: lookup}
	fc := &batchForeclosure{lookup: lookup}
	p := &model.Property{Address: "88 NW Elm Ave", City: "Redmond", State: "Oregon", ZipCode: "97756"}

	v, err := val.Valuation(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 352000.0, v.Value)
	assert.Equal(t, 330000.0, v.Low)

	d, err := fc.Foreclosure(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Clear Recon Corp", d.Entity)
	assert.Equal(t, "Umpqua Bank", d.MortgageLender)
	assert.Equal(t, 176000.0, d.MortgageBalance)
	assert.Equal(t, "2025-11-02", d.DefaultDate)

	c.AssertNumberOfCalls(t, "Lookup", 1)
}

func TestBatchLookup_NotFound(t *testing.T) {
	c := &mockBatch{}
	c.On("Lookup", mock.Anything, mock.Anything).Return(nil, nil).Once()

	lookup := newBatchLookup(c, time.Minute)
	p := &model.Property{Address: "1 Nowhere", City: "Bend", State: "Oregon"}

	v, err := (&batchValuation{lookup: lookup}).Valuation(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, v)
	d, err := (&batchForeclosure{lookup: lookup}).Foreclosure(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, d)
	c.AssertNumberOfCalls(t, "Lookup", 1)
}

func TestRedfin_Search(t *testing.T) {
	c := &mockRedfin{}
	c.On("Foreclosures", mock.Anything, "97701").Return([]redfin.Listing{{
		Address: "2140 NE Lotno Dr", City: "Bend", State: "OR", Zip: "97701",
		Price: 389000, Sqft: 1584, LotAcres: 0.2, YearBuilt: 1994, SaleType: "Foreclosure",
		URL: "https://www.redfin.com/x",
	}}, nil)

	src := NewRedfin(c)
	assert.Equal(t, pipeline.KindScraper, src.Kind())
	recs, err := src.Search(context.Background(), bendQuery)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 389000.0, recs[0].Float("sale_amount"))
	assert.Equal(t, "https://www.redfin.com/x", recs[0].String("property_url"))
}

func TestRedfin_EmptyExportOpensBreaker(t *testing.T) {
	c := &mockRedfin{}
	c.On("Foreclosures", mock.Anything, "97701").Return(nil, redfin.ErrEmpty)

	src := NewRedfin(c)
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 3})
	for range 5 {
		_, err := resilience.ExecuteVal(context.Background(), cb, func(ctx context.Context) ([]model.RawRecord, error) {
			return src.Search(ctx, bendQuery)
		})
		require.Error(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, cb.State())
	c.AssertNumberOfCalls(t, "Foreclosures", 3)
}

func TestRedfin_NoRowsIsNoResults(t *testing.T) {
	c := &mockRedfin{}
	c.On("Foreclosures", mock.Anything, "97701").Return([]redfin.Listing{}, nil)

	recs, err := NewRedfin(c).Search(context.Background(), bendQuery)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRedfin_BlockedIsFailure(t *testing.T) {
	c := &mockRedfin{}
	c.On("Foreclosures", mock.Anything, "97701").Return(nil, redfin.ErrBlocked)

	_, err := NewRedfin(c).Search(context.Background(), bendQuery)
	require.ErrorIs(t, err, redfin.ErrBlocked)
}

func TestSheriff_SearchMemoizesCounties(t *testing.T) {
	c := &mockSheriff{}
	c.On("County", mock.Anything, "deschutes").Return([]sheriff.Listing{{
		Address: "428 SE Warsaw St.", City: "Redmond", State: "Oregon", Zip: "97756",
		County: "Deschutes", AuctionDate: "2026-02-12", Plaintiff: "Lakeview Loan Servicing, LLC",
		PDFURL: "https://example.test/notice.pdf",
	}}, nil).Once()
	c.On("County", mock.Anything, "crook").Return(nil, sheriff.ErrEmptyPage).Once()
	c.On("County", mock.Anything, "jefferson").Return([]sheriff.Listing{}, nil).Once()
	c.On("County", mock.Anything, "union").Return([]sheriff.Listing{}, nil).Once()

	src := NewSheriff(c, time.Minute)
	recs, err := src.Search(context.Background(), bendQuery)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Lakeview Loan Servicing, LLC", recs[0].String("foreclosing_entity"))
	assert.Equal(t, sheriff.StageScheduled, recs[0].String("foreclosure_stage"))
	assert.Equal(t, "https://example.test/notice.pdf", recs[0].String("property_url"))
	assert.False(t, recs[0].Has("sale_amount"))

	// A second unit in the region reuses the cached pages. The empty crook
	// page is not cached and is loaded again.
	c.On("County", mock.Anything, "crook").Return(nil, sheriff.ErrEmptyPage).Once()
	recs, err = src.Search(context.Background(), pipeline.Query{City: "Redmond", State: "Oregon", Zip: "97756", Region: "Central Oregon"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	c.AssertNumberOfCalls(t, "County", 5)
}

func TestSheriff_AllPagesEmptyIsFailure(t *testing.T) {
	c := &mockSheriff{}
	c.On("County", mock.Anything, mock.Anything).Return(nil, sheriff.ErrEmptyPage)

	src := NewSheriff(c, time.Minute)
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 3})
	for range 3 {
		_, err := resilience.ExecuteVal(context.Background(), cb, func(ctx context.Context) ([]model.RawRecord, error) {
			return src.Search(ctx, bendQuery)
		})
		require.ErrorIs(t, err, sheriff.ErrEmptyPage)
	}
	assert.Equal(t, resilience.CircuitOpen, cb.State())
}

func TestSheriff_OutsideOregon(t *testing.T) {
	c := &mockSheriff{}
	recs, err := NewSheriff(c, time.Minute).Search(context.Background(),
		pipeline.Query{City: "Austin", State: "Texas", Region: "Greater Austin"})
	require.NoError(t, err)
	assert.Empty(t, recs)
	c.AssertNotCalled(t, "County", mock.Anything, mock.Anything)
}

func TestSheriff_FailureReturned(t *testing.T) {
	c := &mockSheriff{}
	c.On("County", mock.Anything, mock.Anything).Return(nil, resilience.CheckStatus("sheriff", 503))

	_, err := NewSheriff(c, time.Minute).Search(context.Background(), bendQuery)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestAuctionCom_SearchOncePerState(t *testing.T) {
	c := &mockAuction{}
	c.On("Listings", mock.Anything, auctioncom.Query{State: "Oregon"}).Return([]auctioncom.Listing{{
		Address: "1520 NW Portland Ave", City: "Bend", State: "Oregon", Zip: "97703",
		OpeningBid: 215000, EstResaleValue: 412000, LotSqft: 8712, SaleType: "Foreclosure Sale",
		Occupancy: "Occupied",
	}}, nil).Once()

	src := NewAuctionCom(c, time.Minute)
	for range 2 {
		recs, err := src.Search(context.Background(), bendQuery)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, 215000.0, recs[0].Float("sale_amount"))
		assert.Equal(t, 412000.0, recs[0].Float("arv_estimate"))
		assert.Equal(t, 0.2, recs[0].Float("lot_size"))
		assert.Contains(t, recs[0].String("description"), "occupancy: Occupied")
	}
	c.AssertNumberOfCalls(t, "Listings", 1)
}

func TestAuctionCom_NoKeyIsUnavailable(t *testing.T) {
	c := &mockAuction{}
	c.On("Listings", mock.Anything, mock.Anything).Return(nil, auctioncom.ErrNoKey)

	_, err := NewAuctionCom(c, time.Minute).Search(context.Background(), bendQuery)
	require.ErrorIs(t, err, pipeline.ErrUnavailable)
}

func TestBuild(t *testing.T) {
	cfg := config.SourcesConfig{
		ATTOM:      config.SourceConfig{Enabled: true, MinIntervalMs: 0},
		BatchData:  config.SourceConfig{Enabled: true},
		Census:     config.SourceConfig{Enabled: true},
		Redfin:     config.SourceConfig{Enabled: false},
		Sheriff:    config.SourceConfig{Enabled: true, TimeoutSecs: 5},
		AuctionCom: config.SourceConfig{Enabled: true, DatasetID: "ds"},
	}
	set := Build(cfg)
	assert.Equal(t, []string{
		model.SourceATTOMSale, model.SourceATTOMProp, model.SourceBatchData,
		model.SourceSheriff, model.SourceAuctionCom,
	}, set.Names())
	require.Len(t, set.Valuations, 2)
	assert.Equal(t, "attom_avm", set.Valuations[0].Name())
	assert.Equal(t, model.SourceBatchData, set.Valuations[1].Name())
	assert.Len(t, set.Foreclosures, 1)
	assert.NotNil(t, set.Neighborhood)
}

func TestBuild_NothingEnabled(t *testing.T) {
	set := Build(config.SourcesConfig{})
	assert.Empty(t, set.Sources)
	assert.Nil(t, set.Neighborhood)
}
