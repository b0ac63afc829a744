package sources

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sells-group/auction-cli/internal/enrich"
	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/pipeline"
	"github.com/sells-group/auction-cli/internal/region"
	"github.com/sells-group/auction-cli/pkg/batchdata"
)

// BatchData searches pre-foreclosures in the unit's city.
type BatchData struct {
	client batchdata.Client
}

// NewBatchData wraps a BatchData client as a listing source.
func NewBatchData(c batchdata.Client) *BatchData { return &BatchData{client: c} }

// Name implements pipeline.Source.
func (s *BatchData) Name() string { return model.SourceBatchData }

// Kind implements pipeline.Source.
func (s *BatchData) Kind() pipeline.Kind { return pipeline.KindAPI }

// Search implements pipeline.Source.
func (s *BatchData) Search(ctx context.Context, q pipeline.Query) ([]model.RawRecord, error) {
	props, err := s.client.Search(ctx, batchdata.SearchQuery{
		City:     q.City,
		State:    region.StateAbbr(q.State),
		MinValue: q.MinPrice,
		MaxValue: q.MaxPrice,
	})
	if err != nil {
		return nil, unavailable(s.Name(), err, batchdata.ErrNoKey)
	}
	out := make([]model.RawRecord, 0, len(props))
	for i := range props {
		out = append(out, batchRecord(&props[i]))
	}
	return out, nil
}

func batchRecord(p *batchdata.Property) model.RawRecord {
	r := model.RawRecord{
		"address":            p.Address.Street,
		"city":               p.Address.City,
		"state":              p.Address.State,
		"zip_code":           p.Address.Zip,
		"county":             p.Address.County,
		"market_value":       p.Valuation.EstimatedValue,
		"assessed_value":     p.Assessment.TotalAssessedValue,
		"bedrooms":           p.Building.Bedrooms,
		"bathrooms":          p.Building.Bathrooms,
		"sqft":               p.Building.LivingArea,
		"lot_size":           p.Building.LotSizeAcres,
		"year_built":         p.Building.YearBuilt,
		"property_type":      p.Building.PropertyType,
		"foreclosing_entity": p.Entity(),
		"total_debt":         p.TotalDebt(),
		"annual_tax":         p.Assessment.TaxAmount,
		"last_sale_date":     p.Sale.LastSaleDate,
		"last_sale_price":    p.Sale.LastSalePrice,
		"latitude":           p.Location.Latitude,
		"longitude":          p.Location.Longitude,
	}
	if pf := p.PreForeclosure; pf != nil {
		r["sale_amount"] = pf.OpeningBidAmount
		r["default_amount"] = pf.DefaultAmount
		r["foreclosure_stage"] = pf.FilingType
		r["recording_date"] = pf.RecordingDate
		r["auction_date"] = pf.AuctionDate
	}
	if m := p.Mortgage; m != nil {
		r["mortgage_lender"] = m.LenderName
		r["mortgage_balance"] = m.Balance
		r["loan_type"] = m.LoanType
	}
	return r
}

// batchLookup memoizes address lookups so the valuation and foreclosure
// stages share one call per property.
type batchLookup struct {
	client batchdata.Client
	memo   *cache.Cache
}

func newBatchLookup(c batchdata.Client, ttl time.Duration) *batchLookup {
	return &batchLookup{client: c, memo: cache.New(ttl, 2*ttl)}
}

func (l *batchLookup) get(ctx context.Context, p *model.Property) (*batchdata.Property, error) {
	key := strings.ToLower(p.FullAddress() + "|" + p.ZipCode)
	if v, ok := l.memo.Get(key); ok {
		return v.(*batchdata.Property), nil
	}
	bp, err := l.client.Lookup(ctx, batchdata.Address{
		Street: p.Address,
		City:   p.City,
		State:  region.StateAbbr(p.State),
		Zip:    p.ZipCode,
	})
	if err != nil {
		return nil, err
	}
	l.memo.SetDefault(key, bp)
	return bp, nil
}

type batchValuation struct {
	lookup *batchLookup
}

func (v *batchValuation) Name() string { return model.SourceBatchData }

func (v *batchValuation) Valuation(ctx context.Context, p *model.Property) (*enrich.Valuation, error) {
	bp, err := v.lookup.get(ctx, p)
	if err != nil || bp == nil || bp.Valuation.EstimatedValue <= 0 {
		return nil, err
	}
	return &enrich.Valuation{
		Source: v.Name(),
		Value:  bp.Valuation.EstimatedValue,
		Low:    bp.Valuation.PriceRangeMin,
		High:   bp.Valuation.PriceRangeMax,
	}, nil
}

type batchForeclosure struct {
	lookup *batchLookup
}

func (f *batchForeclosure) Name() string { return model.SourceBatchData }

func (f *batchForeclosure) Foreclosure(ctx context.Context, p *model.Property) (*enrich.ForeclosureDetail, error) {
	bp, err := f.lookup.get(ctx, p)
	if err != nil || bp == nil {
		return nil, err
	}
	d := &enrich.ForeclosureDetail{
		Entity:           bp.Entity(),
		TotalDebt:        bp.TotalDebt(),
		LastSaleDate:     bp.Sale.LastSaleDate,
		LastSalePrice:    bp.Sale.LastSalePrice,
		TaxAssessedValue: bp.Assessment.TotalAssessedValue,
		AnnualTax:        bp.Assessment.TaxAmount,
	}
	if m := bp.Mortgage; m != nil {
		d.MortgageLender = m.LenderName
		d.MortgageBalance = m.Balance
		d.LoanType = m.LoanType
	}
	if pf := bp.PreForeclosure; pf != nil {
		d.Stage = pf.FilingType
		d.DefaultDate = pf.RecordingDate
	}
	return d, nil
}
