package sources

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/pipeline"
	"github.com/sells-group/auction-cli/internal/region"
	"github.com/sells-group/auction-cli/pkg/auctioncom"
	"github.com/sells-group/auction-cli/pkg/redfin"
	"github.com/sells-group/auction-cli/pkg/sheriff"
)

// Redfin downloads distressed listings for the unit's zip.
type Redfin struct {
	client redfin.Client
}

// NewRedfin wraps a Redfin client as a scraper source.
func NewRedfin(c redfin.Client) *Redfin { return &Redfin{client: c} }

// Name implements pipeline.Source.
func (s *Redfin) Name() string { return model.SourceRedfin }

// Kind implements pipeline.Source.
func (s *Redfin) Kind() pipeline.Kind { return pipeline.KindScraper }

// Search implements pipeline.Source. A blank export body is returned as
// redfin.ErrEmpty so the breaker counts it; a CSV with no rows is no results.
func (s *Redfin) Search(ctx context.Context, q pipeline.Query) ([]model.RawRecord, error) {
	if q.Zip == "" {
		return nil, nil
	}
	listings, err := s.client.Foreclosures(ctx, q.Zip)
	if err != nil {
		return nil, err
	}

	out := make([]model.RawRecord, 0, len(listings))
	for _, l := range listings {
		out = append(out, model.RawRecord{
			"address":       l.Address,
			"city":          l.City,
			"state":         l.State,
			"zip_code":      l.Zip,
			"sale_amount":   l.Price,
			"bedrooms":      l.Beds,
			"bathrooms":     l.Baths,
			"sqft":          l.Sqft,
			"lot_size":      l.LotAcres,
			"year_built":    l.YearBuilt,
			"property_type": l.PropertyType,
			"sale_type":     l.SaleType,
			"property_url":  l.URL,
			"latitude":      l.Latitude,
			"longitude":     l.Longitude,
		})
	}
	return out, nil
}

// Sheriff returns the scheduled sheriff's sales of the counties that make up
// the unit's region. County pages are memoized, so units sharing a region
// cost one page load per county.
type Sheriff struct {
	client sheriff.Client
	memo   *cache.Cache
	log    *zap.Logger
}

// NewSheriff wraps a sheriff's sale client as a scraper source.
func NewSheriff(c sheriff.Client, ttl time.Duration) *Sheriff {
	return &Sheriff{
		client: c,
		memo:   cache.New(ttl, 2*ttl),
		log:    zap.L().With(zap.String("component", "sources.sheriff")),
	}
}

// Name implements pipeline.Source.
func (s *Sheriff) Name() string { return model.SourceSheriff }

// Kind implements pipeline.Source.
func (s *Sheriff) Kind() pipeline.Kind { return pipeline.KindScraper }

// Search implements pipeline.Source. Only Oregon regions have county pages.
// An empty page is skipped while another county of the region loads; when
// every page is empty the search fails with sheriff.ErrEmptyPage.
func (s *Sheriff) Search(ctx context.Context, q pipeline.Query) ([]model.RawRecord, error) {
	if region.NormalizeState(q.State) != "Oregon" {
		return nil, nil
	}
	counties := sheriff.CountiesForRegion(q.Region)
	var (
		out   []model.RawRecord
		empty int
	)
	for _, county := range counties {
		listings, err := s.county(ctx, county)
		if errors.Is(err, sheriff.ErrEmptyPage) {
			s.log.Debug("empty county page", zap.String("county", county))
			empty++
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, l := range listings {
			url := l.ListingURL
			if url == "" {
				url = l.PDFURL
			}
			out = append(out, model.RawRecord{
				"address":            l.Address,
				"city":               l.City,
				"state":              l.State,
				"zip_code":           l.Zip,
				"county":             l.County,
				"auction_date":       l.AuctionDate,
				"foreclosing_entity": l.Plaintiff,
				"foreclosure_stage":  sheriff.StageScheduled,
				"sale_type":          sheriff.SaleType,
				"property_url":       url,
			})
		}
	}
	if len(counties) > 0 && empty == len(counties) {
		return nil, eris.Wrapf(sheriff.ErrEmptyPage, "region %s", q.Region)
	}
	return out, nil
}

func (s *Sheriff) county(ctx context.Context, county string) ([]sheriff.Listing, error) {
	if v, ok := s.memo.Get(county); ok {
		return v.([]sheriff.Listing), nil
	}
	listings, err := s.client.County(ctx, county)
	if err != nil {
		return nil, err
	}
	s.memo.SetDefault(county, listings)
	return listings, nil
}

// AuctionCom reads Auction.com listings for the unit's state. Each state is
// fetched once per memo lifetime since actor runs are billed.
type AuctionCom struct {
	client auctioncom.Client
	memo   *cache.Cache
}

// NewAuctionCom wraps an Auction.com client as a scraper source.
func NewAuctionCom(c auctioncom.Client, ttl time.Duration) *AuctionCom {
	return &AuctionCom{client: c, memo: cache.New(ttl, 2*ttl)}
}

// Name implements pipeline.Source.
func (s *AuctionCom) Name() string { return model.SourceAuctionCom }

// Kind implements pipeline.Source.
func (s *AuctionCom) Kind() pipeline.Kind { return pipeline.KindScraper }

// Search implements pipeline.Source. Listings outside the unit's price
// bounds are left to the pipeline's filters.
func (s *AuctionCom) Search(ctx context.Context, q pipeline.Query) ([]model.RawRecord, error) {
	state := region.NormalizeState(q.State)
	if state == "" {
		return nil, nil
	}

	var listings []auctioncom.Listing
	if v, ok := s.memo.Get(state); ok {
		listings = v.([]auctioncom.Listing)
	} else {
		got, err := s.client.Listings(ctx, auctioncom.Query{State: state})
		if err != nil {
			return nil, unavailable(s.Name(), err, auctioncom.ErrNoKey)
		}
		s.memo.SetDefault(state, got)
		listings = got
	}

	out := make([]model.RawRecord, 0, len(listings))
	for _, l := range listings {
		r := model.RawRecord{
			"address":       l.Address,
			"city":          l.City,
			"state":         l.State,
			"zip_code":      l.Zip,
			"county":        l.County,
			"sale_amount":   l.OpeningBid,
			"arv_estimate":  l.EstResaleValue,
			"bedrooms":      l.Beds,
			"bathrooms":     l.Baths,
			"sqft":          l.Sqft,
			"year_built":    l.YearBuilt,
			"property_type": l.PropertyType,
			"auction_date":  l.AuctionDate,
			"sale_type":     l.SaleType,
			"property_url":  l.URL,
			"image_url":     l.PhotoURL,
		}
		if l.LotSqft > 0 {
			r["lot_size"] = math.Round(l.LotSqft/sqftPerAcre*1000) / 1000
		}
		if strings.TrimSpace(l.Occupancy) != "" {
			r["description"] = "Auction.com " + strings.ToLower(l.SaleType) + ", occupancy: " + l.Occupancy
		}
		out = append(out, r)
	}
	return out, nil
}

const sqftPerAcre = 43560
