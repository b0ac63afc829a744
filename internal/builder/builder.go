// Package builder turns one raw source record into a canonical property,
// filling missing price, value and repair fields through fixed fallback
// chains.
package builder

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/region"
)

// Rejection errors.
var (
	ErrNoAddress = eris.New("builder: record has no address")
	ErrNoPrice   = eris.New("builder: record has no price")
)

// Physical defaults for fields a record omits.
const (
	DefaultBedrooms     = 3
	DefaultBathrooms    = 2.0
	DefaultSqft         = 1800
	DefaultLotSize      = 0.20
	DefaultYearBuilt    = 1990
	DefaultPropertyType = TypeSingleFamily
	DefaultNeighborhood = 5

	// ARV markup over a reported market or assessed value.
	valueMarkup = 1.10

	// Distressed discount range used when a price is estimated.
	minDiscount = 0.55
	maxDiscount = 0.75

	// Days ahead a past auction is projected to under the reproject policy.
	minProjectDays = 14
	maxProjectDays = 60
)

// Raw field names, in fallback order.
var (
	addressKeys = []string{"address", "street_address", "street", "full_address"}
	cityKeys    = []string{"city"}
	stateKeys   = []string{"state"}
	zipKeys     = []string{"zip_code", "zip", "postal_code"}
	priceKeys   = []string{"sale_amount", "default_amount", "assessed_value", "market_value"}
	sqftKeys    = []string{"sqft", "square_feet", "living_area"}
	dateKeys    = []string{"auction_date"}
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Hints supply location fields for records that omit them, usually from the
// sampled query unit that produced the record.
type Hints struct {
	City   string
	State  string
	Zip    string
	Region string
}

// Builder converts raw records into properties. A Builder is not safe for
// concurrent use; it owns a random source and per-source id counters.
type Builder struct {
	pipeline config.PipelineConfig
	market   config.MarketConfig
	catalog  *region.Catalog
	rng      *rand.Rand
	now      func() time.Time
	seq      map[string]int
	log      *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithNow sets the clock used for auction-date checks and building age.
func WithNow(fn func() time.Time) Option {
	return func(b *Builder) { b.now = fn }
}

// New creates a Builder. rng drives price estimation and date projection.
func New(pipeline config.PipelineConfig, market config.MarketConfig, catalog *region.Catalog, rng *rand.Rand, opts ...Option) *Builder {
	b := &Builder{
		pipeline: pipeline,
		market:   market,
		catalog:  catalog,
		rng:      rng,
		now:      time.Now,
		seq:      make(map[string]int),
		log:      zap.L().With(zap.String("component", "builder")),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build converts raw into a Property. The caller must run the metrics engine
// on the result. ErrNoAddress and ErrNoPrice mark records that cannot become
// a property.
func (b *Builder) Build(raw model.RawRecord, source string, h Hints) (*model.Property, error) {
	address := Address(raw)
	if address == "" {
		return nil, ErrNoAddress
	}

	p := &model.Property{
		Address:           address,
		City:              region.TitleCity(firstNonEmpty(raw.String(cityKeys...), h.City)),
		State:             region.NormalizeState(firstNonEmpty(raw.String(stateKeys...), h.State)),
		ZipCode:           firstNonEmpty(raw.String(zipKeys...), h.Zip),
		County:            raw.String("county"),
		NeighborhoodScore: DefaultNeighborhood,
		DataSource:        source,
	}
	p.Region = b.resolveRegion(p.City, p.State, h.Region)

	b.fillPhysical(p, raw)

	if err := b.fillPrice(p, raw); err != nil {
		return nil, err
	}
	b.fillARV(p, raw)
	p.EstimatedRepairs = round2(b.repairs(p.AuctionPrice, p.YearBuilt))

	b.fillAuctionDate(p, raw)
	fillForeclosure(p, raw)
	fillDetail(p, raw)

	p.AuctionPlatform = platformFor(source, raw)
	p.ID = b.nextID(source)
	if p.PropertyURL == "" {
		if root := PlatformURL(p.AuctionPlatform); root != "" {
			p.PropertyURL = root + "/listing/" + p.ID
		}
	}
	if p.ForeclosingEntity != "" {
		p.BankContactURL = BankContactURL(p.ForeclosingEntity)
	}
	p.Description = b.description(p, raw, source)

	return p, nil
}

// Address returns the record's street address with whitespace collapsed,
// or "" when it has none.
func Address(raw model.RawRecord) string {
	return strings.Join(strings.Fields(raw.String(addressKeys...)), " ")
}

func (b *Builder) resolveRegion(city, state, hint string) string {
	if b.catalog != nil {
		if r := b.catalog.RegionForCity(city, state); r != "" {
			return r
		}
	}
	if hint != "" {
		return hint
	}
	return "Other"
}

func (b *Builder) fillPhysical(p *model.Property, raw model.RawRecord) {
	p.Bedrooms = orInt(raw.Int("bedrooms", "beds"), DefaultBedrooms)
	p.Bathrooms = orFloat(raw.Float("bathrooms", "baths"), DefaultBathrooms)
	p.Sqft = orInt(raw.Int(sqftKeys...), DefaultSqft)
	p.LotSize = orFloat(raw.Float("lot_size", "lot_acres"), DefaultLotSize)
	p.YearBuilt = orInt(raw.Int("year_built"), DefaultYearBuilt)
	p.PropertyType = PropertyType(raw.String("property_type"))
}

func (b *Builder) fillPrice(p *model.Property, raw model.RawRecord) error {
	if price := raw.Float(priceKeys...); price > 0 {
		p.AuctionPrice = round2(price)
		return nil
	}
	if b.pipeline.PricePolicy != config.PricePolicyEstimate {
		return ErrNoPrice
	}
	factor := minDiscount + b.rng.Float64()*(maxDiscount-minDiscount)
	p.AuctionPrice = round2(float64(p.Sqft) * b.market.PricePerSqftFor(p.State) * factor)
	p.PriceEstimated = true
	return nil
}

func (b *Builder) fillARV(p *model.Property, raw model.RawRecord) {
	switch {
	case raw.Float("arv_estimate", "arv") > 0:
		p.EstimatedARV = raw.Float("arv_estimate", "arv")
		p.ValuationSource = "record"
	case raw.Float("market_value") > 0:
		p.EstimatedARV = raw.Float("market_value") * valueMarkup
		p.ValuationSource = "record"
	case raw.Float("assessed_value") > 0:
		p.EstimatedARV = raw.Float("assessed_value") * valueMarkup
		p.ValuationSource = "record"
	default:
		p.EstimatedARV = float64(p.Sqft) * b.market.PricePerSqftFor(p.State)
	}
	p.EstimatedARV = round2(p.EstimatedARV)
}

// repairs applies the configured repair policy.
func (b *Builder) repairs(price float64, yearBuilt int) float64 {
	if b.pipeline.RepairPolicy == config.RepairPolicyZero {
		return 0
	}
	return price * RepairPct(b.now().Year()-yearBuilt)
}

// RepairPct returns the age-tiered repair allowance as a fraction of price.
func RepairPct(age int) float64 {
	switch {
	case age > 40:
		return 0.20
	case age > 25:
		return 0.15
	case age > 10:
		return 0.10
	default:
		return 0.05
	}
}

func (b *Builder) fillAuctionDate(p *model.Property, raw model.RawRecord) {
	s := raw.String(dateKeys...)
	if s == "" {
		return
	}
	d, ok := ParseDate(s)
	if !ok {
		b.log.Debug("builder: unparseable auction date", zap.String("value", s))
		return
	}

	today := truncateDay(b.now())
	if !d.Before(today) {
		p.AuctionDate = d.Format(time.DateOnly)
		return
	}

	if b.pipeline.PastAuctionPolicy == config.PastAuctionReproject {
		days := minProjectDays + b.rng.IntN(maxProjectDays-minProjectDays+1)
		p.AuctionDate = today.AddDate(0, 0, days).Format(time.DateOnly)
		return
	}
	p.AuctionDate = d.Format(time.DateOnly)
	p.PastAuction = true
}

// ParseDate parses the date formats sources are known to use.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	if len(s) > 10 {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fillForeclosure copies lender and debt context. Missing fields stay empty.
func fillForeclosure(p *model.Property, raw model.RawRecord) {
	p.ForeclosingEntity = raw.String("foreclosing_entity", "seller_name", "lender_name")
	p.TotalDebt = round2(raw.Float("total_debt", "default_amount", "mortgage_amount"))
	p.LoanType = raw.String("loan_type")
	p.ForeclosureStage = raw.String("foreclosure_stage", "filing_type")
	if s := raw.String("default_date", "recording_date"); s != "" {
		if d, ok := ParseDate(s); ok {
			p.DefaultDate = d.Format(time.DateOnly)
		} else {
			p.DefaultDate = s
		}
	}
}

func fillDetail(p *model.Property, raw model.RawRecord) {
	p.PropertyURL = raw.String("property_url", "url")
	p.ImageURL = raw.String("image_url")
	p.MortgageLender = raw.String("mortgage_lender")
	p.MortgageBalance = raw.Float("mortgage_balance")
	p.TaxAssessedValue = raw.Float("assessed_value")
	p.AnnualTax = raw.Float("annual_tax", "tax_amount")
	p.RentEstimate = raw.Float("rent_estimate")
	p.LastSaleDate = raw.String("last_sale_date")
	p.LastSalePrice = raw.Float("last_sale_price")
	p.Latitude = raw.Signed("latitude", "lat")
	p.Longitude = raw.Signed("longitude", "lng", "lon")
}

func (b *Builder) description(p *model.Property, raw model.RawRecord, source string) string {
	if d := raw.String("description", "remarks"); d != "" {
		return d
	}
	kind := "Distressed sale"
	if p.ForeclosureStage != "" {
		kind = "Pre-foreclosure"
	}
	d := fmt.Sprintf("%s listing in %s, %s. %s opportunity.", source, p.City, p.State, kind)
	if p.PriceEstimated {
		d += " Price estimated from local $/sqft."
	}
	return d
}

func (b *Builder) nextID(source string) string {
	prefix := model.IDPrefix(source)
	b.seq[prefix]++
	return fmt.Sprintf("%s-%04d", prefix, b.seq[prefix])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
