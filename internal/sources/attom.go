package sources

import (
	"context"
	"strings"

	"github.com/sells-group/auction-cli/internal/builder"
	"github.com/sells-group/auction-cli/internal/enrich"
	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/pipeline"
	"github.com/sells-group/auction-cli/internal/region"
	"github.com/sells-group/auction-cli/pkg/attom"
)

// ATTOMSale searches recent sales in the unit's zip within the price bounds.
type ATTOMSale struct {
	client attom.Client
}

// NewATTOMSale wraps an ATTOM client as the sale snapshot source.
func NewATTOMSale(c attom.Client) *ATTOMSale { return &ATTOMSale{client: c} }

// Name implements pipeline.Source.
func (s *ATTOMSale) Name() string { return model.SourceATTOMSale }

// Kind implements pipeline.Source.
func (s *ATTOMSale) Kind() pipeline.Kind { return pipeline.KindAPI }

// Search implements pipeline.Source.
func (s *ATTOMSale) Search(ctx context.Context, q pipeline.Query) ([]model.RawRecord, error) {
	if q.Zip == "" {
		return nil, nil
	}
	props, err := s.client.SaleSnapshot(ctx, attom.SaleQuery{Zip: q.Zip, MinPrice: q.MinPrice, MaxPrice: q.MaxPrice})
	if err != nil {
		return nil, unavailable(s.Name(), err, attom.ErrNoKey)
	}
	return attomRecords(props), nil
}

// ATTOMProperty lists properties in the unit's zip. Prices come from the
// assessment since snapshot rows carry no sale.
type ATTOMProperty struct {
	client attom.Client
}

// NewATTOMProperty wraps an ATTOM client as the property snapshot source.
func NewATTOMProperty(c attom.Client) *ATTOMProperty { return &ATTOMProperty{client: c} }

// Name implements pipeline.Source.
func (s *ATTOMProperty) Name() string { return model.SourceATTOMProp }

// Kind implements pipeline.Source.
func (s *ATTOMProperty) Kind() pipeline.Kind { return pipeline.KindAPI }

// Search implements pipeline.Source.
func (s *ATTOMProperty) Search(ctx context.Context, q pipeline.Query) ([]model.RawRecord, error) {
	if q.Zip == "" {
		return nil, nil
	}
	props, err := s.client.PropertySnapshot(ctx, q.Zip)
	if err != nil {
		return nil, unavailable(s.Name(), err, attom.ErrNoKey)
	}
	return attomRecords(props), nil
}

func attomRecords(props []attom.Property) []model.RawRecord {
	out := make([]model.RawRecord, 0, len(props))
	for i := range props {
		p := &props[i]
		lat, lng := p.Coordinates()
		out = append(out, model.RawRecord{
			"address":         p.Street(),
			"city":            p.Address.Locality,
			"state":           p.Address.CountrySubd,
			"zip_code":        p.Address.Postal1,
			"county":          p.Area.CountyName,
			"sale_amount":     p.SaleAmount(),
			"assessed_value":  p.Assessment.Assessed.AssdTtlValue,
			"market_value":    p.Assessment.Market.MktTtlValue,
			"bedrooms":        p.Building.Rooms.Beds,
			"bathrooms":       p.Building.Rooms.BathsTotal,
			"sqft":            p.Sqft(),
			"lot_size":        p.Lot.LotSize1,
			"year_built":      p.YearBuilt(),
			"property_type":   attomPropertyType(p),
			"sale_type":       p.SaleType(),
			"last_sale_date":  p.SaleDate(),
			"last_sale_price": p.SaleAmount(),
			"annual_tax":      p.Assessment.Tax.TaxAmt,
			"latitude":        lat,
			"longitude":       lng,
		})
	}
	return out
}

func attomPropertyType(p *attom.Property) string {
	if p.Summary.PropType == "" {
		return ""
	}
	return builder.PropertyType(p.Summary.PropType)
}

// ATTOMValuation is the "attom_avm" valuation lookup.
type ATTOMValuation struct {
	client attom.Client
}

// NewATTOMValuation wraps an ATTOM client as a valuation lookup.
func NewATTOMValuation(c attom.Client) *ATTOMValuation { return &ATTOMValuation{client: c} }

// Name implements enrich.ValuationLookup.
func (v *ATTOMValuation) Name() string { return "attom_avm" }

// Valuation implements enrich.ValuationLookup. A property with no AVM
// returns nil.
func (v *ATTOMValuation) Valuation(ctx context.Context, p *model.Property) (*enrich.Valuation, error) {
	avm, err := v.client.AVM(ctx, p.Address, cityStateZip(p))
	if err != nil || avm == nil || avm.Value <= 0 {
		return nil, err
	}
	return &enrich.Valuation{Source: v.Name(), Value: avm.Value, Low: avm.Low, High: avm.High}, nil
}

// cityStateZip formats the second address line ATTOM expects, such as
// "Bend, OR 97701".
func cityStateZip(p *model.Property) string {
	state := region.StateAbbr(p.State)
	if state == "" {
		state = p.State
	}
	line := strings.TrimSpace(strings.Join(strings.Fields(state+" "+p.ZipCode), " "))
	if p.City == "" {
		return line
	}
	if line == "" {
		return p.City
	}
	return p.City + ", " + line
}
