// Package model defines the canonical property, run and analysis types.
package model

import "strings"

// Property is the canonical representation of one auction or foreclosure
// listing. Computed fields are owned by the metrics engine and are rewritten
// every time a financial input changes.
type Property struct {
	// Identity
	ID      string `json:"id"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Region  string `json:"region"`
	County  string `json:"county,omitempty"`

	// Physical
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    float64 `json:"bathrooms"`
	Sqft         int     `json:"sqft"`
	LotSize      float64 `json:"lot_size"` // acres
	YearBuilt    int     `json:"year_built"`
	PropertyType string  `json:"property_type"`

	// Financial inputs
	AuctionPrice     float64 `json:"auction_price"`
	EstimatedARV     float64 `json:"estimated_arv"`
	EstimatedRepairs float64 `json:"estimated_repairs"`
	PriceEstimated   bool    `json:"price_estimated"`

	// Auction / sale context
	AuctionDate     string `json:"auction_date"`
	PastAuction     bool   `json:"past_auction"`
	AuctionPlatform string `json:"auction_platform"`
	Description     string `json:"description"`

	NeighborhoodScore int `json:"neighborhood_score"`

	// Foreclosure context
	ForeclosingEntity    string  `json:"foreclosing_entity,omitempty"`
	TotalDebt            float64 `json:"total_debt,omitempty"`
	LoanType             string  `json:"loan_type,omitempty"`
	DefaultDate          string  `json:"default_date,omitempty"`
	ForeclosureStage     string  `json:"foreclosure_stage,omitempty"`
	ForeclosureSynthetic bool    `json:"foreclosure_synthetic,omitempty"`

	// Provenance and detail
	PropertyURL      string  `json:"property_url,omitempty"`
	BankContactURL   string  `json:"bank_contact_url,omitempty"`
	ImageURL         string  `json:"image_url,omitempty"`
	ValuationSource  string  `json:"valuation_source,omitempty"`
	ValuationLow     float64 `json:"valuation_low,omitempty"`
	ValuationHigh    float64 `json:"valuation_high,omitempty"`
	MortgageLender   string  `json:"mortgage_lender,omitempty"`
	MortgageBalance  float64 `json:"mortgage_balance,omitempty"`
	TaxAssessedValue float64 `json:"tax_assessed_value,omitempty"`
	AnnualTax        float64 `json:"annual_tax,omitempty"`
	RentEstimate     float64 `json:"rent_estimate,omitempty"`
	LastSaleDate     string  `json:"last_sale_date,omitempty"`
	LastSalePrice    float64 `json:"last_sale_price,omitempty"`
	Latitude         float64 `json:"latitude,omitempty"`
	Longitude        float64 `json:"longitude,omitempty"`
	DataSource       string  `json:"data_source"`

	// Computed
	TotalInvestment float64 `json:"total_investment"`
	ProfitPotential float64 `json:"profit_potential"`
	ProfitMargin    float64 `json:"profit_margin"`
	MaxBidPrice     float64 `json:"max_bid_price"`
	DealScore       float64 `json:"deal_score"`
	Recommended     bool    `json:"recommended"`
}

// HasForeclosureContext reports whether any lender or debt detail is known.
func (p *Property) HasForeclosureContext() bool {
	return p.ForeclosingEntity != "" || p.TotalDebt > 0 || p.ForeclosureStage != ""
}

// FullAddress returns "address, city, state".
func (p *Property) FullAddress() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Address, p.City, p.State} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// IDPrefix returns the display-id prefix for a source tag.
func IDPrefix(source string) string {
	switch {
	case source == SourceBatchData:
		return "BD"
	case strings.HasPrefix(source, "attom"):
		return "ATTOM"
	case source == SourceRedfin:
		return "RF"
	case source == SourceSheriff:
		return "SHF"
	case source == SourceAuctionCom:
		return "AUC"
	default:
		return "REAL"
	}
}

// Source tags.
const (
	SourceBatchData  = "batchdata"
	SourceATTOMSale  = "attom_sale"
	SourceATTOMProp  = "attom_prop"
	SourceRedfin     = "redfin"
	SourceSheriff    = "sheriff"
	SourceAuctionCom = "auctioncom"
)
