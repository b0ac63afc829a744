package batchdata

// Address is a postal address in requests and responses.
type Address struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
	County string `json:"county,omitempty"`
}

type valueRange struct {
	Min float64 `json:"min,omitempty"`
	Max float64 `json:"max,omitempty"`
}

type searchRequest struct {
	Address          Address     `json:"address"`
	PropertyType     string      `json:"propertyType,omitempty"`
	MarketValueRange *valueRange `json:"marketValueRange,omitempty"`
}

type response struct {
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"text"`
	} `json:"status"`
	Results struct {
		Properties []Property `json:"properties"`
	} `json:"results"`
}

// PreForeclosure is the notice-of-default filing on a property.
type PreForeclosure struct {
	TrusteeName      string  `json:"trusteeName"`
	TrusteePhone     string  `json:"trusteePhone"`
	DefaultAmount    float64 `json:"defaultAmount"`
	FilingType       string  `json:"filingType"`
	RecordingDate    string  `json:"recordingDate"`
	AuctionDate      string  `json:"auctionDate"`
	AuctionLocation  string  `json:"auctionLocation"`
	OpeningBidAmount float64 `json:"openingBid"`
}

// Mortgage is the primary open loan.
type Mortgage struct {
	LenderName      string  `json:"lenderName"`
	Amount          float64 `json:"amount"`
	LoanType        string  `json:"loanType"`
	OriginationDate string  `json:"originationDate"`
	Balance         float64 `json:"estimatedBalance"`
}

// Lien is a recorded lien.
type Lien struct {
	LenderName string  `json:"lenderName"`
	Amount     float64 `json:"amount"`
}

// Property is one BatchData property result.
type Property struct {
	Address  Address `json:"address"`
	Building struct {
		Bedrooms     int     `json:"bedroomCount"`
		Bathrooms    float64 `json:"bathroomCount"`
		LivingArea   int     `json:"livingAreaSquareFeet"`
		YearBuilt    int     `json:"yearBuilt"`
		PropertyType string  `json:"propertyType"`
		LotSizeAcres float64 `json:"lotSizeAcres"`
	} `json:"building"`
	Valuation struct {
		EstimatedValue float64 `json:"estimatedValue"`
		PriceRangeMin  float64 `json:"priceRangeMin"`
		PriceRangeMax  float64 `json:"priceRangeMax"`
	} `json:"valuation"`
	Assessment struct {
		TotalAssessedValue float64 `json:"totalAssessedValue"`
		TaxAmount          float64 `json:"taxAmount"`
	} `json:"assessment"`
	Sale struct {
		LastSaleDate  string  `json:"lastSaleDate"`
		LastSalePrice float64 `json:"lastSalePrice"`
	} `json:"sale"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	PreForeclosure *PreForeclosure `json:"preForeclosure"`
	Mortgage       *Mortgage       `json:"mortgage"`
	Lien           *Lien           `json:"lien"`
}

// Entity returns the foreclosing party: the trustee, else the mortgage
// lender, else the lien holder.
func (p *Property) Entity() string {
	switch {
	case p.PreForeclosure != nil && p.PreForeclosure.TrusteeName != "":
		return p.PreForeclosure.TrusteeName
	case p.Mortgage != nil && p.Mortgage.LenderName != "":
		return p.Mortgage.LenderName
	case p.Lien != nil:
		return p.Lien.LenderName
	}
	return ""
}

// TotalDebt returns the default amount, else the mortgage amount, else the
// lien amount.
func (p *Property) TotalDebt() float64 {
	switch {
	case p.PreForeclosure != nil && p.PreForeclosure.DefaultAmount > 0:
		return p.PreForeclosure.DefaultAmount
	case p.Mortgage != nil && p.Mortgage.Amount > 0:
		return p.Mortgage.Amount
	case p.Lien != nil:
		return p.Lien.Amount
	}
	return 0
}
