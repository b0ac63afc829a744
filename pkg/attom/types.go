package attom

import (
	"strconv"
	"strings"
)

// response is the envelope shared by every ATTOM endpoint.
type response struct {
	Status struct {
		Code  int    `json:"code"`
		Msg   string `json:"msg"`
		Total int    `json:"total"`
	} `json:"status"`
	Property []Property `json:"property"`
}

// Property is one property record. Endpoints fill different subsets.
type Property struct {
	Identifier struct {
		AttomID int64  `json:"attomId"`
		APN     string `json:"apn"`
	} `json:"identifier"`
	Address struct {
		Line1       string `json:"line1"`
		Locality    string `json:"locality"`
		CountrySubd string `json:"countrySubd"`
		Postal1     string `json:"postal1"`
		OneLine     string `json:"oneLine"`
	} `json:"address"`
	Area struct {
		CountyName string `json:"countrysecsubd"`
	} `json:"area"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
	Summary struct {
		PropType    string `json:"proptype"`
		PropSubType string `json:"propsubtype"`
		YearBuilt   int    `json:"yearbuilt"`
	} `json:"summary"`
	Lot struct {
		LotSize1 float64 `json:"lotsize1"`
	} `json:"lot"`
	Building struct {
		Size struct {
			UniversalSize int `json:"universalsize"`
			LivingSize    int `json:"livingsize"`
		} `json:"size"`
		Rooms struct {
			Beds       int     `json:"beds"`
			BathsTotal float64 `json:"bathstotal"`
		} `json:"rooms"`
		Summary struct {
			YearBuilt int `json:"yearbuilt"`
		} `json:"summary"`
	} `json:"building"`
	Assessment struct {
		Assessed struct {
			AssdTtlValue float64 `json:"assdttlvalue"`
		} `json:"assessed"`
		Market struct {
			MktTtlValue float64 `json:"mktttlvalue"`
		} `json:"market"`
		Tax struct {
			TaxAmt float64 `json:"taxamt"`
		} `json:"tax"`
	} `json:"assessment"`
	Sale        sale   `json:"sale"`
	SaleHistory []sale `json:"salehistory"`
	AVM         struct {
		Amount struct {
			Value float64 `json:"value"`
			High  float64 `json:"high"`
			Low   float64 `json:"low"`
		} `json:"amount"`
	} `json:"avm"`
}

type sale struct {
	SalesSearchDate string `json:"salesSearchDate"`
	SaleTransDate   string `json:"saleTransDate"`
	Amount          struct {
		SaleAmt       float64 `json:"saleamt"`
		SaleTransType string  `json:"saletranstype"`
		SaleRecDate   string  `json:"salerecdate"`
	} `json:"amount"`
}

// Street returns the street line.
func (p *Property) Street() string {
	if p.Address.Line1 != "" {
		return strings.TrimSpace(p.Address.Line1)
	}
	line, _, _ := strings.Cut(p.Address.OneLine, ",")
	return strings.TrimSpace(line)
}

// Sqft returns the best available living area.
func (p *Property) Sqft() int {
	if p.Building.Size.UniversalSize > 0 {
		return p.Building.Size.UniversalSize
	}
	return p.Building.Size.LivingSize
}

// YearBuilt returns the construction year from either summary block.
func (p *Property) YearBuilt() int {
	if p.Summary.YearBuilt > 0 {
		return p.Summary.YearBuilt
	}
	return p.Building.Summary.YearBuilt
}

// SaleAmount returns the most recent sale price, or 0.
func (p *Property) SaleAmount() float64 { return p.Sale.Amount.SaleAmt }

// SaleType returns the sale transaction type, e.g. "REO Sale".
func (p *Property) SaleType() string { return p.Sale.Amount.SaleTransType }

// SaleDate returns the most recent sale date.
func (p *Property) SaleDate() string {
	if p.Sale.SaleTransDate != "" {
		return p.Sale.SaleTransDate
	}
	return p.Sale.SalesSearchDate
}

// Coordinates parses the location block. Missing values come back as 0.
func (p *Property) Coordinates() (lat, lng float64) {
	lat, _ = strconv.ParseFloat(strings.TrimSpace(p.Location.Latitude), 64)
	lng, _ = strconv.ParseFloat(strings.TrimSpace(p.Location.Longitude), 64)
	return lat, lng
}
