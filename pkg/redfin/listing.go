package redfin

import (
	"math"
	"strconv"
	"strings"
)

const sqftPerAcre = 43560

// Listing is one row of the export.
type Listing struct {
	Address       string  `json:"address"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Zip           string  `json:"zip"`
	Price         float64 `json:"price"`
	Beds          int     `json:"beds"`
	Baths         float64 `json:"baths"`
	Sqft          int     `json:"sqft"`
	LotAcres      float64 `json:"lot_acres"`
	YearBuilt     int     `json:"year_built"`
	URL           string  `json:"url"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	SaleType      string  `json:"sale_type"`
	DaysOnMarket  int     `json:"days_on_market"`
	HOAMonthly    float64 `json:"hoa_monthly"`
	MLSNumber     string  `json:"mls_number"`
	PricePerSqft  float64 `json:"price_per_sqft"`
	PropertyType  string  `json:"property_type"`
	ListingSource string  `json:"listing_source"`
}

var foreclosureKeywords = []string{
	"foreclosure", "bank owned", "bank-owned", "reo", "short sale", "auction", "hud",
}

// IsForeclosureType reports whether a SALE TYPE value marks a distressed
// sale.
func IsForeclosureType(saleType string) bool {
	st := strings.ToLower(saleType)
	for _, kw := range foreclosureKeywords {
		if strings.Contains(st, kw) {
			return true
		}
	}
	return false
}

// parseRow maps an export row. Rows without an address or a positive price
// are dropped.
func parseRow(row map[string]string) (Listing, bool) {
	address := row["ADDRESS"]
	price := number(row["PRICE"])
	if address == "" || price <= 0 {
		return Listing{}, false
	}

	l := Listing{
		Address:       address,
		City:          row["CITY"],
		State:         row["STATE OR PROVINCE"],
		Zip:           row["ZIP OR POSTAL CODE"],
		Price:         price,
		Beds:          int(number(row["BEDS"])),
		Baths:         number(row["BATHS"]),
		Sqft:          int(number(row["SQUARE FEET"])),
		YearBuilt:     int(number(row["YEAR BUILT"])),
		Latitude:      number(row["LATITUDE"]),
		Longitude:     number(row["LONGITUDE"]),
		SaleType:      row["SALE TYPE"],
		DaysOnMarket:  int(number(row["DAYS ON MARKET"])),
		HOAMonthly:    max(0, number(row["HOA/MONTH"])),
		MLSNumber:     row["MLS#"],
		PricePerSqft:  number(row["$/SQUARE FEET"]),
		PropertyType:  row["PROPERTY TYPE"],
		ListingSource: row["SOURCE"],
	}
	if l.PropertyType == "" {
		l.PropertyType = "Single Family"
	}
	if lot := number(row["LOT SIZE"]); lot > 0 {
		l.LotAcres = math.Round(lot/sqftPerAcre*1000) / 1000
	}
	// The listing URL column header carries a long suffix.
	for k, v := range row {
		if strings.HasPrefix(k, "URL") {
			l.URL = v
			break
		}
	}
	return l, true
}

// number parses an export cell such as "$1,250" or "—". Unparseable cells
// are 0.
func number(s string) float64 {
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
