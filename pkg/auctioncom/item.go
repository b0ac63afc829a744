package auctioncom

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sells-group/auction-cli/internal/region"
)

// Number decodes a JSON number, a numeric string such as "$1,250", or null.
// Anything unparseable is 0.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			*n = 0
			return nil
		}
	}
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// Text decodes a JSON string or number as a string; null is "".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}

// Item is one actor output row.
type Item struct {
	StreetDescription string `json:"street_description"`
	Address           string `json:"address"`
	Municipality      string `json:"municipality"`
	State             string `json:"country_primary_subdivision"`
	County            string `json:"country_secondary_subdivision"`
	PostalCode        Text   `json:"postal_code"`
	OpeningBid        Number `json:"opening_bid"`
	StartingBid       Number `json:"starting_bid_amount"`
	EstResaleValue    Number `json:"est_resale_value"`
	Beds              Number `json:"beds"`
	Baths             Number `json:"baths"`
	Sqft              Number `json:"sqft"`
	LotSqft           Number `json:"lot_sqft"`
	YearBuilt         Number `json:"year_built"`
	PropertyType      string `json:"property_type"`
	SaleType          string `json:"saleType"`
	AuctionDate       string `json:"auctionDate"`
	AuctionTime       string `json:"auctionTime"`
	AuctionLocation   string `json:"auctionLocation"`
	Occupancy         string `json:"occupancy_status"`
	URL               string `json:"url"`
	PhotoURL          string `json:"primary_photo_url"`
}

// Listing is a normalized Auction.com listing.
type Listing struct {
	Address         string  `json:"address"`
	City            string  `json:"city"`
	State           string  `json:"state"`
	Zip             string  `json:"zip"`
	County          string  `json:"county"`
	OpeningBid      float64 `json:"opening_bid"`
	EstResaleValue  float64 `json:"est_resale_value"`
	Beds            int     `json:"beds"`
	Baths           float64 `json:"baths"`
	Sqft            int     `json:"sqft"`
	LotSqft         float64 `json:"lot_sqft"`
	YearBuilt       int     `json:"year_built"`
	PropertyType    string  `json:"property_type"`
	SaleType        string  `json:"sale_type"`
	AuctionDate     string  `json:"auction_date"`
	AuctionTime     string  `json:"auction_time"`
	AuctionLocation string  `json:"auction_location"`
	Occupancy       string  `json:"occupancy"`
	URL             string  `json:"url"`
	PhotoURL        string  `json:"photo_url"`
}

// Listing maps the item. It reports false when the item has no address or
// no positive opening bid.
func (it Item) Listing() (Listing, bool) {
	address := strings.TrimSpace(it.StreetDescription)
	if address == "" {
		address = strings.TrimSpace(it.Address)
	}
	if address == "" {
		return Listing{}, false
	}

	bid := float64(it.OpeningBid)
	if bid <= 0 {
		bid = float64(it.StartingBid)
	}
	if bid <= 0 {
		return Listing{}, false
	}

	saleType := strings.TrimSpace(it.SaleType)
	if saleType == "" {
		saleType = "Foreclosure"
	}
	return Listing{
		Address:         address,
		City:            region.TitleCity(it.Municipality),
		State:           region.NormalizeState(it.State),
		Zip:             strings.TrimSpace(string(it.PostalCode)),
		County:          strings.TrimSpace(it.County),
		OpeningBid:      bid,
		EstResaleValue:  float64(it.EstResaleValue),
		Beds:            int(it.Beds),
		Baths:           float64(it.Baths),
		Sqft:            int(it.Sqft),
		LotSqft:         float64(it.LotSqft),
		YearBuilt:       int(it.YearBuilt),
		PropertyType:    strings.TrimSpace(it.PropertyType),
		SaleType:        saleType,
		AuctionDate:     strings.TrimSpace(it.AuctionDate),
		AuctionTime:     strings.TrimSpace(it.AuctionTime),
		AuctionLocation: strings.TrimSpace(it.AuctionLocation),
		Occupancy:       strings.TrimSpace(it.Occupancy),
		URL:             strings.TrimSpace(it.URL),
		PhotoURL:        strings.TrimSpace(it.PhotoURL),
	}, true
}
