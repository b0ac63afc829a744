package builder

import (
	"strings"

	"github.com/sells-group/auction-cli/internal/model"
)

// Platform labels.
const (
	PlatformAuctionCom        = "Auction.com"
	PlatformHubzu             = "Hubzu"
	PlatformRealtyBid         = "RealtyBid"
	PlatformHomePath          = "HomePath"
	PlatformBankForeclosure   = "Bank Foreclosure"
	PlatformHudsonMarshall    = "Hudson & Marshall"
	PlatformWilliams          = "Williams & Williams"
	PlatformBatchData         = "BatchData Pre-Foreclosure"
	PlatformRedfin            = "Redfin"
	PlatformRedfinForeclosure = "Redfin Foreclosure"
	PlatformSheriff           = "Sheriff Sale"
)

// platformURLs maps a platform label to its site root. Platforms without a
// public site are absent.
var platformURLs = map[string]string{
	PlatformAuctionCom:        "https://www.auction.com",
	PlatformHubzu:             "https://www.hubzu.com",
	PlatformRealtyBid:         "https://www.realtybid.com",
	PlatformHomePath:          "https://www.homepath.fanniemae.com",
	PlatformHudsonMarshall:    "https://www.hudsonandmarshall.com",
	PlatformWilliams:          "https://www.williamsauction.com",
	PlatformRedfin:            "https://www.redfin.com",
	PlatformRedfinForeclosure: "https://www.redfin.com",
	PlatformSheriff:           "https://oregonsheriffssales.org",
}

// PlatformURL returns the site root for a platform label, or "".
func PlatformURL(platform string) string {
	return platformURLs[platform]
}

// Lender is a known foreclosing lender or servicer.
type Lender struct {
	Name       string
	ContactURL string
}

// Lenders lists the lenders and servicers with a public REO contact page.
var Lenders = []Lender{
	{"Bank of America", "https://realestatecenter.bankofamerica.com"},
	{"Wells Fargo", "https://reo.wellsfargo.com"},
	{"Chase Bank", "https://www.chase.com/personal/mortgage/reo"},
	{"US Bank", "https://www.usbank.com/home-loans/reo.html"},
	{"Citibank", "https://www.citibank.com/reo"},
	{"PNC Bank", "https://www.pnc.com/en/personal-banking/home-lending.html"},
	{"Truist Bank", "https://www.truist.com/mortgage/reo"},
	{"Capital One", "https://www.capitalone.com"},
	{"Flagstar Bank", "https://www.flagstar.com/reo"},
	{"Mr. Cooper", "https://www.mrcooper.com"},
	{"Nationstar Mortgage", "https://www.mrcooper.com"},
	{"Ocwen Financial", "https://www.phhmortgage.com"},
	{"PHH Mortgage", "https://www.phhmortgage.com"},
	{"Shellpoint Mortgage", "https://www.shellpointmtg.com"},
	{"Freedom Mortgage", "https://www.freedommortgage.com"},
	{"Caliber Home Loans", "https://www.newrez.com"},
	{"NewRez LLC", "https://www.newrez.com"},
}

// genericLenderWords never identify a lender on their own.
var genericLenderWords = map[string]bool{
	"BANK": true, "MORTGAGE": true, "FINANCIAL": true, "HOME": true,
	"LOANS": true, "LLC": true, "AMERICA": true,
}

// BankContactURL returns the REO contact page for a lender name. Matching is
// exact first, then by containment, then on the lender's first distinctive
// word ("WELLS FARGO BANK NA" matches "Wells Fargo").
func BankContactURL(entity string) string {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return ""
	}
	for _, l := range Lenders {
		if strings.EqualFold(l.Name, entity) {
			return l.ContactURL
		}
	}
	upper := strings.ToUpper(entity)
	for _, l := range Lenders {
		if strings.Contains(upper, strings.ToUpper(l.Name)) {
			return l.ContactURL
		}
	}
	for _, l := range Lenders {
		if key := distinctiveWord(l.Name); key != "" && strings.Contains(upper, key) {
			return l.ContactURL
		}
	}
	return ""
}

func distinctiveWord(name string) string {
	for _, w := range strings.Fields(strings.ToUpper(name)) {
		w = strings.Trim(w, ".,")
		if len(w) >= 4 && !genericLenderWords[w] {
			return w
		}
	}
	return ""
}

// platformFor derives the platform label from the source tag and, for some
// sources, the record's sale type.
func platformFor(source string, raw model.RawRecord) string {
	saleType := strings.ToLower(raw.String("sale_type", "sale_trans_type"))
	distressed := strings.Contains(saleType, "foreclosure") || strings.Contains(saleType, "reo")

	switch source {
	case model.SourceBatchData:
		return PlatformBatchData
	case model.SourceATTOMSale:
		if distressed {
			return PlatformBankForeclosure
		}
		return PlatformAuctionCom
	case model.SourceATTOMProp, model.SourceAuctionCom:
		return PlatformAuctionCom
	case model.SourceRedfin:
		if distressed {
			return PlatformRedfinForeclosure
		}
		return PlatformRedfin
	case model.SourceSheriff:
		return PlatformSheriff
	default:
		return PlatformBankForeclosure
	}
}
