package region

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// abbrToState maps lowercase state abbreviations to lowercase full names.
var abbrToState = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut", "de": "delaware",
	"fl": "florida", "ga": "georgia", "hi": "hawaii", "id": "idaho",
	"il": "illinois", "in": "indiana", "ia": "iowa", "ks": "kansas",
	"ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi",
	"mo": "missouri", "mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico", "ny": "new york",
	"nc": "north carolina", "nd": "north dakota", "oh": "ohio", "ok": "oklahoma",
	"or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "district of columbia",
}

var stateToAbbr = func() map[string]string {
	m := make(map[string]string, len(abbrToState))
	for abbr, full := range abbrToState {
		m[full] = abbr
	}
	return m
}()

// NormalizeState returns the title-cased full state name for an abbreviation
// or any casing of the full name. Unknown input is title-cased as-is.
func NormalizeState(state string) string {
	lower := strings.ToLower(strings.Join(strings.Fields(state), " "))
	if lower == "" {
		return ""
	}
	if full, ok := abbrToState[lower]; ok {
		return title(full)
	}
	return title(lower)
}

// StateAbbr returns the uppercase two-letter code for a state, or "" if unknown.
func StateAbbr(state string) string {
	lower := strings.ToLower(strings.TrimSpace(state))
	if _, ok := abbrToState[lower]; ok {
		return strings.ToUpper(lower)
	}
	if abbr, ok := stateToAbbr[lower]; ok {
		return strings.ToUpper(abbr)
	}
	return ""
}

// TitleCity normalizes a city name such as "GRANTS PASS" to "Grants Pass".
func TitleCity(city string) string {
	city = strings.Join(strings.Fields(city), " ")
	if city == "" {
		return ""
	}
	return title(strings.ToLower(city))
}

// title allocates a Caser per call; Casers are stateful and not safe to share.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
