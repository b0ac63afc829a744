package builder

import (
	"strings"

	"github.com/sells-group/auction-cli/internal/region"
)

// Property type categories.
const (
	TypeSingleFamily = "Single Family"
	TypeCondo        = "Condo"
	TypeTownhouse    = "Townhouse"
	TypeMultiFamily  = "Multi-Family"
	TypeManufactured = "Manufactured"
	TypeLand         = "Land"
)

// propertyTypeRules map lowercase fragments of a source's type label to a
// category. Order matters: "single family residential" must not fall through
// to a later rule.
var propertyTypeRules = []struct {
	fragments []string
	category  string
}{
	{[]string{"single family", "single-family", "sfr", "sfh", "detached"}, TypeSingleFamily},
	{[]string{"condo"}, TypeCondo},
	{[]string{"townho", "row house"}, TypeTownhouse},
	{[]string{"multi", "duplex", "triplex", "fourplex", "quadruplex", "2-4 unit"}, TypeMultiFamily},
	{[]string{"mobile", "manufactured"}, TypeManufactured},
	{[]string{"land", "lot", "vacant"}, TypeLand},
}

// PropertyType maps a source's type label ("Single Family Residential",
// "SFR", "CONDOMINIUM") to one category. A blank or bare "Residential" label
// is a single-family home; unknown labels are title-cased.
func PropertyType(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" || l == "residential" {
		return DefaultPropertyType
	}
	for _, r := range propertyTypeRules {
		for _, f := range r.fragments {
			if strings.Contains(l, f) {
				return r.category
			}
		}
	}
	return region.TitleCity(label)
}
