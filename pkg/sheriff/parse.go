package sheriff

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage and sale type reported for every listing.
const (
	StageScheduled = "Sheriff Sale Scheduled"
	SaleType       = "Sheriff Sale"
)

// Listing is one scheduled sheriff's sale.
type Listing struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	County      string `json:"county"`
	Region      string `json:"region"`
	AuctionDate string `json:"auction_date"` // YYYY-MM-DD when parseable
	SaleTime    string `json:"sale_time"`
	CaseTitle   string `json:"case_title"`
	Plaintiff   string `json:"plaintiff"`
	PDFURL      string `json:"pdf_url"`
	ListingURL  string `json:"listing_url"`
}

// ParseCountyPage extracts the listing cards of a county page. Cards without
// a usable address are skipped.
func ParseCountyPage(r io.Reader, county string) ([]Listing, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}

	var out []Listing
	for _, card := range findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClass(n, "property-listing-card")
	}) {
		if l, ok := parseCard(card, county); ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func parseCard(card *html.Node, county string) (Listing, bool) {
	var raw string
	if ex := findFirst(card, func(n *html.Node) bool { return hasClass(n, "fl-post-excerpt") }); ex != nil {
		raw = text(ex)
	}
	if raw == "" {
		return Listing{}, false
	}
	street, city, zip := ParseAddress(raw)
	if street == "" {
		return Listing{}, false
	}

	county = strings.ToLower(county)
	l := Listing{
		Address: street,
		City:    city,
		State:   "Oregon",
		Zip:     zip,
		County:  cases.Title(language.English).String(county),
		Region:  RegionForCounty(county),
	}
	if l.Region == "" {
		l.Region = "Oregon"
	}

	title := findFirst(card, func(n *html.Node) bool { return n.DataAtom == atom.H2 })
	if title == nil {
		title = findFirst(card, func(n *html.Node) bool { return n.DataAtom == atom.Strong })
	}
	if title != nil {
		l.CaseTitle = text(title)
		l.Plaintiff = Plaintiff(l.CaseTitle)
	}

	for _, n := range findAll(card, func(n *html.Node) bool { return hasClass(n, "fl-post-more-link") }) {
		t := text(n)
		switch {
		case strings.HasPrefix(t, "Sale Date:"):
			l.AuctionDate = isoDate(strings.TrimSpace(strings.TrimPrefix(t, "Sale Date:")))
		case strings.HasPrefix(t, "Sale Time:"):
			l.SaleTime = strings.TrimSpace(strings.TrimPrefix(t, "Sale Time:"))
		}
	}

	for _, a := range findAll(card, func(n *html.Node) bool { return n.DataAtom == atom.A }) {
		href := attr(a, "href")
		switch {
		case strings.HasSuffix(strings.ToLower(href), ".pdf") && l.PDFURL == "":
			l.PDFURL = href
		case strings.Contains(href, "/property-listing/") && l.ListingURL == "":
			l.ListingURL = href
		}
	}
	return l, true
}

var (
	zipRe   = regexp.MustCompile(`(\d{5})(?:-\d{4})?$`)
	stateRe = regexp.MustCompile(`(?i),?\s+(OR|Oregon)\s*$`)
	splitRe = regexp.MustCompile(`(?i)\s+vs?\.?\s+`)
)

// knownCities resolves comma-less addresses. Longer names come first so
// multi-word cities win over their last word.
var knownCities = []string{
	"Klamath Falls", "Cottage Grove", "Happy Valley", "Powell Butte", "Grants Pass",
	"Lake Oswego", "Oregon City", "McMinnville", "Springfield", "Terrebonne",
	"Prineville", "Beaverton", "Hillsboro", "Milwaukie", "Silverton", "Clackamas",
	"Troutdale", "Corvallis", "West Linn", "Woodburn", "Sunriver", "Fairview",
	"Florence", "Portland", "Roseburg", "Ashland", "Gresham", "Redmond", "Sisters",
	"Stayton", "La Pine", "Newberg", "Medford", "Madras", "Albany", "Keizer",
	"Tigard", "Eugene", "Salem", "Bend",
}

// ParseAddress splits a one-line Oregon address such as
// "428 SE Warsaw St. Redmond, OR 97756" into street, city and zip.
func ParseAddress(raw string) (street, city, zip string) {
	raw = strings.TrimSpace(raw)
	if m := zipRe.FindStringSubmatchIndex(raw); m != nil {
		zip = raw[m[2]:m[3]]
		raw = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(raw[:m[0]]), ","))
	}
	raw = strings.TrimSpace(stateRe.ReplaceAllString(raw, ""))

	if i := strings.LastIndex(raw, ","); i >= 0 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:]), zip
	}
	street, city = splitStreetCity(raw)
	return street, city, zip
}

func splitStreetCity(raw string) (street, city string) {
	lower := strings.ToLower(raw)
	for _, c := range knownCities {
		suffix := " " + strings.ToLower(c)
		if strings.HasSuffix(lower, suffix) && len(raw) > len(suffix) {
			return strings.TrimSpace(raw[:len(raw)-len(suffix)]), c
		}
	}

	words := strings.Fields(raw)
	switch {
	case len(words) >= 3:
		return strings.Join(words[:len(words)-1], " "), words[len(words)-1]
	case len(words) == 2:
		return words[0], words[1]
	}
	return raw, ""
}

// preserved words keep their upper case when a plaintiff is title-cased.
var preserved = map[string]bool{
	"LLC": true, "LLP": true, "LP": true, "INC": true, "CORP": true,
	"NA": true, "USA": true, "VA": true, "HUD": true, "FHA": true,
}

// Plaintiff returns the foreclosing party of a "PLAINTIFF vs. DEFENDANT"
// case title, title-cased with entity suffixes kept upper case.
func Plaintiff(caseTitle string) string {
	parts := splitRe.Split(strings.TrimSpace(caseTitle), 2)
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	caser := cases.Title(language.English)
	words := strings.Fields(parts[0])
	for i, w := range words {
		core := strings.TrimRight(w, ",;")
		if preserved[strings.ToUpper(core)] {
			words[i] = strings.ToUpper(core) + w[len(core):]
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

func isoDate(s string) string {
	if t, err := time.Parse("01/02/2006", s); err == nil {
		return t.Format(time.DateOnly)
	}
	if t, err := time.Parse("1/2/2006", s); err == nil {
		return t.Format(time.DateOnly)
	}
	return s
}

// text renders n and returns its visible text with whitespace collapsed.
func text(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return strings.Join(strings.Fields(html2text.HTML2TextWithOptions(buf.String(), html2text.WithLinksInnerText())), " ")
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if all := findAll(root, match); len(all) > 0 {
		return all[0]
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
