// Package dedup removes listings that several sources report for the same
// street address within one run.
package dedup

import (
	"strings"
	"sync"
)

var stripper = strings.NewReplacer(".", "", ",", " ", "#", " ")

// abbreviations expands street types and directionals to their long form.
var abbreviations = map[string]string{
	"ST":   "STREET",
	"DR":   "DRIVE",
	"AVE":  "AVENUE",
	"AV":   "AVENUE",
	"RD":   "ROAD",
	"LN":   "LANE",
	"CT":   "COURT",
	"BLVD": "BOULEVARD",
	"PL":   "PLACE",
	"CIR":  "CIRCLE",
	"HWY":  "HIGHWAY",
	"PKWY": "PARKWAY",
	"TER":  "TERRACE",
	"TRL":  "TRAIL",
	"WY":   "WAY",
	"SQ":   "SQUARE",
	"APT":  "APARTMENT",
	"STE":  "SUITE",
	"N":    "NORTH",
	"S":    "SOUTH",
	"E":    "EAST",
	"W":    "WEST",
	"NE":   "NORTHEAST",
	"NW":   "NORTHWEST",
	"SE":   "SOUTHEAST",
	"SW":   "SOUTHWEST",
}

// NormalizeAddress returns the comparison key for a street address:
// uppercased, punctuation stripped, whitespace collapsed and abbreviations
// expanded. The leading house number is left as-is.
func NormalizeAddress(address string) string {
	tokens := strings.Fields(strings.ToUpper(stripper.Replace(address)))
	for i, tok := range tokens {
		if i == 0 && isHouseNumber(tok) {
			continue
		}
		if long, ok := abbreviations[tok]; ok {
			tokens[i] = long
		}
	}
	return strings.Join(tokens, " ")
}

func isHouseNumber(tok string) bool {
	return tok != "" && tok[0] >= '0' && tok[0] <= '9'
}

// Set tracks the normalized addresses accepted in one run. It is safe for
// concurrent use.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add reports whether address is new. Blank addresses are never accepted.
func (s *Set) Add(address string) bool {
	key := NormalizeAddress(address)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len returns the number of accepted addresses.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
