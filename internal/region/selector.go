package region

import (
	"sort"
	"strings"
)

// Wildcard entries in an active-region list that enable every region.
const (
	allRegions = "*"
	allKeyword = "all"
)

// Selection is the enabled set for one state.
type Selection struct {
	All     bool
	Regions []string
}

// AllRegions enables every region of a state.
func AllRegions() Selection { return Selection{All: true} }

// OnlyRegions enables the named regions of a state.
func OnlyRegions(names ...string) Selection { return Selection{Regions: names} }

// NoRegions disables a state.
func NoRegions() Selection { return Selection{} }

func (s Selection) enabled(region string) bool {
	if s.All {
		return true
	}
	for _, r := range s.Regions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}

func (s Selection) empty() bool { return !s.All && len(s.Regions) == 0 }

// Selector decides which (state, region) buckets are sampled. States that are
// absent are disabled.
type Selector struct {
	states map[string]Selection
}

// NewSelector builds a selector from an active-region table: a list holding
// "*" or "all" enables the whole state, an empty list disables it, anything
// else is an allow-list.
func NewSelector(active map[string][]string) Selector {
	sel := Selector{states: make(map[string]Selection, len(active))}
	for state, names := range active {
		sel.Set(state, selectionFor(names))
	}
	return sel
}

func selectionFor(names []string) Selection {
	var keep []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == allRegions || strings.EqualFold(n, allKeyword) {
			return AllRegions()
		}
		if n != "" {
			keep = append(keep, n)
		}
	}
	return OnlyRegions(keep...)
}

// Set replaces the selection for a state.
func (s *Selector) Set(state string, sel Selection) {
	if s.states == nil {
		s.states = make(map[string]Selection)
	}
	s.states[NormalizeState(state)] = sel
}

// Enabled reports whether a region of a state is selected.
func (s Selector) Enabled(state, region string) bool {
	sel, ok := s.states[NormalizeState(state)]
	return ok && sel.enabled(region)
}

// StateEnabled reports whether any region of a state is selected.
func (s Selector) StateEnabled(state string) bool {
	sel, ok := s.states[NormalizeState(state)]
	return ok && !sel.empty()
}

// EnabledStates returns the sorted states with at least one enabled region.
func (s Selector) EnabledStates() []string {
	var out []string
	for state, sel := range s.states {
		if !sel.empty() {
			out = append(out, state)
		}
	}
	sort.Strings(out)
	return out
}
