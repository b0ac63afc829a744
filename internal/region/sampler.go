package region

import (
	"math/rand/v2"

	"go.uber.org/zap"
)

// SampleUnit is one query unit picked for a run.
type SampleUnit struct {
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
	Region string `json:"region"`
}

type bucket struct {
	state  string
	region string
	units  []SampleUnit
	next   int
}

func (b *bucket) remaining() bool { return b.next < len(b.units) }

func (b *bucket) take() SampleUnit {
	u := b.units[b.next]
	b.next++
	return u
}

// Sampler picks a bounded set of units from the enabled part of a catalog.
type Sampler struct {
	catalog  *Catalog
	selector Selector
	rng      *rand.Rand
}

// NewSampler creates a Sampler. rng drives the per-bucket shuffle.
func NewSampler(c *Catalog, sel Selector, rng *rand.Rand) *Sampler {
	return &Sampler{catalog: c, selector: sel, rng: rng}
}

// Available returns the number of enabled, distinct units.
func (s *Sampler) Available() int {
	n := 0
	for _, b := range s.buckets(false) {
		n += len(b.units)
	}
	return n
}

// Sample returns at most n units. Every enabled region contributes one unit
// before any region contributes a second; the remaining budget is filled
// round-robin across states and, within a state, across its regions. When n
// is smaller than the number of regions the first n regions in (state,
// region) order are covered.
func (s *Sampler) Sample(n int) []SampleUnit {
	if n <= 0 {
		return nil
	}
	buckets := s.buckets(true)

	total := 0
	for _, b := range buckets {
		total += len(b.units)
	}
	if total <= n {
		out := make([]SampleUnit, 0, total)
		for _, b := range buckets {
			out = append(out, b.units...)
		}
		return out
	}

	out := make([]SampleUnit, 0, n)
	for _, b := range buckets {
		if len(out) >= n {
			break
		}
		out = append(out, b.take())
	}

	var stateOrder []string
	byState := make(map[string][]*bucket)
	for _, b := range buckets {
		if _, ok := byState[b.state]; !ok {
			stateOrder = append(stateOrder, b.state)
		}
		byState[b.state] = append(byState[b.state], b)
	}
	cursor := make(map[string]int, len(stateOrder))

	for len(out) < n {
		progressed := false
		for _, state := range stateOrder {
			if len(out) >= n {
				break
			}
			group := byState[state]
			for k := range group {
				i := (cursor[state] + k) % len(group)
				if group[i].remaining() {
					out = append(out, group[i].take())
					cursor[state] = (i + 1) % len(group)
					progressed = true
					break
				}
			}
		}
		if !progressed {
			break
		}
	}

	zap.L().Debug("region: sampled units",
		zap.Int("requested", n),
		zap.Int("available", total),
		zap.Int("buckets", len(buckets)),
		zap.Int("sampled", len(out)),
	)
	return out
}

// buckets builds one bucket per enabled (state, region) in sorted order.
// Units repeated across regions are kept only in the first.
func (s *Sampler) buckets(shuffle bool) []*bucket {
	seen := make(map[string]bool)
	var out []*bucket
	for _, state := range s.catalog.States() {
		for _, name := range s.catalog.Regions(state) {
			if !s.selector.Enabled(state, name) {
				continue
			}
			b := &bucket{state: state, region: name}
			for _, u := range s.catalog.Units(state, name) {
				key := state + "|" + u.City + "|" + u.Zip
				if seen[key] {
					continue
				}
				seen[key] = true
				b.units = append(b.units, SampleUnit{City: u.City, State: state, Zip: u.Zip, Region: name})
			}
			if len(b.units) == 0 {
				continue
			}
			if shuffle && s.rng != nil {
				s.rng.Shuffle(len(b.units), func(i, j int) { b.units[i], b.units[j] = b.units[j], b.units[i] })
			}
			out = append(out, b)
		}
	}
	return out
}
