// Package allocate selects a region-balanced subset of candidate properties
// and renumbers the selection for display.
package allocate

import (
	"fmt"
	"math/rand/v2"

	"github.com/sells-group/auction-cli/internal/model"
)

// Allocate returns at most limit properties. Every region with a candidate
// contributes at least one property when limit >= the number of regions; each
// region gets up to limit/regions picks first and the remainder is filled
// from a shuffled pool of leftovers. The input slice is not modified.
func Allocate(props []*model.Property, limit int, rng *rand.Rand) []*model.Property {
	if limit <= 0 {
		return nil
	}
	if len(props) <= limit {
		out := make([]*model.Property, len(props))
		copy(out, props)
		return out
	}

	var order []string
	groups := make(map[string][]*model.Property)
	for _, p := range props {
		if _, ok := groups[p.Region]; !ok {
			order = append(order, p.Region)
		}
		groups[p.Region] = append(groups[p.Region], p)
	}

	perRegion := max(1, limit/len(order))

	out := make([]*model.Property, 0, limit)
	var leftovers []*model.Property
	for _, r := range order {
		g := append([]*model.Property(nil), groups[r]...)
		shuffle(rng, g)
		n := min(perRegion, len(g))
		out = append(out, g[:n]...)
		leftovers = append(leftovers, g[n:]...)
	}

	if len(out) < limit {
		shuffle(rng, leftovers)
		out = append(out, leftovers[:min(limit-len(out), len(leftovers))]...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func shuffle(rng *rand.Rand, ps []*model.Property) {
	if rng == nil {
		return
	}
	rng.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })
}

// ReassignIDs renumbers properties as <PREFIX>-0001, <PREFIX>-0002, ... with
// an independent sequence per source prefix, in slice order. Listing URLs
// built from the old id are rewritten.
func ReassignIDs(props []*model.Property) {
	seq := make(map[string]int)
	for _, p := range props {
		prefix := model.IDPrefix(p.DataSource)
		seq[prefix]++
		newID := fmt.Sprintf("%s-%04d", prefix, seq[prefix])
		if p.ID != "" && p.PropertyURL != "" {
			p.PropertyURL = replaceSuffix(p.PropertyURL, "/listing/"+p.ID, "/listing/"+newID)
		}
		p.ID = newID
	}
}

func replaceSuffix(s, old, repl string) string {
	if len(s) >= len(old) && s[len(s)-len(old):] == old {
		return s[:len(s)-len(old)] + repl
	}
	return s
}
