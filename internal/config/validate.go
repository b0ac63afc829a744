package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the run-level settings that are not owned by a single
// component. Scoring weights and bands are validated by metrics.ValidateConfig.
func (c *Config) Validate() error {
	var errs []string

	p := c.Pipeline
	if p.Limit <= 0 {
		errs = append(errs, "pipeline.limit must be > 0")
	}
	if p.SampleSize <= 0 {
		errs = append(errs, "pipeline.sample_size must be > 0")
	}
	if p.CandidateMultiplier < 1 {
		errs = append(errs, "pipeline.candidate_multiplier must be >= 1")
	}
	if p.Concurrency < 1 {
		errs = append(errs, "pipeline.concurrency must be >= 1")
	}
	if !oneOf(p.PricePolicy, PricePolicyReject, PricePolicyEstimate) {
		errs = append(errs, fmt.Sprintf("pipeline.price_policy must be %q or %q, got %q",
			PricePolicyReject, PricePolicyEstimate, p.PricePolicy))
	}
	if !oneOf(p.RepairPolicy, RepairPolicyAgeTiered, RepairPolicyZero) {
		errs = append(errs, fmt.Sprintf("pipeline.repair_policy must be %q or %q, got %q",
			RepairPolicyAgeTiered, RepairPolicyZero, p.RepairPolicy))
	}
	if !oneOf(p.PastAuctionPolicy, PastAuctionExclude, PastAuctionReproject) {
		errs = append(errs, fmt.Sprintf("pipeline.past_auction_policy must be %q or %q, got %q",
			PastAuctionExclude, PastAuctionReproject, p.PastAuctionPolicy))
	}

	m := c.Market
	if m.MinPrice < 0 {
		errs = append(errs, "market.min_price must be >= 0")
	}
	if m.MaxPrice <= m.MinPrice {
		errs = append(errs, "market.max_price must be > market.min_price")
	}
	if m.DefaultPricePerSqft <= 0 {
		errs = append(errs, "market.default_price_per_sqft must be > 0")
	}
	for state, rate := range m.PricePerSqft {
		if rate <= 0 {
			errs = append(errs, fmt.Sprintf("market.price_per_sqft[%s] must be > 0", state))
		}
	}
	if len(m.ActiveRegions) == 0 {
		errs = append(errs, "market.active_regions must name at least one state")
	}

	if c.Breaker.FailureThreshold < 1 {
		errs = append(errs, "breaker.failure_threshold must be >= 1")
	}
	if c.Enrich.MaxValuationCalls < 0 {
		errs = append(errs, "enrich.max_valuation_calls must be >= 0")
	}
	if !oneOf(c.Store.Driver, "sqlite", "postgres") {
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// StateRegions returns the active-region entry for a state, matching keys
// case-insensitively. ok is false when the state is not configured at all.
func (m MarketConfig) StateRegions(state string) (regions []string, ok bool) {
	if r, found := m.ActiveRegions[strings.ToLower(state)]; found {
		return r, true
	}
	for k, r := range m.ActiveRegions {
		if strings.EqualFold(k, state) {
			return r, true
		}
	}
	return nil, false
}

func oneOf(s string, allowed ...string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
