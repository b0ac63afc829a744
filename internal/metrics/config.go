package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auction-cli/internal/config"
)

// WeightSum returns the sum of the four sub-score weights.
func WeightSum(c config.ScoringConfig) float64 {
	return c.ProfitMarginWeight + c.RepairEfficiencyWeight + c.NeighborhoodWeight + c.CharacteristicsWeight
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := map[string]float64{
		"profit_margin_weight":     c.ProfitMarginWeight,
		"repair_efficiency_weight": c.RepairEfficiencyWeight,
		"neighborhood_weight":      c.NeighborhoodWeight,
		"characteristics_weight":   c.CharacteristicsWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	// Weights should be close to 100 (allow tolerance for floating-point).
	if sum := WeightSum(c); math.Abs(sum-100) > 1 {
		errs = append(errs, fmt.Sprintf("weights should sum to 100, got %.1f", sum))
	}

	// Cost assumptions.
	for name, pct := range map[string]float64{
		"closing_cost_pct":           c.ClosingCostPct,
		"holding_cost_pct_per_month": c.HoldingCostPctPerMonth,
		"selling_cost_pct":           c.SellingCostPct,
	} {
		if pct < 0 || pct >= 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0, 1)", name))
		}
	}
	if c.HoldingMonths < 0 {
		errs = append(errs, "holding_months must be >= 0")
	}

	// Bands.
	if c.MarginGood < 0 || c.MarginExcellent <= c.MarginGood {
		errs = append(errs, "margin_excellent must be > margin_good >= 0")
	}
	if c.RepairRatioLow < 0 || c.RepairRatioMid < c.RepairRatioLow {
		errs = append(errs, "repair_ratio_mid must be >= repair_ratio_low >= 0")
	}
	if c.RepairDecayRate < 0 {
		errs = append(errs, "repair_decay_rate must be >= 0")
	}
	if c.AcceptableSqftMin > c.IdealSqftMin || c.IdealSqftMin > c.IdealSqftMax || c.IdealSqftMax > c.AcceptableSqftMax {
		errs = append(errs, "sqft bands must satisfy acceptable_min <= ideal_min <= ideal_max <= acceptable_max")
	}
	if c.IdealBedsMin > c.IdealBedsMax {
		errs = append(errs, "ideal_beds_max must be >= ideal_beds_min")
	}
	if c.PartialBaths > c.GoodBaths {
		errs = append(errs, "good_baths must be >= partial_baths")
	}
	if c.NewAgeYears > c.MidAgeYears || c.MidAgeYears > c.OldAgeYears {
		errs = append(errs, "age bands must satisfy new <= mid <= old")
	}

	// Thresholds.
	if c.MinDealScore < 0 || c.MinDealScore > 100 {
		errs = append(errs, "min_deal_score must be between 0 and 100")
	}
	if c.MaxRepairCost < 0 {
		errs = append(errs, "max_repair_cost must be >= 0")
	}
	if c.MaxBidARVRatio <= 0 || c.MaxBidARVRatio > 1 {
		errs = append(errs, "max_bid_arv_ratio must be in (0, 1]")
	}
	if c.MaxBidDiscount < 0 || c.MaxBidDiscount >= 1 {
		errs = append(errs, "max_bid_discount must be in [0, 1)")
	}

	if len(errs) > 0 {
		return eris.Errorf("metrics: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DefaultScoringConfig returns a config.ScoringConfig with the stock cost
// assumptions, weights and bands. Weights sum to 100.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		ClosingCostPct:         0.03,
		HoldingCostPctPerMonth: 0.01,
		HoldingMonths:          6,
		SellingCostPct:         0.08,

		ProfitMarginWeight:     40,
		RepairEfficiencyWeight: 20,
		NeighborhoodWeight:     20,
		CharacteristicsWeight:  20,

		MinProfitMargin: 30,
		MaxRepairCost:   80_000,
		MinDealScore:    60,

		MarginExcellent: 40,
		MarginGood:      30,
		RepairRatioLow:  0.15,
		RepairRatioMid:  0.30,
		RepairDecayRate: 50,

		IdealSqftMin:      1500,
		IdealSqftMax:      3000,
		AcceptableSqftMin: 1200,
		AcceptableSqftMax: 3500,
		IdealBedsMin:      3,
		IdealBedsMax:      4,
		GoodBaths:         2,
		PartialBaths:      1.5,
		NewAgeYears:       20,
		MidAgeYears:       40,
		OldAgeYears:       60,

		MaxBidARVRatio: 0.70,
		MaxBidDiscount: 0.09,
	}
}
