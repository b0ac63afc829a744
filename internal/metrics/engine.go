// Package metrics computes costs, profit, maximum bid and the 0-100 deal score
// for a property.
package metrics

import (
	"math"
	"time"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/model"
)

// Characteristic credit levels, as a fraction of one criterion's share.
const (
	fullCredit    = 1.0
	partialCredit = 0.6
	minimalCredit = 0.2
)

// CostBreakdown itemizes the money flowing into and out of a deal.
type CostBreakdown struct {
	AcquisitionPrice float64 `json:"acquisition_price"`
	Repairs          float64 `json:"repairs"`
	ClosingCosts     float64 `json:"closing_costs"`
	HoldingCosts     float64 `json:"holding_costs"`
	SellingCosts     float64 `json:"selling_costs"`
	TotalInvestment  float64 `json:"total_investment"`
	ARV              float64 `json:"arv"`
	ProfitPotential  float64 `json:"profit_potential"`
	ProfitMargin     float64 `json:"profit_margin"`
}

// ScoreBreakdown holds the weighted sub-scores that make up a deal score.
type ScoreBreakdown struct {
	ProfitMargin     float64 `json:"profit_margin"`
	RepairEfficiency float64 `json:"repair_efficiency"`
	Neighborhood     float64 `json:"neighborhood"`
	Characteristics  float64 `json:"characteristics"`
	Total            float64 `json:"total"`
}

// Engine applies a scoring configuration to properties. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	cfg config.ScoringConfig
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow sets the clock used to compute building age.
func WithNow(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// NewEngine creates an Engine for the given configuration.
func NewEngine(cfg config.ScoringConfig, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the scoring configuration in use.
func (e *Engine) Config() config.ScoringConfig { return e.cfg }

// Calculate rewrites every computed field of p from its current inputs.
// Calling it again with unchanged inputs yields the same values.
func (e *Engine) Calculate(p *model.Property) {
	costs := e.Breakdown(p)
	score := e.Score(p)

	p.TotalInvestment = round2(costs.TotalInvestment)
	p.ProfitPotential = round2(costs.ProfitPotential)
	p.ProfitMargin = round2(costs.ProfitMargin)
	p.MaxBidPrice = round2(e.MaxBid(p))
	p.DealScore = score.Total
	p.Recommended = e.recommend(costs.ProfitMargin, p)
}

// Breakdown itemizes the costs and profit of p without modifying it.
func (e *Engine) Breakdown(p *model.Property) CostBreakdown {
	b := CostBreakdown{
		AcquisitionPrice: p.AuctionPrice,
		Repairs:          p.EstimatedRepairs,
		ARV:              p.EstimatedARV,
		ClosingCosts:     p.AuctionPrice * e.cfg.ClosingCostPct,
		HoldingCosts:     p.EstimatedARV * e.cfg.HoldingCostPctPerMonth * float64(e.cfg.HoldingMonths),
		SellingCosts:     p.EstimatedARV * e.cfg.SellingCostPct,
	}
	b.TotalInvestment = b.AcquisitionPrice + b.Repairs + b.ClosingCosts + b.HoldingCosts
	b.ProfitPotential = b.ARV - b.TotalInvestment - b.SellingCosts
	if b.ARV > 0 {
		b.ProfitMargin = b.ProfitPotential / b.ARV * 100
	}
	return b
}

// MaxBid returns the 70%-rule bid ceiling after the safety discount, floored
// at zero.
func (e *Engine) MaxBid(p *model.Property) float64 {
	bid := (e.cfg.MaxBidARVRatio*p.EstimatedARV - p.EstimatedRepairs) * (1 - e.cfg.MaxBidDiscount)
	return math.Max(0, bid)
}

// Recommend reports whether p clears every threshold. The margin is
// recomputed unrounded, the same value the margin sub-score sees.
// Comparisons are inclusive.
func (e *Engine) Recommend(p *model.Property) bool {
	return e.recommend(e.Breakdown(p).ProfitMargin, p)
}

func (e *Engine) recommend(margin float64, p *model.Property) bool {
	return margin >= e.cfg.MinProfitMargin &&
		p.EstimatedRepairs <= e.cfg.MaxRepairCost &&
		p.DealScore >= e.cfg.MinDealScore
}

// Score computes the weighted sub-scores and the clamped total.
func (e *Engine) Score(p *model.Property) ScoreBreakdown {
	margin := e.Breakdown(p).ProfitMargin
	s := ScoreBreakdown{
		ProfitMargin:     e.marginScore(margin),
		RepairEfficiency: e.repairScore(p.EstimatedRepairs, p.AuctionPrice),
		Neighborhood:     e.neighborhoodScore(p.NeighborhoodScore),
		Characteristics:  e.characteristicsScore(p),
	}
	s.Total = round2(clamp(s.ProfitMargin+s.RepairEfficiency+s.Neighborhood+s.Characteristics, 0, 100))
	return s
}

func (e *Engine) marginScore(m float64) float64 {
	w := e.cfg.ProfitMarginWeight
	exc, good := e.cfg.MarginExcellent, e.cfg.MarginGood
	switch {
	case w <= 0 || exc <= 0:
		return 0
	case m >= exc:
		return w
	case m >= good && exc > good:
		return 0.75*w + 0.25*w*(m-good)/(exc-good)
	default:
		return math.Max(0, m/exc*w)
	}
}

func (e *Engine) repairScore(repairs, price float64) float64 {
	w := e.cfg.RepairEfficiencyWeight
	if w <= 0 {
		return 0
	}
	ratio := repairRatio(repairs, price)
	switch {
	case ratio <= e.cfg.RepairRatioLow:
		return w
	case ratio <= e.cfg.RepairRatioMid:
		return 0.75 * w
	default:
		return math.Max(0, 0.5*w-(ratio-e.cfg.RepairRatioMid)*e.cfg.RepairDecayRate)
	}
}

// repairRatio is repairs/price. A zero price with repairs is unbounded.
func repairRatio(repairs, price float64) float64 {
	if price <= 0 {
		if repairs <= 0 {
			return 0
		}
		return math.Inf(1)
	}
	return repairs / price
}

func (e *Engine) neighborhoodScore(score int) float64 {
	return float64(clampInt(score, 1, 10)) / 10 * e.cfg.NeighborhoodWeight
}

func (e *Engine) characteristicsScore(p *model.Property) float64 {
	c := e.cfg
	share := c.CharacteristicsWeight / 4
	if share <= 0 {
		return 0
	}

	var credit float64

	switch {
	case p.Sqft >= c.IdealSqftMin && p.Sqft <= c.IdealSqftMax:
		credit += fullCredit
	case p.Sqft >= c.AcceptableSqftMin && p.Sqft <= c.AcceptableSqftMax:
		credit += partialCredit
	}

	switch {
	case p.Bedrooms >= c.IdealBedsMin && p.Bedrooms <= c.IdealBedsMax:
		credit += fullCredit
	case p.Bedrooms == c.IdealBedsMin-1 || p.Bedrooms == c.IdealBedsMax+1:
		credit += partialCredit
	}

	switch {
	case p.Bathrooms >= c.GoodBaths:
		credit += fullCredit
	case p.Bathrooms >= c.PartialBaths:
		credit += partialCredit
	}

	if p.YearBuilt > 0 {
		age := e.now().Year() - p.YearBuilt
		switch {
		case age <= c.NewAgeYears:
			credit += fullCredit
		case age <= c.MidAgeYears:
			credit += partialCredit
		case age <= c.OldAgeYears:
			credit += minimalCredit
		}
	}

	return credit * share
}

// AlertLevel returns the alert label for a profit margin, or "" when the
// margin is below every level.
func AlertLevel(margin float64, levels config.AlertConfig) string {
	switch {
	case margin >= levels.HotMargin:
		return "HOT DEAL"
	case margin >= levels.ExcellentMargin:
		return "EXCELLENT"
	case margin >= levels.GoodMargin:
		return "GOOD"
	default:
		return ""
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
