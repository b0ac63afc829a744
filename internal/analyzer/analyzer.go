// Package analyzer filters a scored property set and summarizes it: ranked
// deals, alerts for the strongest recommendations and market statistics.
package analyzer

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/metrics"
	"github.com/sells-group/auction-cli/internal/model"
)

// ErrNoProperties is returned when there is nothing to analyze.
var ErrNoProperties = eris.New("analyzer: no properties to analyze")

const (
	defaultTopDeals  = 20
	defaultMaxAlerts = 10
)

// Filter selects the properties worth analyzing. Empty slices match
// everything; a zero MaxPrice or MaxRepairs disables that bound.
type Filter struct {
	States        []string `json:"states,omitempty"`
	Regions       []string `json:"regions,omitempty"`
	MinPrice      float64  `json:"min_price,omitempty"`
	MaxPrice      float64  `json:"max_price,omitempty"`
	MaxRepairs    float64  `json:"max_repairs,omitempty"`
	PropertyTypes []string `json:"property_types,omitempty"`
}

// DefaultFilter builds the filter from the market and scoring settings.
func DefaultFilter(cfg *config.Config) Filter {
	return Filter{
		States:        cfg.Market.TargetStates,
		MinPrice:      cfg.Market.MinPrice,
		MaxPrice:      cfg.Market.MaxPrice,
		MaxRepairs:    cfg.Scoring.MaxRepairCost,
		PropertyTypes: cfg.Market.PropertyTypes,
	}
}

// Match reports whether p passes every criterion.
func (f Filter) Match(p *model.Property) bool {
	switch {
	case len(f.States) > 0 && !containsFold(f.States, p.State):
		return false
	case len(f.Regions) > 0 && !containsFold(f.Regions, p.Region):
		return false
	case p.AuctionPrice < f.MinPrice:
		return false
	case f.MaxPrice > 0 && p.AuctionPrice > f.MaxPrice:
		return false
	case f.MaxRepairs > 0 && p.EstimatedRepairs > f.MaxRepairs:
		return false
	case len(f.PropertyTypes) > 0 && !containsFold(f.PropertyTypes, p.PropertyType):
		return false
	}
	return true
}

// Apply returns the properties that match, in input order.
func (f Filter) Apply(props []*model.Property) []*model.Property {
	out := make([]*model.Property, 0, len(props))
	for _, p := range props {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Analyzer summarizes property sets.
type Analyzer struct {
	alerts config.AlertConfig
	log    *zap.Logger
}

// New creates an Analyzer with the given alert levels and result sizes.
func New(alerts config.AlertConfig) *Analyzer {
	if alerts.TopDeals <= 0 {
		alerts.TopDeals = defaultTopDeals
	}
	if alerts.MaxAlerts <= 0 {
		alerts.MaxAlerts = defaultMaxAlerts
	}
	return &Analyzer{
		alerts: alerts,
		log:    zap.L().With(zap.String("component", "analyzer")),
	}
}

// Analyze ranks props by deal score and computes alerts and statistics.
// The result holds copies; later changes to props do not affect it.
func (a *Analyzer) Analyze(props []*model.Property, now time.Time) (*model.AnalysisResult, error) {
	if len(props) == 0 {
		return nil, ErrNoProperties
	}

	sorted := make([]model.Property, len(props))
	for i, p := range props {
		sorted[i] = *p
	}
	sortByScore(sorted)

	var (
		recommended      int
		marginSum, score float64
	)
	for i := range sorted {
		if sorted[i].Recommended {
			recommended++
		}
		marginSum += sorted[i].ProfitMargin
		score += sorted[i].DealScore
	}
	n := float64(len(sorted))

	top := sorted[:min(a.alerts.TopDeals, len(sorted))]
	res := &model.AnalysisResult{
		TotalProperties:  len(sorted),
		RecommendedDeals: recommended,
		AvgProfitMargin:  round2(marginSum / n),
		AvgDealScore:     round2(score / n),
		TopDeals:         slices.Clone(top),
		AllProperties:    sorted,
		Alerts:           a.buildAlerts(sorted),
		Statistics:       statistics(sorted),
		Timestamp:        now.UTC(),
	}

	a.log.Info("analysis complete",
		zap.Int("properties", res.TotalProperties),
		zap.Int("recommended", res.RecommendedDeals),
		zap.Int("alerts", len(res.Alerts)),
	)
	return res, nil
}

// buildAlerts flags the first MaxAlerts recommended deals, in score order,
// whose margin clears an alert level.
func (a *Analyzer) buildAlerts(sorted []model.Property) []model.Alert {
	alerts := []model.Alert{}
	seen := 0
	for i := range sorted {
		p := &sorted[i]
		if !p.Recommended {
			continue
		}
		if seen == a.alerts.MaxAlerts {
			break
		}
		seen++
		level := metrics.AlertLevel(p.ProfitMargin, a.alerts)
		if level == "" {
			continue
		}
		alerts = append(alerts, model.Alert{
			Level:           level,
			PropertyID:      p.ID,
			Address:         p.FullAddress(),
			ProfitMargin:    p.ProfitMargin,
			ProfitPotential: p.ProfitPotential,
			MaxBidPrice:     p.MaxBidPrice,
			AuctionDate:     p.AuctionDate,
			DealScore:       p.DealScore,
		})
	}
	return alerts
}

// TopDeals returns the n highest-scoring properties.
func TopDeals(props []*model.Property, n int) []*model.Property {
	out := slices.Clone(props)
	slices.SortStableFunc(out, func(a, b *model.Property) int {
		return cmp.Compare(b.DealScore, a.DealScore)
	})
	return out[:min(max(n, 0), len(out))]
}

// ByMargin returns the properties with a profit margin of at least minMargin.
func ByMargin(props []*model.Property, minMargin float64) []*model.Property {
	return where(props, func(p *model.Property) bool { return p.ProfitMargin >= minMargin })
}

// ByState returns the properties in state.
func ByState(props []*model.Property, state string) []*model.Property {
	return where(props, func(p *model.Property) bool { return strings.EqualFold(p.State, state) })
}

// ByRegion returns the properties in region.
func ByRegion(props []*model.Property, region string) []*model.Property {
	return where(props, func(p *model.Property) bool { return strings.EqualFold(p.Region, region) })
}

func where(props []*model.Property, keep func(*model.Property) bool) []*model.Property {
	var out []*model.Property
	for _, p := range props {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func sortByScore(props []model.Property) {
	slices.SortStableFunc(props, func(a, b model.Property) int {
		return cmp.Compare(b.DealScore, a.DealScore)
	})
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if v == "*" || strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
