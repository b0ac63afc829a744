package enrich

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/builder"
	"github.com/sells-group/auction-cli/internal/model"
)

var defaultValuationPriority = []string{"attom_avm", "batchdata", "record"}

var (
	loanTypes = []string{"Conventional", "FHA", "VA", "USDA", "Jumbo", "ARM", "Fixed 30yr", "Fixed 15yr"}
	stages    = []string{
		"Pre-Foreclosure", "Notice of Default", "Lis Pendens",
		"Auction Scheduled", "REO / Bank Owned", "Short Sale",
	}
)

// majorLenderWeight biases synthetic lenders toward the first, largest
// entries of the lender table.
const (
	majorLenders      = 5
	majorLenderWeight = 3
)

// rank returns the priority of a valuation source; higher wins. Unknown
// and empty sources rank 0.
func (o *Orchestrator) rank(source string) int {
	prio := o.cfg.ValuationPriority
	if len(prio) == 0 {
		prio = defaultValuationPriority
	}
	for i, s := range prio {
		if strings.EqualFold(s, source) {
			return len(prio) - i
		}
	}
	return 0
}

// enrichValuations overwrites ARV with the best-ranked valuation available
// for each property. Calls are capped by max_valuation_calls (0 = no cap).
// Properties whose price was estimated are skipped.
func (o *Orchestrator) enrichValuations(ctx context.Context, props []*model.Property, report *Report) {
	lookups := make([]ValuationLookup, len(o.valuations))
	copy(lookups, o.valuations)
	sort.SliceStable(lookups, func(i, j int) bool {
		return o.rank(lookups[i].Name()) > o.rank(lookups[j].Name())
	})

	limit := o.cfg.MaxValuationCalls
	calls := 0
	for _, p := range props {
		if p.PriceEstimated {
			continue
		}
		for _, l := range lookups {
			if ctx.Err() != nil {
				return
			}
			if limit > 0 && calls >= limit {
				o.log.Info("valuation call cap reached", zap.Int("calls", calls))
				return
			}
			if o.rank(l.Name()) < o.rank(p.ValuationSource) {
				continue
			}

			calls++
			v, err := l.Valuation(ctx, p)
			if err != nil {
				o.log.Debug("valuation lookup failed",
					zap.String("source", l.Name()),
					zap.String("property", p.ID),
					zap.Error(err),
				)
				o.record(report, StageValuation, OutcomeFailed)
				continue
			}
			if v == nil || v.Value <= 0 {
				o.record(report, StageValuation, OutcomeEmpty)
				continue
			}

			p.EstimatedARV = round2(v.Value)
			p.ValuationSource = l.Name()
			p.ValuationLow = round2(v.Low)
			p.ValuationHigh = round2(v.High)
			o.calc.Calculate(p)
			o.record(report, StageValuation, OutcomeEnriched)
			break
		}
	}
}

// enrichForeclosures merges lookup results into empty fields only.
func (o *Orchestrator) enrichForeclosures(ctx context.Context, props []*model.Property, report *Report) {
	for _, p := range props {
		changed := false
		for _, l := range o.foreclosures {
			if ctx.Err() != nil {
				return
			}
			d, err := l.Foreclosure(ctx, p)
			if err != nil {
				o.log.Debug("foreclosure lookup failed",
					zap.String("source", l.Name()),
					zap.String("property", p.ID),
					zap.Error(err),
				)
				o.record(report, StageForeclosure, OutcomeFailed)
				continue
			}
			if d == nil || !mergeForeclosure(p, d) {
				o.record(report, StageForeclosure, OutcomeEmpty)
				continue
			}
			changed = true
			o.record(report, StageForeclosure, OutcomeEnriched)
		}
		if changed {
			if p.BankContactURL == "" && p.ForeclosingEntity != "" {
				p.BankContactURL = builder.BankContactURL(p.ForeclosingEntity)
			}
			o.calc.Calculate(p)
		}
	}
}

// mergeForeclosure fills empty fields of p from d and reports whether any
// field was set.
func mergeForeclosure(p *model.Property, d *ForeclosureDetail) bool {
	changed := false
	setStr := func(dst *string, v string) {
		if *dst == "" && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
			changed = true
		}
	}
	setNum := func(dst *float64, v float64) {
		if *dst == 0 && v > 0 {
			*dst = round2(v)
			changed = true
		}
	}

	setStr(&p.ForeclosingEntity, d.Entity)
	setStr(&p.MortgageLender, d.MortgageLender)
	setNum(&p.MortgageBalance, d.MortgageBalance)
	setNum(&p.TotalDebt, d.TotalDebt)
	setStr(&p.LoanType, d.LoanType)
	setStr(&p.DefaultDate, d.DefaultDate)
	setStr(&p.ForeclosureStage, d.Stage)
	setStr(&p.LastSaleDate, d.LastSaleDate)
	setNum(&p.LastSalePrice, d.LastSalePrice)
	setNum(&p.TaxAssessedValue, d.TaxAssessedValue)
	setNum(&p.AnnualTax, d.AnnualTax)
	setNum(&p.RentEstimate, d.RentEstimate)
	return changed
}

// enrichNeighborhoods scores each zip once. Failures are cached as unknown
// (0) so the zip is not retried while the entry lives.
func (o *Orchestrator) enrichNeighborhoods(ctx context.Context, props []*model.Property, report *Report) {
	for _, p := range props {
		if p.ZipCode == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		var score int
		if cached, ok := o.cache.Get(p.ZipCode); ok {
			score = cached.(int)
			o.record(report, StageNeighborhood, OutcomeCached)
		} else {
			s, err := o.neighborhood.Score(ctx, p.ZipCode)
			switch {
			case err != nil:
				o.log.Debug("neighborhood lookup failed",
					zap.String("zip", p.ZipCode),
					zap.Error(err),
				)
				o.record(report, StageNeighborhood, OutcomeFailed)
			case s <= 0:
				o.record(report, StageNeighborhood, OutcomeEmpty)
			default:
				score = s
				o.record(report, StageNeighborhood, OutcomeEnriched)
			}
			o.cache.SetDefault(p.ZipCode, score)
		}

		if score > 0 && score != p.NeighborhoodScore {
			p.NeighborhoodScore = score
			o.calc.Calculate(p)
		}
	}
}

// fillSynthetic invents plausible foreclosure context for properties that
// still have none, and marks them synthetic.
func (o *Orchestrator) fillSynthetic(props []*model.Property, report *Report) {
	now := o.now()
	for _, p := range props {
		if p.HasForeclosureContext() {
			continue
		}
		lender := o.pickLender()
		p.ForeclosingEntity = lender.Name
		p.BankContactURL = lender.ContactURL
		p.TotalDebt = round2(p.EstimatedARV * (0.70 + o.rng.Float64()*0.25))
		p.LoanType = loanTypes[o.rng.IntN(len(loanTypes))]
		p.ForeclosureStage = stages[o.rng.IntN(len(stages))]
		daysAgo := 90 + o.rng.IntN(451)
		p.DefaultDate = now.AddDate(0, 0, -daysAgo).Format(time.DateOnly)
		p.ForeclosureSynthetic = true
		o.record(report, StageSynthetic, OutcomeEnriched)
	}
}

func (o *Orchestrator) pickLender() builder.Lender {
	lenders := builder.Lenders
	total := 0
	for i := range lenders {
		total += lenderWeight(i)
	}
	n := o.rng.IntN(total)
	for i, l := range lenders {
		n -= lenderWeight(i)
		if n < 0 {
			return l
		}
	}
	return lenders[len(lenders)-1]
}

func lenderWeight(i int) int {
	if i < majorLenders {
		return majorLenderWeight
	}
	return 1
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
