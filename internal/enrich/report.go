package enrich

import (
	"sync"

	"github.com/sells-group/auction-cli/internal/model"
)

// Call outcomes.
const (
	OutcomeEnriched = "enriched"
	OutcomeFailed   = "failed"
	OutcomeEmpty    = "empty"
	OutcomeCached   = "cached"
)

// Report counts attempts, successes and failures per stage.
type Report struct {
	mu     sync.Mutex
	stages map[string]*model.EnrichmentStat
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{stages: make(map[string]*model.EnrichmentStat)}
}

func (r *Report) add(stage, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stages[stage]
	if !ok {
		s = &model.EnrichmentStat{}
		r.stages[stage] = s
	}
	switch outcome {
	case OutcomeCached:
		// Cache hits do not cost an external call.
	case OutcomeEnriched:
		s.Attempted++
		s.Enriched++
	case OutcomeFailed:
		s.Attempted++
		s.Failed++
	default:
		s.Attempted++
	}
}

// Stage returns the counters for one stage.
func (r *Report) Stage(name string) model.EnrichmentStat {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stages[name]; ok {
		return *s
	}
	return model.EnrichmentStat{}
}

// Stages returns a copy of every stage's counters.
func (r *Report) Stages() map[string]model.EnrichmentStat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.EnrichmentStat, len(r.stages))
	for k, v := range r.stages {
		out[k] = *v
	}
	return out
}
