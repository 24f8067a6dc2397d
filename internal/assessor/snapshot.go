package assessor

import (
	"sync"

	"github.com/gametrade/appraisal/internal/domain"
)

// Snapshot holds the in-memory rule set the public estimate path
// evaluates against. Admin writes reload it; until then readers keep
// seeing the previous rules, which is the accepted staleness contract
// for an open public form.
type Snapshot struct {
	mu    sync.RWMutex
	rules []domain.AssessmentRule
}

// NewSnapshot creates an empty snapshot. An empty snapshot evaluates
// every input to a zero total, which is also the behavior after a
// failed rule fetch.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Reload replaces the snapshot contents. The slice must already be in
// store order.
func (s *Snapshot) Reload(rules []domain.AssessmentRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

// Rules returns a copy of the current rule set.
func (s *Snapshot) Rules() []domain.AssessmentRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AssessmentRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Count returns the number of loaded rules.
func (s *Snapshot) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// Evaluate runs the evaluator against the current snapshot.
func (s *Snapshot) Evaluate(in domain.AssessmentInput) domain.AssessmentResult {
	return Evaluate(s.Rules(), in)
}
