// Package assessor implements the buyback price assessment engine:
// a pure rule evaluator plus the category ordering model that backs
// the admin reorder operation.
package assessor

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gametrade/appraisal/internal/domain"
)

// Evaluate computes the appraisal total for one set of inputs against a
// rule snapshot. It is pure and total: no I/O, no errors, no clamping.
//
// Range rules are grouped by category and only the highest threshold
// that the category's input reaches contributes; tiers are not
// cumulative. Boolean rules contribute independently whenever selected.
func Evaluate(rules []domain.AssessmentRule, in domain.AssessmentInput) domain.AssessmentResult {
	var result domain.AssessmentResult

	ranges := make(map[string][]domain.AssessmentRule)
	var categories []string
	for _, r := range rules {
		switch r.RuleType {
		case domain.RuleTypeRange:
			if r.Threshold == nil {
				// Malformed row; a range rule without a threshold
				// can never qualify.
				continue
			}
			if _, seen := ranges[r.Category]; !seen {
				categories = append(categories, r.Category)
			}
			ranges[r.Category] = append(ranges[r.Category], r)
		case domain.RuleTypeBoolean:
			if in.Selections[r.ID] {
				result.Total += r.PriceAdjustment
				result.Breakdown = append(result.Breakdown, domain.BreakdownEntry{
					RuleID:          r.ID,
					RuleType:        domain.RuleTypeBoolean,
					Label:           r.Label,
					PriceAdjustment: r.PriceAdjustment,
				})
			}
		}
	}

	for _, category := range categories {
		tiers := ranges[category]
		value := inputFor(category, in)

		// Highest threshold first; the first qualifying tier wins.
		sort.SliceStable(tiers, func(i, j int) bool {
			return *tiers[i].Threshold > *tiers[j].Threshold
		})
		for _, tier := range tiers {
			if *tier.Threshold <= value {
				result.Total += tier.PriceAdjustment
				result.Breakdown = append(result.Breakdown, domain.BreakdownEntry{
					RuleID:          tier.ID,
					RuleType:        domain.RuleTypeRange,
					Category:        category,
					Label:           tier.Label,
					Threshold:       tier.Threshold,
					PriceAdjustment: tier.PriceAdjustment,
				})
				break
			}
		}
	}

	return result
}

// inputFor resolves the numeric input for a category. The well-known
// categories read dedicated fields; anything else reads the dynamic
// per-category map. A missing entry is 0.
func inputFor(category string, in domain.AssessmentInput) int {
	switch category {
	case domain.CategoryRank:
		return in.Rank
	case domain.CategoryLuckMax:
		return in.LuckMax
	case domain.CategoryGachaCharas:
		return in.GachaCharas
	default:
		return in.DynamicRanges[category]
	}
}

// CoerceInt converts raw form input to an integer. Empty or unparseable
// input coerces to 0 rather than erroring; this is the only place
// malformed numeric input is absorbed, so the evaluator itself stays
// total over typed values.
func CoerceInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
