package assessor

import "github.com/gametrade/appraisal/internal/domain"

// DeriveCategoryOrder extracts the current category order from a rule
// list that is already in store order (sort_order asc, category asc,
// threshold asc): the category of each rule in sequence, de-duplicated
// preserving first-seen position. This derived sequence is what the
// admin editor shows as "current order" and what the public form
// renders.
func DeriveCategoryOrder(rules []domain.AssessmentRule) []string {
	seen := make(map[string]bool, len(rules))
	var order []string
	for _, r := range rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			order = append(order, r.Category)
		}
	}
	return order
}

// PlanReorder maps a desired category sequence to per-category
// sort_order assignments: position i gets (i+1)*10. The gap of 10
// leaves room for manual insertion between categories.
func PlanReorder(newOrder []string) []domain.CategoryOrderUpdate {
	updates := make([]domain.CategoryOrderUpdate, 0, len(newOrder))
	for i, category := range newOrder {
		updates = append(updates, domain.CategoryOrderUpdate{
			Category:  category,
			SortOrder: (i + 1) * 10,
		})
	}
	return updates
}

// CategoryInfos derives per-category display metadata from the rule
// list: for each category in derived order, the placeholder and unit
// come from the first range rule of that category that carries them.
// Boolean-only categories have no numeric input, so their metadata
// fields stay empty.
func CategoryInfos(rules []domain.AssessmentRule) []domain.CategoryInfo {
	order := DeriveCategoryOrder(rules)
	infos := make([]domain.CategoryInfo, 0, len(order))
	for _, category := range order {
		info := domain.CategoryInfo{Name: category}
		for _, r := range rules {
			if r.Category != category {
				continue
			}
			info.RuleCount++
			if r.RuleType != domain.RuleTypeRange {
				continue
			}
			if info.InputPlaceholder == "" && r.InputPlaceholder != "" {
				info.InputPlaceholder = r.InputPlaceholder
			}
			if info.InputUnit == "" && r.InputUnit != "" {
				info.InputUnit = r.InputUnit
			}
		}
		infos = append(infos, info)
	}
	return infos
}
