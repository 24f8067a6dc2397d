package domain

// RuleType discriminates how a rule matches user input.
type RuleType string

const (
	// RuleTypeRange matches when the category's numeric input reaches the
	// rule's threshold. Within a category only the highest qualifying
	// threshold contributes.
	RuleTypeRange RuleType = "range"

	// RuleTypeBoolean matches when the rule is explicitly selected.
	// Boolean rules are independent and cumulative.
	RuleTypeBoolean RuleType = "boolean"
)

// AssessmentRule is a single pricing condition for the buyback appraisal.
type AssessmentRule struct {
	ID       string   `json:"id"`
	RuleType RuleType `json:"ruleType"`

	// Category groups range rules that share one numeric input. It is a
	// free-form string; no category entity exists apart from its rules.
	Category string `json:"category"`

	// Label is the checkbox caption for boolean rules (required) and
	// optional supplementary text for range rules.
	Label string `json:"label,omitempty"`

	// Threshold is the minimum input value at which a range rule applies.
	// Nil for boolean rules.
	Threshold *int `json:"threshold,omitempty"`

	// PriceAdjustment is added to the estimate when the rule matches.
	// Sign is not enforced.
	PriceAdjustment int `json:"priceAdjustment"`

	// SortOrder orders categories for display. Rules within a category
	// all carry the same value after a reorder; it never distinguishes
	// individual rules.
	SortOrder int `json:"sortOrder"`

	// Display metadata for the category's public input. Read from the
	// first rule of the category that carries them.
	InputPlaceholder string `json:"inputPlaceholder,omitempty"`
	InputUnit        string `json:"inputUnit,omitempty"`
}

// Well-known categories bound to dedicated named inputs on the public form.
const (
	CategoryRank        = "rank"
	CategoryLuckMax     = "luck_max"
	CategoryGachaCharas = "gacha_charas"
)

// AssessmentInput holds already-typed user input for one evaluation.
// String coercion happens before this is built; the evaluator is total
// over any AssessmentInput value.
type AssessmentInput struct {
	Rank        int `json:"rank"`
	LuckMax     int `json:"luckMax"`
	GachaCharas int `json:"gachaCharas"`

	// DynamicRanges carries values for admin-defined categories beyond
	// the well-known three, keyed by category name.
	DynamicRanges map[string]int `json:"dynamicRanges,omitempty"`

	// Selections holds the boolean rule IDs chosen by the user.
	Selections map[string]bool `json:"selections,omitempty"`
}

// BreakdownEntry records one rule's contribution to a total.
type BreakdownEntry struct {
	RuleID          string   `json:"ruleId"`
	RuleType        RuleType `json:"ruleType"`
	Category        string   `json:"category,omitempty"`
	Label           string   `json:"label,omitempty"`
	Threshold       *int     `json:"threshold,omitempty"`
	PriceAdjustment int      `json:"priceAdjustment"`
}

// AssessmentResult is the evaluator output: the raw total and the
// per-rule breakdown. The total is never clamped here; whether a
// negative total displays as zero is a presentation decision.
type AssessmentResult struct {
	Total     int              `json:"total"`
	Breakdown []BreakdownEntry `json:"breakdown,omitempty"`
}

// CategoryInfo is per-category display metadata derived from the rule
// list for the public form.
type CategoryInfo struct {
	Name             string `json:"name"`
	InputPlaceholder string `json:"inputPlaceholder,omitempty"`
	InputUnit        string `json:"inputUnit,omitempty"`
	RuleCount        int    `json:"ruleCount"`
}
