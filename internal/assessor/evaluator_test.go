package assessor

import (
	"testing"

	"github.com/gametrade/appraisal/internal/domain"
)

func intp(n int) *int { return &n }

func rangeRule(id, category string, threshold, adjustment int) domain.AssessmentRule {
	return domain.AssessmentRule{
		ID:              id,
		RuleType:        domain.RuleTypeRange,
		Category:        category,
		Threshold:       intp(threshold),
		PriceAdjustment: adjustment,
	}
}

func boolRule(id, label string, adjustment int) domain.AssessmentRule {
	return domain.AssessmentRule{
		ID:              id,
		RuleType:        domain.RuleTypeBoolean,
		Category:        "character",
		Label:           label,
		PriceAdjustment: adjustment,
	}
}

func TestHighestTierWins(t *testing.T) {
	rules := []domain.AssessmentRule{
		rangeRule("r0", "rank", 0, 100),
		rangeRule("r1", "rank", 500, 1000),
		rangeRule("r2", "rank", 1000, 5000),
	}

	result := Evaluate(rules, domain.AssessmentInput{Rank: 750})

	// Tiers are not cumulative: 750 qualifies for the 500 tier only.
	if result.Total != 1000 {
		t.Errorf("expected total 1000, got %d", result.Total)
	}
	if len(result.Breakdown) != 1 {
		t.Fatalf("expected 1 breakdown entry, got %d", len(result.Breakdown))
	}
	if result.Breakdown[0].RuleID != "r1" {
		t.Errorf("expected rule r1 to contribute, got %s", result.Breakdown[0].RuleID)
	}
}

func TestZeroThresholdFloor(t *testing.T) {
	rules := []domain.AssessmentRule{
		rangeRule("r0", "rank", 0, 100),
		rangeRule("r1", "rank", 500, 1000),
	}

	for _, rank := range []int{0, 1, 250, 499} {
		result := Evaluate(rules, domain.AssessmentInput{Rank: rank})
		if result.Total != 100 {
			t.Errorf("rank %d: expected floor tier total 100, got %d", rank, result.Total)
		}
	}
}

func TestNoQualifyingRule(t *testing.T) {
	rules := []domain.AssessmentRule{
		rangeRule("r0", "rank", 100, 500),
	}

	result := Evaluate(rules, domain.AssessmentInput{Rank: 50})
	if result.Total != 0 {
		t.Errorf("expected 0 when input is below every threshold, got %d", result.Total)
	}
	if len(result.Breakdown) != 0 {
		t.Errorf("expected empty breakdown, got %d entries", len(result.Breakdown))
	}
}

func TestBooleanRulesAreCumulative(t *testing.T) {
	rules := []domain.AssessmentRule{
		boolRule("b1", "Lucifer", 2000),
		boolRule("b2", "Bahamut", 3000),
	}

	result := Evaluate(rules, domain.AssessmentInput{
		Selections: map[string]bool{"b1": true, "b2": true},
	})
	if result.Total != 5000 {
		t.Errorf("expected 5000 for two selected boolean rules, got %d", result.Total)
	}

	// Unselected or explicitly false rules contribute nothing.
	result = Evaluate(rules, domain.AssessmentInput{
		Selections: map[string]bool{"b1": true, "b2": false},
	})
	if result.Total != 2000 {
		t.Errorf("expected 2000 for one selected boolean rule, got %d", result.Total)
	}
}

func TestEndToEndScenarios(t *testing.T) {
	rules := []domain.AssessmentRule{
		rangeRule("r1", "rank", 500, 1000),
		rangeRule("r2", "rank", 1000, 5000),
		boolRule("b1", "Lucifer", 3000),
	}

	t.Run("HighRankWithCharacter", func(t *testing.T) {
		result := Evaluate(rules, domain.AssessmentInput{
			Rank:       1200,
			Selections: map[string]bool{"b1": true},
		})
		if result.Total != 8000 {
			t.Errorf("expected 8000, got %d", result.Total)
		}
	})

	t.Run("MidRankWithoutCharacter", func(t *testing.T) {
		result := Evaluate(rules, domain.AssessmentInput{Rank: 600})
		if result.Total != 1000 {
			t.Errorf("expected 1000, got %d", result.Total)
		}
	})
}

func TestDynamicCategory(t *testing.T) {
	rules := []domain.AssessmentRule{
		rangeRule("r1", "weapon_count", 10, 700),
		rangeRule("r2", "weapon_count", 50, 2500),
	}

	result := Evaluate(rules, domain.AssessmentInput{
		DynamicRanges: map[string]int{"weapon_count": 60},
	})
	if result.Total != 2500 {
		t.Errorf("expected 2500 from dynamic category, got %d", result.Total)
	}

	// Missing dynamic input reads as 0.
	result = Evaluate(rules, domain.AssessmentInput{})
	if result.Total != 0 {
		t.Errorf("expected 0 for missing dynamic input, got %d", result.Total)
	}
}

func TestNegativeAdjustmentNotClamped(t *testing.T) {
	rules := []domain.AssessmentRule{
		boolRule("b1", "Banned once", -4000),
		rangeRule("r1", "rank", 0, 1000),
	}

	result := Evaluate(rules, domain.AssessmentInput{
		Rank:       10,
		Selections: map[string]bool{"b1": true},
	})
	if result.Total != -3000 {
		t.Errorf("expected raw total -3000 (no clamping), got %d", result.Total)
	}
}

func TestRangeRuleWithoutThresholdIgnored(t *testing.T) {
	rules := []domain.AssessmentRule{
		{ID: "bad", RuleType: domain.RuleTypeRange, Category: "rank", PriceAdjustment: 9999},
		rangeRule("r1", "rank", 0, 100),
	}

	result := Evaluate(rules, domain.AssessmentInput{Rank: 5})
	if result.Total != 100 {
		t.Errorf("expected malformed rule to be skipped, got total %d", result.Total)
	}
}

func TestCoerceInt(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"  ", 0},
		{"abc", 0},
		{"12abc", 0},
		{"0", 0},
		{"750", 750},
		{" 42 ", 42},
		{"-5", -5},
	}

	for _, tt := range tests {
		if got := CoerceInt(tt.input); got != tt.expected {
			t.Errorf("CoerceInt(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}
