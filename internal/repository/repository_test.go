package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gametrade/appraisal/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "appraisal-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func intp(n int) *int { return &n }

func TestRuleStore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveRoundTrip", func(t *testing.T) {
		rule := &domain.AssessmentRule{
			ID:               "rule-001",
			RuleType:         domain.RuleTypeRange,
			Category:         "rank",
			Label:            "Rank tier",
			Threshold:        intp(500),
			PriceAdjustment:  1000,
			SortOrder:        10,
			InputPlaceholder: "150",
			InputUnit:        "rank",
		}

		if err := repo.SaveRule(ctx, rule); err != nil {
			t.Fatalf("SaveRule failed: %v", err)
		}

		// All fields survive a save/fetch cycle; sort_order is whatever
		// was written, untouched by the individual save.
		got, err := repo.GetRule(ctx, "rule-001")
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}
		if got.Category != "rank" || got.Label != "Rank tier" {
			t.Errorf("unexpected rule: %+v", got)
		}
		if got.Threshold == nil || *got.Threshold != 500 {
			t.Errorf("expected threshold 500, got %v", got.Threshold)
		}
		if got.PriceAdjustment != 1000 || got.SortOrder != 10 {
			t.Errorf("expected adjustment 1000 sort 10, got %d %d", got.PriceAdjustment, got.SortOrder)
		}
		if got.InputPlaceholder != "150" || got.InputUnit != "rank" {
			t.Errorf("unexpected display metadata: %+v", got)
		}
	})

	t.Run("UpsertById", func(t *testing.T) {
		rule := &domain.AssessmentRule{
			ID:              "rule-001",
			RuleType:        domain.RuleTypeRange,
			Category:        "rank",
			Threshold:       intp(600),
			PriceAdjustment: 1500,
			SortOrder:       10,
		}
		if err := repo.SaveRule(ctx, rule); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		rules, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("expected 1 rule after upsert, got %d", len(rules))
		}
		if *rules[0].Threshold != 600 {
			t.Errorf("expected updated threshold 600, got %d", *rules[0].Threshold)
		}
	})

	t.Run("BooleanRuleNullThreshold", func(t *testing.T) {
		rule := &domain.AssessmentRule{
			ID:              "rule-bool",
			RuleType:        domain.RuleTypeBoolean,
			Category:        "character",
			Label:           "Lucifer",
			PriceAdjustment: 3000,
			SortOrder:       20,
		}
		if err := repo.SaveRule(ctx, rule); err != nil {
			t.Fatalf("SaveRule failed: %v", err)
		}

		got, err := repo.GetRule(ctx, "rule-bool")
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}
		if got.Threshold != nil {
			t.Errorf("expected nil threshold for boolean rule, got %v", *got.Threshold)
		}
	})

	t.Run("ListOrder", func(t *testing.T) {
		// sort_order asc, then category asc, then threshold asc.
		extra := []*domain.AssessmentRule{
			{ID: "o1", RuleType: domain.RuleTypeRange, Category: "luck_max", Threshold: intp(50), SortOrder: 5},
			{ID: "o2", RuleType: domain.RuleTypeRange, Category: "rank", Threshold: intp(0), SortOrder: 10},
		}
		for _, r := range extra {
			if err := repo.SaveRule(ctx, r); err != nil {
				t.Fatalf("SaveRule failed: %v", err)
			}
		}

		rules, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if rules[0].ID != "o1" {
			t.Errorf("expected o1 (sort 5) first, got %s", rules[0].ID)
		}
		// Within rank (sort 10): threshold 0 before 600.
		if rules[1].ID != "o2" || rules[2].ID != "rule-001" {
			t.Errorf("unexpected order: %s, %s", rules[1].ID, rules[2].ID)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.DeleteRule(ctx, "rule-bool"); err != nil {
			t.Fatalf("DeleteRule failed: %v", err)
		}
		if _, err := repo.GetRule(ctx, "rule-bool"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.DeleteRule(ctx, "rule-bool"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for double delete, got %v", err)
		}
	})

	t.Run("ReorderCategories", func(t *testing.T) {
		err := repo.ReorderCategories(ctx, []domain.CategoryOrderUpdate{
			{Category: "rank", SortOrder: 10},
			{Category: "luck_max", SortOrder: 20},
		})
		if err != nil {
			t.Fatalf("ReorderCategories failed: %v", err)
		}

		rules, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		for _, r := range rules {
			switch r.Category {
			case "rank":
				if r.SortOrder != 10 {
					t.Errorf("rank: expected sort 10, got %d", r.SortOrder)
				}
			case "luck_max":
				if r.SortOrder != 20 {
					t.Errorf("luck_max: expected sort 20, got %d", r.SortOrder)
				}
			}
		}
	})
}

func TestListings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	listings := []*domain.Listing{
		{ID: "l1", Game: "gbf", Title: "Rank 200 account", Price: 30000, Status: domain.ListingPublished},
		{ID: "l2", Game: "gbf", Title: "Starter account", Price: 3000, Status: domain.ListingPublished},
		{ID: "l3", Game: "fgo", Title: "NP5 account", Price: 50000, Status: domain.ListingDraft},
	}
	for _, l := range listings {
		if err := repo.SaveListing(ctx, l); err != nil {
			t.Fatalf("SaveListing failed: %v", err)
		}
	}

	t.Run("SearchByGame", func(t *testing.T) {
		got, err := repo.SearchListings(ctx, domain.ListingFilter{Game: "gbf"})
		if err != nil {
			t.Fatalf("SearchListings failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 gbf listings, got %d", len(got))
		}
	})

	t.Run("SearchByPriceRange", func(t *testing.T) {
		got, err := repo.SearchListings(ctx, domain.ListingFilter{MinPrice: 10000, MaxPrice: 40000})
		if err != nil {
			t.Fatalf("SearchListings failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "l1" {
			t.Errorf("expected only l1 in price range, got %d results", len(got))
		}
	})

	t.Run("SortByPrice", func(t *testing.T) {
		got, err := repo.SearchListings(ctx, domain.ListingFilter{Sort: "price_asc"})
		if err != nil {
			t.Fatalf("SearchListings failed: %v", err)
		}
		if got[0].ID != "l2" {
			t.Errorf("expected cheapest first, got %s", got[0].ID)
		}
	})

	t.Run("LikeToggle", func(t *testing.T) {
		liked, err := repo.ToggleLike(ctx, "l1", "guest-1")
		if err != nil {
			t.Fatalf("ToggleLike failed: %v", err)
		}
		if !liked {
			t.Error("expected first toggle to like")
		}

		count, _ := repo.CountLikes(ctx, "l1")
		if count != 1 {
			t.Errorf("expected 1 like, got %d", count)
		}

		liked, err = repo.ToggleLike(ctx, "l1", "guest-1")
		if err != nil {
			t.Fatalf("ToggleLike failed: %v", err)
		}
		if liked {
			t.Error("expected second toggle to unlike")
		}

		count, _ = repo.CountLikes(ctx, "l1")
		if count != 0 {
			t.Errorf("expected 0 likes after unlike, got %d", count)
		}
	})

	t.Run("DeleteListing", func(t *testing.T) {
		if err := repo.DeleteListing(ctx, "l3"); err != nil {
			t.Fatalf("DeleteListing failed: %v", err)
		}
		if _, err := repo.GetListing(ctx, "l3"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReviews(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rev := &domain.Review{
		ID:        "rev-1",
		ListingID: "l1",
		Author:    "anon",
		Rating:    5,
		Body:      "smooth trade",
		Status:    domain.ReviewPending,
	}
	if err := repo.SaveReview(ctx, rev); err != nil {
		t.Fatalf("SaveReview failed: %v", err)
	}

	pending, err := repo.ListReviews(ctx, "l1", domain.ReviewPending)
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending review, got %d", len(pending))
	}

	if err := repo.SetReviewStatus(ctx, "rev-1", domain.ReviewApproved); err != nil {
		t.Fatalf("SetReviewStatus failed: %v", err)
	}

	approved, _ := repo.ListReviews(ctx, "l1", domain.ReviewApproved)
	if len(approved) != 1 {
		t.Errorf("expected 1 approved review, got %d", len(approved))
	}
	pending, _ = repo.ListReviews(ctx, "l1", domain.ReviewPending)
	if len(pending) != 0 {
		t.Errorf("expected 0 pending reviews, got %d", len(pending))
	}
}

func TestBuybackRequests(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	req := &domain.BuybackRequest{
		ID:      "req-1",
		Contact: "trader@example.com",
		Input: domain.AssessmentInput{
			Rank:       1200,
			Selections: map[string]bool{"b1": true},
		},
		Result: domain.AssessmentResult{
			Total: 8000,
			Breakdown: []domain.BreakdownEntry{
				{RuleID: "r2", RuleType: domain.RuleTypeRange, Category: "rank", PriceAdjustment: 5000},
			},
		},
		FastTrack: true,
		Status:    domain.BuybackPending,
		TraceID:   "trace-1",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := repo.SaveBuybackRequest(ctx, req); err != nil {
		t.Fatalf("SaveBuybackRequest failed: %v", err)
	}

	got, err := repo.GetBuybackRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetBuybackRequest failed: %v", err)
	}
	if got.Result.Total != 8000 || !got.FastTrack {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Input.Rank != 1200 || !got.Input.Selections["b1"] {
		t.Errorf("input did not round-trip: %+v", got.Input)
	}

	if err := repo.SetBuybackStatus(ctx, "req-1", domain.BuybackQuoted); err != nil {
		t.Fatalf("SetBuybackStatus failed: %v", err)
	}
	quoted, _ := repo.ListBuybackRequests(ctx, domain.BuybackQuoted)
	if len(quoted) != 1 {
		t.Errorf("expected 1 quoted request, got %d", len(quoted))
	}
}

func TestSiteConfig(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetConfig(ctx, "campaign_remaining_winners"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := repo.SetConfig(ctx, "campaign_remaining_winners", "12"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if err := repo.SetConfig(ctx, "campaign_remaining_winners", "11"); err != nil {
		t.Fatalf("SetConfig upsert failed: %v", err)
	}

	value, err := repo.GetConfig(ctx, "campaign_remaining_winners")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if value != "11" {
		t.Errorf("expected 11, got %s", value)
	}
}

func TestAdminUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := &domain.AdminUser{
		ID:           "admin-1",
		LoginID:      "shopowner",
		Email:        "shopowner@accounts.appraisal.local",
		PasswordHash: "$2a$10$fakehashfortest",
	}
	if err := repo.SaveAdminUser(ctx, u); err != nil {
		t.Fatalf("SaveAdminUser failed: %v", err)
	}

	got, err := repo.GetAdminUser(ctx, "shopowner")
	if err != nil {
		t.Fatalf("GetAdminUser failed: %v", err)
	}
	if got.Email != u.Email || got.PasswordHash != u.PasswordHash {
		t.Errorf("unexpected user: %+v", got)
	}

	if _, err := repo.GetAdminUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "mysql"})
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
