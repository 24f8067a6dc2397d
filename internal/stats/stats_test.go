package stats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gametrade/appraisal/internal/cache"
	"github.com/gametrade/appraisal/internal/domain"
	"github.com/gametrade/appraisal/internal/repository"
)

func newTestService(t *testing.T) (*Service, domain.Repository) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "stats-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	lruCache := cache.NewLRUCache(100)
	t.Cleanup(func() { lruCache.Close() })

	return NewService(repo, lruCache), repo
}

func TestLikeCount(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	if err := repo.SaveListing(ctx, &domain.Listing{
		ID:     "l1",
		Game:   "gbf",
		Title:  "Rank 200 account",
		Price:  30000,
		Status: domain.ListingPublished,
	}); err != nil {
		t.Fatalf("SaveListing failed: %v", err)
	}

	t.Run("NoLikes", func(t *testing.T) {
		count, err := svc.LikeCount(ctx, "l1")
		if err != nil {
			t.Fatalf("LikeCount failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 likes, got %d", count)
		}
	})

	t.Run("AfterToggle", func(t *testing.T) {
		if _, err := repo.ToggleLike(ctx, "l1", "guest-1"); err != nil {
			t.Fatalf("ToggleLike failed: %v", err)
		}
		if _, err := repo.ToggleLike(ctx, "l1", "guest-2"); err != nil {
			t.Fatalf("ToggleLike failed: %v", err)
		}
		svc.Invalidate(ctx, "l1")

		count, err := svc.LikeCount(ctx, "l1")
		if err != nil {
			t.Fatalf("LikeCount failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 likes, got %d", count)
		}
	})

	t.Run("CachedReadSurvivesToggle", func(t *testing.T) {
		// Without invalidation the cached count is served until TTL.
		if _, err := repo.ToggleLike(ctx, "l1", "guest-3"); err != nil {
			t.Fatalf("ToggleLike failed: %v", err)
		}

		count, err := svc.LikeCount(ctx, "l1")
		if err != nil {
			t.Fatalf("LikeCount failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected stale cached count 2, got %d", count)
		}

		svc.Invalidate(ctx, "l1")
		count, _ = svc.LikeCount(ctx, "l1")
		if count != 3 {
			t.Errorf("expected fresh count 3 after invalidation, got %d", count)
		}
	})

	t.Run("RequiresListingID", func(t *testing.T) {
		if _, err := svc.LikeCount(ctx, ""); err == nil {
			t.Error("expected error for empty listingID")
		}
	})
}

func TestEstimateRate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	window := 100 * time.Millisecond

	n1, err := svc.EstimateRate(ctx, window)
	if err != nil {
		t.Fatalf("EstimateRate failed: %v", err)
	}
	if n1 != 1 {
		t.Errorf("expected 1, got %d", n1)
	}

	n2, _ := svc.EstimateRate(ctx, window)
	if n2 != 2 {
		t.Errorf("expected 2, got %d", n2)
	}
}

func TestNoCache(t *testing.T) {
	svc, repo := newTestService(t)
	svc.cache = nil
	ctx := context.Background()

	if err := repo.SaveListing(ctx, &domain.Listing{ID: "l2", Game: "fgo", Title: "a", Price: 100, Status: domain.ListingPublished}); err != nil {
		t.Fatalf("SaveListing failed: %v", err)
	}
	if _, err := repo.ToggleLike(ctx, "l2", "g"); err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}

	count, err := svc.LikeCount(ctx, "l2")
	if err != nil {
		t.Fatalf("LikeCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 like without cache, got %d", count)
	}
}
