package policy

import (
	"context"
	"os"
	"testing"

	"github.com/gametrade/appraisal/internal/domain"
	"github.com/gametrade/appraisal/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "policy-test-*.db")
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

	return repo
}

func request(total, rank int, fastTrack bool) *domain.BuybackRequest {
	return &domain.BuybackRequest{
		Input:     domain.AssessmentInput{Rank: rank},
		Result:    domain.AssessmentResult{Total: total},
		FastTrack: fastTrack,
	}
}

func TestDefaultPolicy(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	svc, err := NewService(ctx, repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if svc.Expression() != DefaultExpression {
		t.Errorf("expected default expression, got %s", svc.Expression())
	}

	accepted, err := svc.Accept(ctx, request(0, 0, false))
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if !accepted {
		t.Error("default policy should accept everything")
	}
}

func TestSetExpression(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	svc, err := NewService(ctx, repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	t.Run("ValidExpression", func(t *testing.T) {
		if err := svc.SetExpression(ctx, "total >= 1000"); err != nil {
			t.Fatalf("SetExpression failed: %v", err)
		}

		accepted, err := svc.Accept(ctx, request(5000, 100, false))
		if err != nil {
			t.Fatalf("Accept failed: %v", err)
		}
		if !accepted {
			t.Error("expected acceptance for total 5000")
		}

		accepted, err = svc.Accept(ctx, request(500, 100, false))
		if err != nil {
			t.Fatalf("Accept failed: %v", err)
		}
		if accepted {
			t.Error("expected rejection for total 500")
		}
	})

	t.Run("FastTrackVariable", func(t *testing.T) {
		if err := svc.SetExpression(ctx, "fast_track || total >= 10000"); err != nil {
			t.Fatalf("SetExpression failed: %v", err)
		}

		accepted, _ := svc.Accept(ctx, request(100, 1, true))
		if !accepted {
			t.Error("fast track submission should be accepted")
		}

		accepted, _ = svc.Accept(ctx, request(100, 1, false))
		if accepted {
			t.Error("low-value non-fast-track submission should be rejected")
		}
	})

	t.Run("SyntaxError", func(t *testing.T) {
		before := svc.Expression()
		if err := svc.SetExpression(ctx, "total >=="); err == nil {
			t.Error("expected compile error")
		}
		if svc.Expression() != before {
			t.Error("active expression must not change on compile error")
		}
	})

	t.Run("NonBooleanExpression", func(t *testing.T) {
		if err := svc.SetExpression(ctx, "total + 1"); err == nil {
			t.Error("expected error for non-boolean expression")
		}
	})

	t.Run("EmptyExpression", func(t *testing.T) {
		if err := svc.SetExpression(ctx, ""); err == nil {
			t.Error("expected error for empty expression")
		}
	})
}

func TestPolicyPersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	svc, err := NewService(ctx, repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if err := svc.SetExpression(ctx, "rank >= 50"); err != nil {
		t.Fatalf("SetExpression failed: %v", err)
	}

	// A fresh service over the same store picks up the persisted policy.
	svc2, err := NewService(ctx, repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if svc2.Expression() != "rank >= 50" {
		t.Errorf("expected persisted expression, got %s", svc2.Expression())
	}

	accepted, err := svc2.Accept(ctx, request(0, 60, false))
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if !accepted {
		t.Error("expected acceptance for rank 60")
	}
}

func TestBadStoredExpressionFallsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SetConfig(ctx, ConfigKey, "not ((valid"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	svc, err := NewService(ctx, repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if svc.Expression() != DefaultExpression {
		t.Errorf("expected fallback to default, got %s", svc.Expression())
	}
}
