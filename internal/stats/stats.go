// Package stats provides listing engagement counters.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gametrade/appraisal/internal/domain"
)

// Service answers like-count queries for listings. Counts are read
// through the cache with a short TTL; the repository is the source of
// truth and the cache entry is dropped whenever a like toggles.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	countTTL time.Duration
}

// NewService creates a new stats service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		countTTL: 30 * time.Second,
	}
}

// LikeCount returns the number of likes for a listing.
func (s *Service) LikeCount(ctx context.Context, listingID string) (int64, error) {
	if listingID == "" {
		return 0, fmt.Errorf("listingID is required")
	}

	key := likeCountKey(listingID)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil && data != nil {
			if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
				return n, nil
			}
			// Corrupt entry, drop it and fall through to the repository.
			_ = s.cache.Delete(ctx, key)
		}
	}

	count, err := s.repo.CountLikes(ctx, listingID)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, []byte(strconv.FormatInt(count, 10)), s.countTTL)
	}

	return count, nil
}

// Invalidate drops the cached count for a listing. Called after a like
// toggles so the next read reflects the new count.
func (s *Service) Invalidate(ctx context.Context, listingID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, likeCountKey(listingID))
}

// EstimateRate increments the rolling estimate counter and returns the
// number of estimates served in the current window.
func (s *Service) EstimateRate(ctx context.Context, window time.Duration) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.IncrementCounter(ctx, "estimates", window)
}

func likeCountKey(listingID string) string {
	return "likes:" + listingID
}
