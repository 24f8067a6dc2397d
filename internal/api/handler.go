package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gametrade/appraisal/internal/assessor"
	"github.com/gametrade/appraisal/internal/auth"
	"github.com/gametrade/appraisal/internal/buyback"
	"github.com/gametrade/appraisal/internal/domain"
	"github.com/gametrade/appraisal/internal/policy"
	"github.com/gametrade/appraisal/internal/repository"
	"github.com/gametrade/appraisal/internal/stats"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	snapshot  *assessor.Snapshot
	policy    *policy.Service
	processor *buyback.Processor
	stats     *stats.Service
	auth      *auth.Manager
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, snapshot *assessor.Snapshot, pol *policy.Service, processor *buyback.Processor, statsSvc *stats.Service, authMgr *auth.Manager, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		snapshot:  snapshot,
		policy:    pol,
		processor: processor,
		stats:     statsSvc,
		auth:      authMgr,
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// rulesResponse is the public appraisal form payload.
type rulesResponse struct {
	Categories []domain.CategoryInfo   `json:"categories"`
	Rules      []domain.AssessmentRule `json:"rules"`
	Count      int                     `json:"count"`
}

// ListRules returns the rule snapshot and derived category metadata for
// the public appraisal form. The serialized payload is cached; admin
// mutations invalidate it.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		if data, err := h.cache.Get(ctx, domain.CacheKeyRuleList); err == nil && data != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
	}

	rules := h.snapshot.Rules()
	resp := rulesResponse{
		Categories: assessor.CategoryInfos(rules),
		Rules:      rules,
		Count:      len(rules),
	}

	data, err := json.Marshal(resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to serialize rules",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, domain.CacheKeyRuleList, data, 5*time.Minute)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// EstimateRequest is the request body for POST /estimate. Numeric
// fields arrive as strings straight from form inputs; anything that
// does not parse counts as zero.
type EstimateRequest struct {
	Rank        string            `json:"rank"`
	LuckMax     string            `json:"luckMax"`
	GachaCharas string            `json:"gachaCharas"`
	Dynamic     map[string]string `json:"dynamic,omitempty"`
	Selections  map[string]bool   `json:"selections,omitempty"`
}

// assessmentInput coerces the raw form values into typed input.
func (req *EstimateRequest) assessmentInput() domain.AssessmentInput {
	in := domain.AssessmentInput{
		Rank:        assessor.CoerceInt(req.Rank),
		LuckMax:     assessor.CoerceInt(req.LuckMax),
		GachaCharas: assessor.CoerceInt(req.GachaCharas),
		Selections:  req.Selections,
	}
	if len(req.Dynamic) > 0 {
		in.DynamicRanges = make(map[string]int, len(req.Dynamic))
		for category, raw := range req.Dynamic {
			in.DynamicRanges[category] = assessor.CoerceInt(raw)
		}
	}
	return in
}

// Estimate handles POST /estimate requests.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result := h.snapshot.Evaluate(req.assessmentInput())

	if h.stats != nil {
		if _, err := h.stats.EstimateRate(ctx, time.Hour); err != nil {
			slog.Debug("estimate rate accounting failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// BuybackRequest is the request body for POST /buyback.
type BuybackRequest struct {
	EstimateRequest
	Contact string `json:"contact"`
}

// SubmitBuyback handles POST /buyback requests.
func (h *Handler) SubmitBuyback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BuybackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Contact == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "contact is required",
		})
		return
	}

	submitted, err := h.processor.Submit(ctx, buyback.SubmitInput{
		Contact: req.Contact,
		Input:   req.assessmentInput(),
		TraceID: GetTraceID(ctx),
	})
	if err != nil {
		slog.Error("buyback submission failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to submit buyback request",
		})
		return
	}

	writeJSON(w, http.StatusCreated, submitted)
}

// SearchListings handles GET /listings. Only published listings are
// visible publicly.
func (h *Handler) SearchListings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := domain.ListingFilter{
		Game:     q.Get("game"),
		MinPrice: assessor.CoerceInt(q.Get("min_price")),
		MaxPrice: assessor.CoerceInt(q.Get("max_price")),
		Status:   domain.ListingPublished,
		Sort:     q.Get("sort"),
		Limit:    assessor.CoerceInt(q.Get("limit")),
	}

	listings, err := h.repo.SearchListings(ctx, filter)
	if err != nil {
		slog.Error("listing search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to search listings",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetListing handles GET /listings/{id}.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	listing, err := h.repo.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "listing not found",
			})
			return
		}
		slog.Error("failed to get listing", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get listing",
		})
		return
	}

	// Drafts are admin-only
	if listing.Status == domain.ListingDraft {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "listing not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// likedEvent is published when a guest likes a listing.
type likedEvent struct {
	ListingID string `json:"listingId"`
	Liked     bool   `json:"liked"`
}

// ToggleLike handles POST /listings/{id}/like.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	guestID := GetGuestID(ctx)

	if guestID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "guest identity missing",
		})
		return
	}

	if _, err := h.repo.GetListing(ctx, id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "listing not found",
		})
		return
	}

	liked, err := h.repo.ToggleLike(ctx, id, guestID)
	if err != nil {
		slog.Error("failed to toggle like", "listing_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to toggle like",
		})
		return
	}

	if h.stats != nil {
		h.stats.Invalidate(ctx, id)
	}

	if liked && h.bus != nil {
		payload, _ := json.Marshal(likedEvent{ListingID: id, Liked: liked})
		if err := h.bus.Publish(ctx, domain.TopicListingLiked, payload); err != nil {
			slog.Warn("failed to publish like event", "listing_id", id, "error", err)
		}
	}

	var count int64
	if h.stats != nil {
		count, _ = h.stats.LikeCount(ctx, id)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"liked":     liked,
		"likeCount": count,
	})
}

// ListReviews handles GET /listings/{id}/reviews. Only approved reviews
// are visible publicly.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	reviews, err := h.repo.ListReviews(ctx, id, domain.ReviewApproved)
	if err != nil {
		slog.Error("failed to list reviews", "listing_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list reviews",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reviews": reviews,
		"count":   len(reviews),
	})
}

// ReviewRequest is the request body for POST /listings/{id}/reviews.
type ReviewRequest struct {
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Body   string `json:"body"`
}

// reviewEvent is published when a review is submitted.
type reviewEvent struct {
	ListingID string `json:"listingId"`
	ReviewID  string `json:"reviewId"`
}

// SubmitReview handles POST /listings/{id}/reviews. New reviews start
// pending and become public once approved.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rating must be between 1 and 5",
		})
		return
	}
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "body is required",
		})
		return
	}

	if _, err := h.repo.GetListing(ctx, id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "listing not found",
		})
		return
	}

	author := req.Author
	if author == "" {
		author = "anonymous"
	}

	review := &domain.Review{
		ID:        uuid.New().String(),
		ListingID: id,
		Author:    author,
		Rating:    req.Rating,
		Body:      req.Body,
		Status:    domain.ReviewPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveReview(ctx, review); err != nil {
		slog.Error("failed to save review", "listing_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save review",
		})
		return
	}

	if h.bus != nil {
		payload, _ := json.Marshal(reviewEvent{ListingID: id, ReviewID: review.ID})
		if err := h.bus.Publish(ctx, domain.TopicReviewSubmitted, payload); err != nil {
			slog.Warn("failed to publish review event", "review_id", review.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, review)
}

// Campaign config keys surfaced on the public endpoint.
var campaignKeys = []string{
	"campaign_title",
	"campaign_body",
	"campaign_remaining_winners",
}

// GetCampaign handles GET /campaign. Unset keys are simply omitted.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		if data, err := h.cache.Get(ctx, domain.CacheKeyCampaign); err == nil && data != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
	}

	campaign := make(map[string]string, len(campaignKeys))
	for _, key := range campaignKeys {
		value, err := h.repo.GetConfig(ctx, key)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			slog.Error("failed to read campaign config", "key", key, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to read campaign",
			})
			return
		}
		campaign[key] = value
	}

	data, err := json.Marshal(campaign)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to serialize campaign",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, domain.CacheKeyCampaign, data, time.Minute)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
