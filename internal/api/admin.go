package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gametrade/appraisal/internal/assessor"
	"github.com/gametrade/appraisal/internal/auth"
	"github.com/gametrade/appraisal/internal/domain"
	"github.com/gametrade/appraisal/internal/repository"
)

// LoginRequest is the request body for POST /admin/login.
type LoginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// AdminLogin handles POST /admin/login.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	token, err := h.auth.Login(r.Context(), req.LoginID, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
			return
		}
		slog.Error("login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "login failed",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

// AdminLogout handles POST /admin/logout.
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		slog.Warn("logout failed", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// AdminListRules handles GET /admin/rules. Returns the persisted rules
// in store order plus the derived category order.
func (h *Handler) AdminListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.ListRules(r.Context())
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":         rules,
		"count":         len(rules),
		"categoryOrder": assessor.DeriveCategoryOrder(rules),
	})
}

// RuleRequest is the request body for rule create/update.
type RuleRequest struct {
	RuleType         string `json:"ruleType"`
	Category         string `json:"category"`
	Label            string `json:"label"`
	Threshold        *int   `json:"threshold"`
	PriceAdjustment  int    `json:"priceAdjustment"`
	SortOrder        int    `json:"sortOrder"`
	InputPlaceholder string `json:"inputPlaceholder"`
	InputUnit        string `json:"inputUnit"`
}

// validate checks the cross-field constraints shared by create and update.
func (req *RuleRequest) validate() string {
	if req.Category == "" {
		return "category is required"
	}
	switch domain.RuleType(req.RuleType) {
	case domain.RuleTypeRange:
		if req.Threshold == nil {
			return "threshold is required for range rules"
		}
	case domain.RuleTypeBoolean:
		if req.Label == "" {
			return "label is required for boolean rules"
		}
	default:
		return "ruleType must be range or boolean"
	}
	return ""
}

func (req *RuleRequest) toRule(id string) *domain.AssessmentRule {
	return &domain.AssessmentRule{
		ID:               id,
		RuleType:         domain.RuleType(req.RuleType),
		Category:         req.Category,
		Label:            req.Label,
		Threshold:        req.Threshold,
		PriceAdjustment:  req.PriceAdjustment,
		SortOrder:        req.SortOrder,
		InputPlaceholder: req.InputPlaceholder,
		InputUnit:        req.InputUnit,
	}
}

// AdminCreateRule handles POST /admin/rules.
func (h *Handler) AdminCreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	rule := req.toRule(uuid.New().String())

	// A new rule with no explicit position lands after everything else.
	if rule.SortOrder == 0 {
		existing, err := h.repo.ListRules(ctx)
		if err == nil {
			maxSort := 0
			for _, e := range existing {
				if e.Category == rule.Category {
					// Joining an existing category inherits its position.
					rule.SortOrder = e.SortOrder
					break
				}
				if e.SortOrder > maxSort {
					maxSort = e.SortOrder
				}
			}
			if rule.SortOrder == 0 {
				rule.SortOrder = maxSort + 10
			}
		}
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		slog.Error("failed to save rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	h.applyRuleChange(ctx)

	slog.Info("rule created", "id", rule.ID, "category", rule.Category)
	writeJSON(w, http.StatusCreated, rule)
}

// AdminUpdateRule handles PUT /admin/rules/{id}.
func (h *Handler) AdminUpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	existing, err := h.repo.GetRule(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to get rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get rule",
		})
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	rule := req.toRule(id)
	if rule.SortOrder == 0 {
		rule.SortOrder = existing.SortOrder
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		slog.Error("failed to update rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update rule",
		})
		return
	}

	h.applyRuleChange(ctx)

	slog.Info("rule updated", "id", id)
	writeJSON(w, http.StatusOK, rule)
}

// AdminDeleteRule handles DELETE /admin/rules/{id}.
func (h *Handler) AdminDeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteRule(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to delete rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	h.applyRuleChange(ctx)

	slog.Info("rule deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
	})
}

// ReorderRequest is the request body for POST /admin/rules/reorder.
type ReorderRequest struct {
	Order []string `json:"order"`
}

// AdminReorderCategories handles POST /admin/rules/reorder. Category
// updates run independently; a partial failure still reloads so the
// snapshot reflects whatever was applied.
func (h *Handler) AdminReorderCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Order) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "order is required",
		})
		return
	}

	updates := assessor.PlanReorder(req.Order)
	reorderErr := h.repo.ReorderCategories(ctx, updates)

	h.applyRuleChange(ctx)

	if reorderErr != nil {
		slog.Error("category reorder partially failed", "error", reorderErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "reorder failed: " + reorderErr.Error(),
		})
		return
	}

	slog.Info("categories reordered", "count", len(updates))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "categories reordered",
		"count":   len(updates),
	})
}

// AdminReloadRules handles POST /admin/rules/reload.
func (h *Handler) AdminReloadRules(w http.ResponseWriter, r *http.Request) {
	count, err := h.applyRuleChange(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules",
		})
		return
	}

	slog.Info("rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

// applyRuleChange re-reads the rule set, swaps the snapshot, drops the
// cached public payload, and announces the change on the bus. Every
// admin rule mutation funnels through here.
func (h *Handler) applyRuleChange(ctx context.Context) (int, error) {
	rules, err := h.repo.ListRules(ctx)
	if err != nil {
		slog.Error("failed to reload rules", "error", err)
		return 0, err
	}

	h.snapshot.Reload(rules)

	if h.cache != nil {
		_ = h.cache.Delete(ctx, domain.CacheKeyRuleList)
	}

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]int{"count": len(rules)})
		if err := h.bus.Publish(ctx, domain.TopicRulesUpdated, payload); err != nil {
			slog.Warn("failed to publish rules update", "error", err)
		}
	}

	return len(rules), nil
}

// AdminListListings handles GET /admin/listings. Unlike the public
// search, drafts and sold listings are visible.
func (h *Handler) AdminListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.ListingFilter{
		Game:     q.Get("game"),
		MinPrice: assessor.CoerceInt(q.Get("min_price")),
		MaxPrice: assessor.CoerceInt(q.Get("max_price")),
		Status:   domain.ListingStatus(q.Get("status")),
		Sort:     q.Get("sort"),
		Limit:    assessor.CoerceInt(q.Get("limit")),
	}

	listings, err := h.repo.SearchListings(r.Context(), filter)
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

// ListingRequest is the request body for listing create/update.
type ListingRequest struct {
	Game        string `json:"game"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	Status      string `json:"status"`
}

// AdminSaveListing handles POST /admin/listings and PUT /admin/listings/{id}.
func (h *Handler) AdminSaveListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Game == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "game and title are required",
		})
		return
	}
	if req.Price < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "price must not be negative",
		})
		return
	}

	status := domain.ListingStatus(req.Status)
	switch status {
	case "":
		status = domain.ListingDraft
	case domain.ListingDraft, domain.ListingPublished, domain.ListingSold:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "status must be draft, published, or sold",
		})
		return
	}

	id := chi.URLParam(r, "id")
	created := id == ""
	now := time.Now().UTC()

	listing := &domain.Listing{
		ID:          id,
		Game:        req.Game,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Status:      status,
		UpdatedAt:   now,
	}

	if created {
		listing.ID = uuid.New().String()
		listing.CreatedAt = now
	} else {
		existing, err := h.repo.GetListing(ctx, id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "listing not found",
			})
			return
		}
		listing.CreatedAt = existing.CreatedAt
	}

	if err := h.repo.SaveListing(ctx, listing); err != nil {
		slog.Error("failed to save listing", "id", listing.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save listing",
		})
		return
	}

	slog.Info("listing saved", "id", listing.ID, "status", listing.Status)
	if created {
		writeJSON(w, http.StatusCreated, listing)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// AdminDeleteListing handles DELETE /admin/listings/{id}.
func (h *Handler) AdminDeleteListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteListing(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "listing not found",
			})
			return
		}
		slog.Error("failed to delete listing", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete listing",
		})
		return
	}

	slog.Info("listing deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "listing deleted",
	})
}

// AdminListReviews handles GET /admin/reviews. Defaults to the pending
// moderation queue.
func (h *Handler) AdminListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := domain.ReviewStatus(q.Get("status"))
	if q.Get("status") == "" {
		status = domain.ReviewPending
	}
	if q.Get("status") == "all" {
		status = ""
	}

	reviews, err := h.repo.ListReviews(r.Context(), q.Get("listing_id"), status)
	if err != nil {
		slog.Error("failed to list reviews", "error", err)
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

func (h *Handler) setReviewStatus(w http.ResponseWriter, r *http.Request, status domain.ReviewStatus) {
	id := chi.URLParam(r, "id")

	if err := h.repo.SetReviewStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "review not found",
			})
			return
		}
		slog.Error("failed to update review", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update review",
		})
		return
	}

	slog.Info("review moderated", "id", id, "status", status)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "review " + string(status),
	})
}

// AdminApproveReview handles POST /admin/reviews/{id}/approve.
func (h *Handler) AdminApproveReview(w http.ResponseWriter, r *http.Request) {
	h.setReviewStatus(w, r, domain.ReviewApproved)
}

// AdminRejectReview handles POST /admin/reviews/{id}/reject.
func (h *Handler) AdminRejectReview(w http.ResponseWriter, r *http.Request) {
	h.setReviewStatus(w, r, domain.ReviewRejected)
}

// AdminListBuyback handles GET /admin/buyback.
func (h *Handler) AdminListBuyback(w http.ResponseWriter, r *http.Request) {
	status := domain.BuybackStatus(r.URL.Query().Get("status"))

	requests, err := h.repo.ListBuybackRequests(r.Context(), status)
	if err != nil {
		slog.Error("failed to list buyback requests", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list buyback requests",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requests": requests,
		"count":    len(requests),
	})
}

// AdminGetBuyback handles GET /admin/buyback/{id}.
func (h *Handler) AdminGetBuyback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.repo.GetBuybackRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "buyback request not found",
			})
			return
		}
		slog.Error("failed to get buyback request", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get buyback request",
		})
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// StatusRequest is the request body for PUT /admin/buyback/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// AdminSetBuybackStatus handles PUT /admin/buyback/{id}/status.
func (h *Handler) AdminSetBuybackStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.processor.UpdateStatus(ctx, id, domain.BuybackStatus(req.Status)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "buyback request not found",
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Info("buyback status updated", "id", id, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "status updated",
	})
}

// AdminGetConfig handles GET /admin/config/{key}.
func (h *Handler) AdminGetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, err := h.repo.GetConfig(r.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "config key not found",
			})
			return
		}
		slog.Error("failed to read config", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to read config",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": value,
	})
}

// ConfigRequest is the request body for PUT /admin/config/{key}.
type ConfigRequest struct {
	Value string `json:"value"`
}

// AdminSetConfig handles PUT /admin/config/{key}.
func (h *Handler) AdminSetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.repo.SetConfig(ctx, key, req.Value); err != nil {
		slog.Error("failed to write config", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to write config",
		})
		return
	}

	// Campaign keys feed the cached public payload.
	if h.cache != nil && strings.HasPrefix(key, "campaign") {
		_ = h.cache.Delete(ctx, domain.CacheKeyCampaign)
	}

	slog.Info("config updated", "key", key)
	writeJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": req.Value,
	})
}

// AdminGetPolicy handles GET /admin/policy.
func (h *Handler) AdminGetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"expression": h.policy.Expression(),
	})
}

// PolicyRequest is the request body for PUT /admin/policy.
type PolicyRequest struct {
	Expression string `json:"expression"`
}

// AdminSetPolicy handles PUT /admin/policy. The expression is compiled
// before it is accepted; a bad expression never replaces the active one.
func (h *Handler) AdminSetPolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.policy.SetExpression(r.Context(), req.Expression); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Info("acceptance policy updated")
	writeJSON(w, http.StatusOK, map[string]string{
		"expression": h.policy.Expression(),
	})
}
