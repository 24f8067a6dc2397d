// Package buyback turns appraisal submissions into persisted buyback
// requests and routes them through the acceptance policy.
package buyback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gametrade/appraisal/internal/assessor"
	"github.com/gametrade/appraisal/internal/domain"
	"github.com/gametrade/appraisal/internal/policy"
)

// Processor assembles buyback requests from customer submissions.
type Processor struct {
	snapshot *assessor.Snapshot
	policy   *policy.Service
	repo     domain.Repository
	bus      domain.EventBus
}

// NewProcessor creates a buyback processor.
func NewProcessor(snapshot *assessor.Snapshot, pol *policy.Service, repo domain.Repository, bus domain.EventBus) *Processor {
	return &Processor{
		snapshot: snapshot,
		policy:   pol,
		repo:     repo,
		bus:      bus,
	}
}

// SubmitInput is a customer appraisal submission.
type SubmitInput struct {
	Contact string
	Input   domain.AssessmentInput
	TraceID string
}

// submittedEvent is the payload published on buyback submission.
type submittedEvent struct {
	ID        string `json:"id"`
	Total     int    `json:"total"`
	FastTrack bool   `json:"fastTrack"`
	Contact   string `json:"contact"`
}

// Submit prices the submission against the current rule snapshot, runs
// the acceptance policy, and persists the request. Policy failures
// demote the request to manual review instead of rejecting it.
func (p *Processor) Submit(ctx context.Context, in SubmitInput) (*domain.BuybackRequest, error) {
	if in.Contact == "" {
		return nil, fmt.Errorf("contact is required")
	}

	result := p.snapshot.Evaluate(in.Input)

	now := time.Now().UTC()
	req := &domain.BuybackRequest{
		ID:        uuid.New().String(),
		Contact:   in.Contact,
		Input:     in.Input,
		Result:    result,
		Status:    domain.BuybackPending,
		TraceID:   in.TraceID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	accepted, err := p.policy.Accept(ctx, req)
	if err != nil {
		// A broken policy must not block submissions.
		slog.Warn("acceptance policy failed, routing to manual review",
			"request_id", req.ID,
			"error", err,
		)
		accepted = false
	}

	req.FastTrack = accepted
	if !accepted {
		req.Status = domain.BuybackReview
	}

	if err := p.repo.SaveBuybackRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save buyback request: %w", err)
	}

	p.publishSubmitted(ctx, req)

	return req, nil
}

// UpdateStatus moves a request through the back-office workflow.
func (p *Processor) UpdateStatus(ctx context.Context, id string, status domain.BuybackStatus) error {
	switch status {
	case domain.BuybackPending, domain.BuybackReview, domain.BuybackQuoted, domain.BuybackRejected:
	default:
		return fmt.Errorf("unknown status: %s", status)
	}

	if _, err := p.repo.GetBuybackRequest(ctx, id); err != nil {
		return err
	}

	return p.repo.SetBuybackStatus(ctx, id, status)
}

func (p *Processor) publishSubmitted(ctx context.Context, req *domain.BuybackRequest) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(submittedEvent{
		ID:        req.ID,
		Total:     req.Result.Total,
		FastTrack: req.FastTrack,
		Contact:   req.Contact,
	})
	if err != nil {
		return
	}

	if err := p.bus.Publish(ctx, domain.TopicBuybackSubmitted, payload); err != nil {
		slog.Warn("failed to publish buyback event",
			"request_id", req.ID,
			"error", err,
		)
	}
}
