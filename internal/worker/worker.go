// Package worker provides async notification fan-out from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gametrade/appraisal/internal/domain"
)

// Notification is the normalized message delivered to operators.
type Notification struct {
	Kind      string `json:"kind"`
	Subject   string `json:"subject"`
	RefID     string `json:"refId"`
	Timestamp int64  `json:"timestamp"`
}

// Notifier delivers notifications to an external channel (ops chat,
// email digest). The default implementation just logs.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

// Notify logs the notification.
func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	slog.Info("notification",
		"kind", n.Kind,
		"subject", n.Subject,
		"ref_id", n.RefID,
	)
	return nil
}

// Worker listens for domain events and fans them out as notifications.
type Worker struct {
	bus      domain.EventBus
	notifier Notifier

	subscriptions []domain.Subscription
	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a notification worker.
func NewWorker(bus domain.EventBus, notifier Notifier) *Worker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the notification-worthy topics.
func (w *Worker) Start() error {
	topics := []string{
		domain.TopicBuybackSubmitted,
		domain.TopicReviewSubmitted,
		domain.TopicListingLiked,
	}

	for _, topic := range topics {
		sub, err := w.bus.Subscribe(w.ctx, topic, w.handleMessage)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		w.mu.Lock()
		w.subscriptions = append(w.subscriptions, sub)
		w.mu.Unlock()
	}

	slog.Info("notification worker started",
		"topic_count", len(topics),
	)

	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	n := buildNotification(msg)

	if err := w.notifier.Notify(ctx, n); err != nil {
		slog.Error("notification delivery failed",
			"kind", n.Kind,
			"ref_id", n.RefID,
			"error", err,
		)
		return err
	}

	// Re-publish the normalized form so external consumers can tap a
	// single topic instead of every domain event.
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := w.bus.Publish(ctx, domain.TopicNotification, payload); err != nil {
		slog.Warn("failed to republish notification",
			"kind", n.Kind,
			"error", err,
		)
	}

	return nil
}

// buildNotification maps a raw event to its operator-facing form.
func buildNotification(msg *domain.Message) Notification {
	n := Notification{
		RefID:     msg.ID,
		Timestamp: time.Now().UnixNano(),
	}

	var payload struct {
		ID        string `json:"id"`
		Total     int    `json:"total"`
		FastTrack bool   `json:"fastTrack"`
		ListingID string `json:"listingId"`
	}
	_ = json.Unmarshal(msg.Payload, &payload)
	if payload.ID != "" {
		n.RefID = payload.ID
	}

	switch msg.Topic {
	case domain.TopicBuybackSubmitted:
		n.Kind = "buyback"
		if payload.FastTrack {
			n.Subject = fmt.Sprintf("Buyback submitted: %d yen, fast-tracked", payload.Total)
		} else {
			n.Subject = fmt.Sprintf("Buyback submitted: %d yen, needs review", payload.Total)
		}
	case domain.TopicReviewSubmitted:
		n.Kind = "review"
		n.Subject = "New review awaiting moderation"
		if payload.ListingID != "" {
			n.RefID = payload.ListingID
		}
	case domain.TopicListingLiked:
		n.Kind = "like"
		n.Subject = "Listing liked"
		if payload.ListingID != "" {
			n.RefID = payload.ListingID
		}
	default:
		n.Kind = "event"
		n.Subject = msg.Topic
	}

	return n
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("notification worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
