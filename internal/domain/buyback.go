package domain

import "time"

// BuybackStatus is the back-office state of a buyback request.
type BuybackStatus string

const (
	BuybackPending  BuybackStatus = "pending"
	BuybackReview   BuybackStatus = "review"
	BuybackQuoted   BuybackStatus = "quoted"
	BuybackRejected BuybackStatus = "rejected"
)

// BuybackRequest is a persisted appraisal submission: the inputs the
// customer entered, the total computed from the rule snapshot at
// submission time, and the moderation state.
type BuybackRequest struct {
	ID      string           `json:"id"`
	Contact string           `json:"contact"`
	Input   AssessmentInput  `json:"input"`
	Result  AssessmentResult `json:"result"`

	// FastTrack is set when the acceptance policy passed at submission;
	// fast-tracked requests skip manual pricing review.
	FastTrack bool `json:"fastTrack"`

	Status    BuybackStatus `json:"status"`
	TraceID   string        `json:"traceId,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// AdminUser is a back-office operator. LoginID is the human-chosen
// identifier; Email is the synthetic address derived from it for the
// auth provider.
type AdminUser struct {
	ID           string    `json:"id"`
	LoginID      string    `json:"loginId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
