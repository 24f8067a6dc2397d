package domain

import "time"

// ListingStatus is the publication state of a listing.
type ListingStatus string

const (
	ListingDraft     ListingStatus = "draft"
	ListingPublished ListingStatus = "published"
	ListingSold      ListingStatus = "sold"
)

// Listing is a game account offered for sale.
type Listing struct {
	ID          string        `json:"id"`
	Game        string        `json:"game"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Price       int           `json:"price"`
	Status      ListingStatus `json:"status"`
	LikeCount   int64         `json:"likeCount"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ListingFilter narrows listing searches. Zero values mean "any".
type ListingFilter struct {
	Game     string
	MinPrice int
	MaxPrice int
	Status   ListingStatus
	Sort     string // "newest", "price_asc", "price_desc"
	Limit    int
}

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Review is customer feedback on a listing, visible publicly only once
// approved by an admin.
type Review struct {
	ID        string       `json:"id"`
	ListingID string       `json:"listingId"`
	Author    string       `json:"author"`
	Rating    int          `json:"rating"`
	Body      string       `json:"body"`
	Status    ReviewStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Like records a guest's like on a listing. Identity is the anonymous
// guest cookie, not an account.
type Like struct {
	ListingID string    `json:"listingId"`
	GuestID   string    `json:"guestId"`
	CreatedAt time.Time `json:"createdAt"`
}
