// Package domain defines the core interfaces and types for the appraisal service.
package domain

import (
	"context"
	"time"
)

// CategoryOrderUpdate assigns one sort_order value to every rule in a
// category. Produced by the ordering model, applied by the repository.
type CategoryOrderUpdate struct {
	Category  string `json:"category"`
	SortOrder int    `json:"sortOrder"`
}

// Repository defines the interface for data persistence.
type Repository interface {
	// Assessment rule operations. ListRules returns rules in store
	// order: sort_order asc, category asc, threshold asc.
	ListRules(ctx context.Context) ([]AssessmentRule, error)
	GetRule(ctx context.Context, id string) (*AssessmentRule, error)
	SaveRule(ctx context.Context, rule *AssessmentRule) error
	DeleteRule(ctx context.Context, id string) error

	// ReorderCategories applies one UPDATE per category concurrently.
	// The batch is best-effort: there is no transaction across
	// categories and successful updates are not rolled back when
	// others fail. Per-category failures are aggregated into the
	// returned error.
	ReorderCategories(ctx context.Context, updates []CategoryOrderUpdate) error

	// Listing operations
	SaveListing(ctx context.Context, l *Listing) error
	GetListing(ctx context.Context, id string) (*Listing, error)
	SearchListings(ctx context.Context, f ListingFilter) ([]*Listing, error)
	DeleteListing(ctx context.Context, id string) error

	// Like operations. ToggleLike returns true when the like now exists.
	ToggleLike(ctx context.Context, listingID, guestID string) (bool, error)
	CountLikes(ctx context.Context, listingID string) (int64, error)

	// Review operations
	SaveReview(ctx context.Context, r *Review) error
	ListReviews(ctx context.Context, listingID string, status ReviewStatus) ([]*Review, error)
	SetReviewStatus(ctx context.Context, id string, status ReviewStatus) error

	// Buyback request operations
	SaveBuybackRequest(ctx context.Context, req *BuybackRequest) error
	GetBuybackRequest(ctx context.Context, id string) (*BuybackRequest, error)
	ListBuybackRequests(ctx context.Context, status BuybackStatus) ([]*BuybackRequest, error)
	SetBuybackStatus(ctx context.Context, id string, status BuybackStatus) error

	// Site config key-value operations (campaign metadata, policy text).
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Admin user operations
	GetAdminUser(ctx context.Context, loginID string) (*AdminUser, error)
	SaveAdminUser(ctx context.Context, u *AdminUser) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
