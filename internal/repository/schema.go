package repository

// Schema definitions for the appraisal database.
// Compatible with both SQLite and PostgreSQL.

const schemaAssessmentRules = `
CREATE TABLE IF NOT EXISTS assessment_rules (
    id TEXT PRIMARY KEY,
    rule_type TEXT NOT NULL,
    category TEXT NOT NULL,
    label TEXT,
    threshold INTEGER,
    price_adjustment INTEGER NOT NULL DEFAULT 0,
    sort_order INTEGER NOT NULL DEFAULT 0,
    input_placeholder TEXT,
    input_unit TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessment_rules_category ON assessment_rules(category);
CREATE INDEX IF NOT EXISTS idx_assessment_rules_order ON assessment_rules(sort_order, category);
`

const schemaListings = `
CREATE TABLE IF NOT EXISTS listings (
    id TEXT PRIMARY KEY,
    game TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    price INTEGER NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listings_game ON listings(game);
CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
`

const schemaLikes = `
CREATE TABLE IF NOT EXISTS likes (
    listing_id TEXT NOT NULL,
    guest_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (listing_id, guest_id)
);

CREATE INDEX IF NOT EXISTS idx_likes_listing ON likes(listing_id);
`

const schemaReviews = `
CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    listing_id TEXT NOT NULL,
    author TEXT NOT NULL,
    rating INTEGER NOT NULL,
    body TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_listing ON reviews(listing_id, status);
`

const schemaBuybackRequests = `
CREATE TABLE IF NOT EXISTS buyback_requests (
    id TEXT PRIMARY KEY,
    contact TEXT NOT NULL,
    input TEXT NOT NULL,
    result TEXT NOT NULL,
    fast_track INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    trace_id TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_buyback_status ON buyback_requests(status);
CREATE INDEX IF NOT EXISTS idx_buyback_created ON buyback_requests(created_at);
`

const schemaSiteConfig = `
CREATE TABLE IF NOT EXISTS site_config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaAdminUsers = `
CREATE TABLE IF NOT EXISTS admin_users (
    id TEXT PRIMARY KEY,
    login_id TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessmentRules,
		schemaListings,
		schemaLikes,
		schemaReviews,
		schemaBuybackRequests,
		schemaSiteConfig,
		schemaAdminUsers,
	}
}
