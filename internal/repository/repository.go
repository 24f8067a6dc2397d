// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gametrade/appraisal/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// ListRules returns all assessment rules in store order:
// sort_order asc, category asc, threshold asc. Boolean rules carry a
// null threshold which sorts as 0 on both drivers.
func (r *SQLRepository) ListRules(ctx context.Context) ([]domain.AssessmentRule, error) {
	query := `
		SELECT id, rule_type, category, label, threshold, price_adjustment,
			   sort_order, input_placeholder, input_unit
		FROM assessment_rules
		ORDER BY sort_order ASC, category ASC, COALESCE(threshold, 0) ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.AssessmentRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

// GetRule retrieves a rule by ID.
func (r *SQLRepository) GetRule(ctx context.Context, id string) (*domain.AssessmentRule, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, rule_type, category, label, threshold, price_adjustment,
			   sort_order, input_placeholder, input_unit
		FROM assessment_rules
		WHERE id = ?
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// SaveRule upserts a rule by ID. An individual save never touches
// sort_order of other rules.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.AssessmentRule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}
	if rule.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}

	var threshold sql.NullInt64
	if rule.Threshold != nil {
		threshold = sql.NullInt64{Int64: int64(*rule.Threshold), Valid: true}
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO assessment_rules (
			id, rule_type, category, label, threshold, price_adjustment,
			sort_order, input_placeholder, input_unit, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rule_type = excluded.rule_type,
			category = excluded.category,
			label = excluded.label,
			threshold = excluded.threshold,
			price_adjustment = excluded.price_adjustment,
			sort_order = excluded.sort_order,
			input_placeholder = excluded.input_placeholder,
			input_unit = excluded.input_unit,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, string(rule.RuleType), rule.Category, rule.Label, threshold,
		rule.PriceAdjustment, rule.SortOrder, rule.InputPlaceholder,
		rule.InputUnit, now, now,
	)
	return err
}

// DeleteRule hard-deletes a rule. There is no soft delete or undo.
func (r *SQLRepository) DeleteRule(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM assessment_rules WHERE id = ?`), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ReorderCategories applies one UPDATE per category, issued
// concurrently. The batch is deliberately non-transactional: a failing
// category does not roll back the others. Failures are aggregated into
// the returned error so the caller can surface partial completion.
func (r *SQLRepository) ReorderCategories(ctx context.Context, updates []domain.CategoryOrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	query := r.rebind(`UPDATE assessment_rules SET sort_order = ?, updated_at = ? WHERE category = ?`)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	errs := make([]error, len(updates))
	for i, u := range updates {
		wg.Add(1)
		go func(idx int, u domain.CategoryOrderUpdate) {
			defer wg.Done()
			if _, err := r.db.ExecContext(ctx, query, u.SortOrder, now, u.Category); err != nil {
				errs[idx] = fmt.Errorf("category %s: %w", u.Category, err)
			}
		}(i, u)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// SaveListing upserts a listing by ID.
func (r *SQLRepository) SaveListing(ctx context.Context, l *domain.Listing) error {
	if l.ID == "" {
		return fmt.Errorf("%w: listing id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	query := `
		INSERT INTO listings (
			id, game, title, description, price, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			game = excluded.game,
			title = excluded.title,
			description = excluded.description,
			price = excluded.price,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		l.ID, l.Game, l.Title, l.Description, l.Price, string(l.Status),
		l.CreatedAt, l.UpdatedAt,
	)
	return err
}

// GetListing retrieves a listing by ID with its like count.
func (r *SQLRepository) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: listing id is required", ErrInvalidInput)
	}

	query := `
		SELECT l.id, l.game, l.title, l.description, l.price, l.status,
			   l.created_at, l.updated_at,
			   (SELECT COUNT(*) FROM likes WHERE listing_id = l.id)
		FROM listings l
		WHERE l.id = ?
	`

	var l domain.Listing
	var status string
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&l.ID, &l.Game, &l.Title, &l.Description, &l.Price, &status,
		&l.CreatedAt, &l.UpdatedAt, &l.LikeCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Status = domain.ListingStatus(status)
	return &l, nil
}

// SearchListings retrieves listings matching a filter.
func (r *SQLRepository) SearchListings(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	var conds []string
	var args []any

	if f.Game != "" {
		conds = append(conds, "l.game = ?")
		args = append(args, f.Game)
	}
	if f.MinPrice > 0 {
		conds = append(conds, "l.price >= ?")
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		conds = append(conds, "l.price <= ?")
		args = append(args, f.MaxPrice)
	}
	if f.Status != "" {
		conds = append(conds, "l.status = ?")
		args = append(args, string(f.Status))
	}

	query := `
		SELECT l.id, l.game, l.title, l.description, l.price, l.status,
			   l.created_at, l.updated_at,
			   (SELECT COUNT(*) FROM likes WHERE listing_id = l.id)
		FROM listings l
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	switch f.Sort {
	case "price_asc":
		query += " ORDER BY l.price ASC"
	case "price_desc":
		query += " ORDER BY l.price DESC"
	default:
		query += " ORDER BY l.created_at DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		var l domain.Listing
		var status string
		if err := rows.Scan(
			&l.ID, &l.Game, &l.Title, &l.Description, &l.Price, &status,
			&l.CreatedAt, &l.UpdatedAt, &l.LikeCount,
		); err != nil {
			return nil, err
		}
		l.Status = domain.ListingStatus(status)
		listings = append(listings, &l)
	}

	return listings, rows.Err()
}

// DeleteListing removes a listing and its likes.
func (r *SQLRepository) DeleteListing(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: listing id is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM listings WHERE id = ?`), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	_, err = r.db.ExecContext(ctx, r.rebind(`DELETE FROM likes WHERE listing_id = ?`), id)
	return err
}

// ToggleLike inserts or removes a like for the guest and reports
// whether the like now exists.
func (r *SQLRepository) ToggleLike(ctx context.Context, listingID, guestID string) (bool, error) {
	if listingID == "" || guestID == "" {
		return false, fmt.Errorf("%w: listingID and guestID are required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx,
		r.rebind(`DELETE FROM likes WHERE listing_id = ? AND guest_id = ?`),
		listingID, guestID,
	)
	if err != nil {
		return false, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if deleted > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx,
		r.rebind(`INSERT INTO likes (listing_id, guest_id, created_at) VALUES (?, ?, ?)`),
		listingID, guestID, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountLikes returns the like count for a listing.
func (r *SQLRepository) CountLikes(ctx context.Context, listingID string) (int64, error) {
	if listingID == "" {
		return 0, fmt.Errorf("%w: listingID is required", ErrInvalidInput)
	}

	var count int64
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT COUNT(*) FROM likes WHERE listing_id = ?`),
		listingID,
	).Scan(&count)
	return count, err
}

// SaveReview stores a review.
func (r *SQLRepository) SaveReview(ctx context.Context, rev *domain.Review) error {
	if rev.ID == "" || rev.ListingID == "" {
		return fmt.Errorf("%w: review id and listing id are required", ErrInvalidInput)
	}

	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO reviews (id, listing_id, author, rating, body, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rev.ID, rev.ListingID, rev.Author, rev.Rating, rev.Body,
		string(rev.Status), rev.CreatedAt,
	)
	return err
}

// ListReviews retrieves reviews, optionally filtered by listing and status.
func (r *SQLRepository) ListReviews(ctx context.Context, listingID string, status domain.ReviewStatus) ([]*domain.Review, error) {
	var conds []string
	var args []any
	if listingID != "" {
		conds = append(conds, "listing_id = ?")
		args = append(args, listingID)
	}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(status))
	}

	query := `SELECT id, listing_id, author, rating, body, status, created_at FROM reviews`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*domain.Review
	for rows.Next() {
		var rev domain.Review
		var st string
		if err := rows.Scan(&rev.ID, &rev.ListingID, &rev.Author, &rev.Rating, &rev.Body, &st, &rev.CreatedAt); err != nil {
			return nil, err
		}
		rev.Status = domain.ReviewStatus(st)
		reviews = append(reviews, &rev)
	}

	return reviews, rows.Err()
}

// SetReviewStatus updates a review's moderation state.
func (r *SQLRepository) SetReviewStatus(ctx context.Context, id string, status domain.ReviewStatus) error {
	if id == "" {
		return fmt.Errorf("%w: review id is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx,
		r.rebind(`UPDATE reviews SET status = ? WHERE id = ?`),
		string(status), id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveBuybackRequest stores a buyback request. Input and result are
// persisted as JSON documents.
func (r *SQLRepository) SaveBuybackRequest(ctx context.Context, req *domain.BuybackRequest) error {
	if req.ID == "" {
		return fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}

	input, _ := json.Marshal(req.Input)
	result, _ := json.Marshal(req.Result)

	fastTrack := 0
	if req.FastTrack {
		fastTrack = 1
	}

	query := `
		INSERT INTO buyback_requests (
			id, contact, input, result, fast_track, status, trace_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		req.ID, req.Contact, string(input), string(result), fastTrack,
		string(req.Status), req.TraceID, req.CreatedAt, req.UpdatedAt,
	)
	return err
}

// GetBuybackRequest retrieves a buyback request by ID.
func (r *SQLRepository) GetBuybackRequest(ctx context.Context, id string) (*domain.BuybackRequest, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, contact, input, result, fast_track, status, trace_id, created_at, updated_at
		FROM buyback_requests
		WHERE id = ?
	`

	req, err := scanBuyback(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListBuybackRequests retrieves requests, optionally filtered by status.
func (r *SQLRepository) ListBuybackRequests(ctx context.Context, status domain.BuybackStatus) ([]*domain.BuybackRequest, error) {
	query := `
		SELECT id, contact, input, result, fast_track, status, trace_id, created_at, updated_at
		FROM buyback_requests
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*domain.BuybackRequest
	for rows.Next() {
		req, err := scanBuyback(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// SetBuybackStatus updates a request's back-office state.
func (r *SQLRepository) SetBuybackStatus(ctx context.Context, id string, status domain.BuybackStatus) error {
	if id == "" {
		return fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx,
		r.rebind(`UPDATE buyback_requests SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetConfig reads a site config value.
func (r *SQLRepository) GetConfig(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: config key is required", ErrInvalidInput)
	}

	var value string
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT value FROM site_config WHERE key = ?`), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// SetConfig upserts a site config value.
func (r *SQLRepository) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: config key is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO site_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query), key, value, time.Now().UTC())
	return err
}

// GetAdminUser retrieves an admin account by login ID.
func (r *SQLRepository) GetAdminUser(ctx context.Context, loginID string) (*domain.AdminUser, error) {
	if loginID == "" {
		return nil, fmt.Errorf("%w: login id is required", ErrInvalidInput)
	}

	query := `SELECT id, login_id, email, password_hash, created_at FROM admin_users WHERE login_id = ?`

	var u domain.AdminUser
	err := r.db.QueryRowContext(ctx, r.rebind(query), loginID).Scan(
		&u.ID, &u.LoginID, &u.Email, &u.PasswordHash, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveAdminUser upserts an admin account by login ID.
func (r *SQLRepository) SaveAdminUser(ctx context.Context, u *domain.AdminUser) error {
	if u.ID == "" || u.LoginID == "" {
		return fmt.Errorf("%w: id and login id are required", ErrInvalidInput)
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO admin_users (id, login_id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(login_id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		u.ID, u.LoginID, u.Email, u.PasswordHash, u.CreatedAt,
	)
	return err
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.AssessmentRule, error) {
	var rule domain.AssessmentRule
	var ruleType string
	var label, placeholder, unit sql.NullString
	var threshold sql.NullInt64

	if err := row.Scan(
		&rule.ID, &ruleType, &rule.Category, &label, &threshold,
		&rule.PriceAdjustment, &rule.SortOrder, &placeholder, &unit,
	); err != nil {
		return nil, err
	}

	rule.RuleType = domain.RuleType(ruleType)
	rule.Label = label.String
	rule.InputPlaceholder = placeholder.String
	rule.InputUnit = unit.String
	if threshold.Valid {
		v := int(threshold.Int64)
		rule.Threshold = &v
	}

	return &rule, nil
}

func scanBuyback(row rowScanner) (*domain.BuybackRequest, error) {
	var req domain.BuybackRequest
	var input, result, status string
	var traceID sql.NullString
	var fastTrack int

	if err := row.Scan(
		&req.ID, &req.Contact, &input, &result, &fastTrack, &status,
		&traceID, &req.CreatedAt, &req.UpdatedAt,
	); err != nil {
		return nil, err
	}

	req.FastTrack = fastTrack == 1
	req.Status = domain.BuybackStatus(status)
	req.TraceID = traceID.String
	json.Unmarshal([]byte(input), &req.Input)
	json.Unmarshal([]byte(result), &req.Result)

	return &req, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
