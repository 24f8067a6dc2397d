// Package auth provides admin session management.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gametrade/appraisal/internal/domain"
)

var (
	// ErrInvalidCredentials is returned when the login ID or password
	// does not match a stored admin account.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired is returned when a session token is unknown or
	// past its TTL.
	ErrSessionExpired = errors.New("session expired")
)

// Manager issues and validates admin session tokens. Tokens live in the
// cache so a restart (or TTL expiry) invalidates them naturally.
type Manager struct {
	repo        domain.Repository
	cache       domain.Cache
	sessionTTL  time.Duration
	emailDomain string
}

// NewManager creates a session manager from auth configuration.
func NewManager(repo domain.Repository, cache domain.Cache, cfg domain.AuthConfig) *Manager {
	ttl := time.Duration(cfg.SessionTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	emailDomain := cfg.SyntheticEmailDomain
	if emailDomain == "" {
		emailDomain = "accounts.appraisal.local"
	}
	return &Manager{
		repo:        repo,
		cache:       cache,
		sessionTTL:  ttl,
		emailDomain: emailDomain,
	}
}

// Login verifies credentials and returns a new session token.
func (m *Manager) Login(ctx context.Context, loginID, password string) (string, error) {
	if loginID == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := m.repo.GetAdminUser(ctx, loginID)
	if err != nil {
		// Run the comparison against a dummy hash anyway so the
		// response time does not reveal whether the account exists.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0123456789012345678901uGZLCVXXCZXCZXCZXCZXCZXCZXCZXCe"), []byte(password))
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := uuid.New().String()
	if err := m.cache.Set(ctx, sessionKey(token), []byte(user.LoginID), m.sessionTTL); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Logout invalidates a session token.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.cache.Delete(ctx, sessionKey(token))
}

// Validate resolves a session token to the admin login ID.
func (m *Manager) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionExpired
	}

	data, err := m.cache.Get(ctx, sessionKey(token))
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	if data == nil {
		return "", ErrSessionExpired
	}

	return string(data), nil
}

// EnsureAdmin creates an admin account if the login ID is not taken.
// Existing accounts are left untouched. The recorded email is derived
// from the login ID and the configured synthetic domain.
func (m *Manager) EnsureAdmin(ctx context.Context, loginID, password string) error {
	if loginID == "" || password == "" {
		return fmt.Errorf("loginID and password are required")
	}

	if _, err := m.repo.GetAdminUser(ctx, loginID); err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.AdminUser{
		ID:           uuid.New().String(),
		LoginID:      loginID,
		Email:        m.SyntheticEmail(loginID),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	return m.repo.SaveAdminUser(ctx, user)
}

// SyntheticEmail derives the email recorded for an admin login ID.
func (m *Manager) SyntheticEmail(loginID string) string {
	return loginID + "@" + m.emailDomain
}

func sessionKey(token string) string {
	return "session:" + token
}
