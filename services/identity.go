package services

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAuthenticated means no signed-in user is attached to the request
var ErrNotAuthenticated = errors.New("not authenticated")

// User is the signed-in retailer staff member
type User struct {
	ID         string
	RetailerID string
}

// Identity supplies the current user and keeps their credentials fresh
type Identity interface {
	CurrentUser(ctx context.Context) (*User, error)
	RefreshToken(ctx context.Context) error
}

// TokenVerifier checks an access token with the identity provider
type TokenVerifier interface {
	GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error)
}

// RequestIdentity is the Identity of one authenticated HTTP request
type RequestIdentity struct {
	UserID      string
	RetailerID  string
	AccessToken string
	// Verifier is nil when tokens are checked locally only
	Verifier TokenVerifier
}

var _ Identity = (*RequestIdentity)(nil)

// CurrentUser returns the request's user or ErrNotAuthenticated
func (r *RequestIdentity) CurrentUser(ctx context.Context) (*User, error) {
	if r == nil || r.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	return &User{ID: r.UserID, RetailerID: r.RetailerID}, nil
}

// RefreshToken re-checks the bearer token with the identity provider so a
// revoked session fails before anything is written to storage
func (r *RequestIdentity) RefreshToken(ctx context.Context) error {
	if r == nil || r.UserID == "" || r.AccessToken == "" {
		return ErrNotAuthenticated
	}
	if r.Verifier == nil {
		return nil
	}

	info, err := r.Verifier.GetUserInfo(ctx, r.AccessToken)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if info.Sub != r.UserID {
		return fmt.Errorf("token refresh returned subject %q, expected %q", info.Sub, r.UserID)
	}
	return nil
}

// StaticIdentity is a fixed Identity for tests and tooling
type StaticIdentity struct {
	User       *User
	RefreshErr error
	Refreshes  int
}

// CurrentUser returns the configured user or ErrNotAuthenticated
func (s *StaticIdentity) CurrentUser(ctx context.Context) (*User, error) {
	if s.User == nil {
		return nil, ErrNotAuthenticated
	}
	return s.User, nil
}

// RefreshToken counts the call and returns RefreshErr
func (s *StaticIdentity) RefreshToken(ctx context.Context) error {
	s.Refreshes++
	return s.RefreshErr
}
