// Package session owns the signed-in identity: the token pair and a JSON
// snapshot of the user, mirrored into local storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"socialfeed/internal/models"
	"socialfeed/internal/observability"
	"socialfeed/internal/storage"
)

// Local storage keys.
const (
	TokenKey           = "token"
	RefreshTokenKey    = "refreshToken"
	UserKey            = "user"
	LegacyAvatarPrefix = "profile_pic_"
)

// ErrNoToken is returned when a session is opened without an access token.
var ErrNoToken = errors.New("session: access token is required")

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// WhoAmI fetches the current user from the server.
type WhoAmI func(ctx context.Context) (*models.User, error)

// Refresher exchanges a refresh token for a new token pair.
type Refresher func(ctx context.Context, refreshToken string) (token, newRefreshToken string, err error)

// Store is the single owner of session state. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	storage storage.Storage
	current models.Session
}

func NewStore(st storage.Storage) *Store {
	return &Store{storage: st}
}

// Login opens a session and persists it. Register has the same effect.
func (s *Store) Login(ctx context.Context, token, refreshToken string, user models.User) error {
	if token == "" {
		return ErrNoToken
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user snapshot: %w", err)
	}

	s.mu.Lock()
	s.current = models.Session{AccessToken: token, RefreshToken: refreshToken, User: &user}
	s.mu.Unlock()

	if err := s.storage.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}
	if refreshToken != "" {
		if err := s.storage.Set(ctx, RefreshTokenKey, refreshToken); err != nil {
			return fmt.Errorf("persisting refresh token: %w", err)
		}
	} else if err := s.storage.Remove(ctx, RefreshTokenKey); err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}
	if err := s.storage.Set(ctx, UserKey, string(raw)); err != nil {
		return fmt.Errorf("persisting user: %w", err)
	}

	observability.SessionEvents.WithLabelValues("login").Inc()
	observability.Logger.InfoContext(ctx, "session opened", slog.String("username", user.Username))
	return nil
}

// Register opens a session for a newly created account.
func (s *Store) Register(ctx context.Context, token, refreshToken string, user models.User) error {
	return s.Login(ctx, token, refreshToken, user)
}

// Logout clears the session in memory and in storage. Memory is cleared even
// when storage fails, so the caller can always treat the user as signed out.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = models.Session{}
	s.mu.Unlock()

	observability.SessionEvents.WithLabelValues("logout").Inc()
	if err := s.storage.Remove(ctx, TokenKey, RefreshTokenKey, UserKey); err != nil {
		return fmt.Errorf("clearing persisted session: %w", err)
	}
	return nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Store) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.User == nil {
		return nil
	}
	u := *s.current.User
	if u.Profile != nil {
		p := *u.Profile
		u.Profile = &p
	}
	return &u
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.User != nil && s.current.AccessToken != ""
}

// AccessToken implements graphql.TokenSource.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.RefreshToken
}

// UpdateUser replaces the user snapshot of the open session.
func (s *Store) UpdateUser(ctx context.Context, user models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user snapshot: %w", err)
	}

	s.mu.Lock()
	if s.current.AccessToken == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.current.User = &user
	s.mu.Unlock()

	if err := s.storage.Set(ctx, UserKey, string(raw)); err != nil {
		return fmt.Errorf("persisting user: %w", err)
	}
	return nil
}

// Restore loads a persisted session. Both the token and a decodable user
// snapshot must be present; otherwise the store stays signed out.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	token, err := s.storage.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && token == "") {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading token: %w", err)
	}

	rawUser, err := s.storage.Get(ctx, UserKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		observability.Logger.WarnContext(ctx, "discarding unreadable user snapshot", slog.String("error", err.Error()))
		return false, nil
	}

	refresh, err := s.storage.Get(ctx, RefreshTokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("reading refresh token: %w", err)
	}

	s.mu.Lock()
	s.current = models.Session{AccessToken: token, RefreshToken: refresh, User: &user}
	s.mu.Unlock()

	observability.SessionEvents.WithLabelValues("restore").Inc()
	return true, nil
}

// Reconcile asks the server who the token belongs to and refreshes the user
// snapshot. Failures are logged; the local identity stays authoritative.
func (s *Store) Reconcile(ctx context.Context, whoAmI WhoAmI) {
	token := s.AccessToken()
	if token == "" {
		return
	}

	user, err := whoAmI(ctx)
	if err != nil {
		observability.SessionEvents.WithLabelValues("reconcile_failed").Inc()
		observability.Logger.WarnContext(ctx, "session reconcile failed", slog.String("error", err.Error()))
		return
	}
	if user == nil {
		observability.SessionEvents.WithLabelValues("reconcile_failed").Inc()
		observability.Logger.WarnContext(ctx, "session reconcile returned no user")
		return
	}

	// The user may have logged out or switched accounts while we waited.
	if s.AccessToken() != token {
		return
	}
	if err := s.UpdateUser(ctx, *user); err != nil {
		observability.Logger.WarnContext(ctx, "persisting reconciled user failed", slog.String("error", err.Error()))
		return
	}
	observability.SessionEvents.WithLabelValues("reconciled").Inc()
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// RefreshIfExpired swaps an expired access token for a fresh pair. Tokens
// without a readable exp claim are left alone. It reports whether a refresh happened.
func (s *Store) RefreshIfExpired(ctx context.Context, now time.Time, refresh Refresher) (bool, error) {
	s.mu.RLock()
	token, refreshToken := s.current.AccessToken, s.current.RefreshToken
	s.mu.RUnlock()

	if token == "" || refreshToken == "" {
		return false, nil
	}
	exp, ok := TokenExpiry(token)
	if !ok || now.Before(exp) {
		return false, nil
	}

	newToken, newRefresh, err := refresh(ctx, refreshToken)
	if err != nil {
		observability.SessionEvents.WithLabelValues("refresh_failed").Inc()
		return false, fmt.Errorf("refreshing token: %w", err)
	}
	if newToken == "" {
		observability.SessionEvents.WithLabelValues("refresh_failed").Inc()
		return false, ErrNoToken
	}
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	s.mu.Lock()
	if s.current.AccessToken != token {
		s.mu.Unlock()
		return false, nil
	}
	s.current.AccessToken = newToken
	s.current.RefreshToken = newRefresh
	s.mu.Unlock()

	if err := s.storage.Set(ctx, TokenKey, newToken); err != nil {
		return true, fmt.Errorf("persisting token: %w", err)
	}
	if err := s.storage.Set(ctx, RefreshTokenKey, newRefresh); err != nil {
		return true, fmt.Errorf("persisting refresh token: %w", err)
	}

	observability.SessionEvents.WithLabelValues("refreshed").Inc()
	observability.Logger.InfoContext(ctx, "access token refreshed")
	return true, nil
}

// LegacyAvatar returns a picture saved under profile_pic_<username> by
// older versions of the client, or "".
func (s *Store) LegacyAvatar(ctx context.Context, username string) string {
	if username == "" {
		return ""
	}
	v, err := s.storage.Get(ctx, LegacyAvatarPrefix+username)
	if err != nil {
		return ""
	}
	return v
}
