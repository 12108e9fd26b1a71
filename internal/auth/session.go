// Package auth holds the login session: the bearer token pair, the resolved
// profile, and their persisted copies in device storage.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dientoan/secom-client/internal/api"
	"github.com/dientoan/secom-client/internal/storage"
	"github.com/dientoan/secom-client/pkg/models"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
)

// AuthError is a failed credential or token exchange.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %s", e.Code, e.Message)
}

// Session is the authenticated session store. It implements api.TokenSource
// so the client can refresh transparently on a 401.
//
// There is no locking across whole operations: two overlapping LogIn calls
// race and the last writer wins, same as the app this replaces.
type Session struct {
	client       *api.Client
	store        storage.Store
	logger       *logrus.Logger
	tokenPath    string
	clientID     string
	clientSecret string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *models.User
	loggedIn     bool
}

func NewSession(client *api.Client, store storage.Store, tokenPath, clientID, clientSecret string, logger *logrus.Logger) *Session {
	return &Session{
		client:       client,
		store:        store,
		logger:       logger,
		tokenPath:    tokenPath,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// AccessToken returns the current bearer token, or "" when logged out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// IsLoggedIn reports whether a token is held. No token means logged out.
func (s *Session) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn && s.accessToken != ""
}

// User returns the resolved profile, or nil before FetchUser succeeds.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// LogIn exchanges credentials via the OAuth2 password grant, persists the
// token pair and resolves the profile. On failure the previous session state
// is left untouched.
func (s *Session) LogIn(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)

	var tokens models.TokenResponse
	if err := s.client.PostForm(ctx, s.tokenPath, form, &tokens); err != nil {
		s.logger.WithError(err).WithField("username", username).Warn("Login failed")
		return &AuthError{Code: "invalid_grant", Message: err.Error()}
	}
	if tokens.AccessToken == "" {
		return &AuthError{Code: "invalid_response", Message: "token endpoint returned no access token"}
	}

	s.storeTokens(&tokens)

	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		s.refreshToken = tokens.RefreshToken
	}
	s.loggedIn = true
	s.mu.Unlock()

	if err := s.FetchUser(ctx, username); err != nil {
		// The token is valid even when the profile lookup fails; the profile
		// stays nil until a later FetchUser succeeds.
		s.logger.WithError(err).Warn("Could not resolve user profile after login")
	}

	s.logger.WithField("username", username).Info("User logged in")
	return nil
}

// LogOut clears the persisted token pair and profile and resets the session.
// Storage failures are logged and swallowed so callers can always log out.
func (s *Session) LogOut() {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyUser} {
		if err := s.store.Delete(key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to clear stored credential")
		}
	}

	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.user = nil
	s.loggedIn = false
	s.mu.Unlock()

	s.logger.Info("User logged out")
}

// Refresh exchanges the refresh token for a new token pair. A failed refresh
// forces a logout and returns the error.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		s.LogOut()
		return &AuthError{Code: "no_refresh_token", Message: "no refresh token held"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)

	var tokens models.TokenResponse
	if err := s.client.PostForm(ctx, s.tokenPath, form, &tokens); err != nil {
		s.logger.WithError(err).Warn("Token refresh failed, forcing logout")
		s.LogOut()
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if tokens.AccessToken == "" {
		s.LogOut()
		return &AuthError{Code: "invalid_response", Message: "refresh returned no access token"}
	}

	s.storeTokens(&tokens)

	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		s.refreshToken = tokens.RefreshToken
	}
	s.loggedIn = true
	s.mu.Unlock()

	s.logger.Info("Token refreshed")
	return nil
}

// Restore loads a previously persisted session from storage, the equivalent
// of the app's load-token-on-launch path. Missing entries are not an error.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.Get(keyAccessToken)
	if err != nil {
		if err != storage.ErrNotFound {
			s.logger.WithError(err).Warn("Failed to read stored token")
		}
		return nil
	}

	s.mu.Lock()
	s.accessToken = string(token)
	s.loggedIn = true
	s.mu.Unlock()

	if refresh, err := s.store.Get(keyRefreshToken); err == nil {
		s.mu.Lock()
		s.refreshToken = string(refresh)
		s.mu.Unlock()
	}

	if raw, err := s.store.Get(keyUser); err == nil {
		var user models.User
		if err := json.Unmarshal(raw, &user); err == nil {
			s.mu.Lock()
			s.user = &user
			s.mu.Unlock()
		} else {
			s.logger.WithError(err).Warn("Discarding corrupted stored profile")
			s.store.Delete(keyUser)
		}
	}

	s.logger.Info("Session restored from storage")
	return nil
}

func (s *Session) storeTokens(tokens *models.TokenResponse) {
	if err := s.store.Set(keyAccessToken, []byte(tokens.AccessToken)); err != nil {
		s.logger.WithError(err).Warn("Failed to persist access token")
	}
	if tokens.RefreshToken != "" {
		if err := s.store.Set(keyRefreshToken, []byte(tokens.RefreshToken)); err != nil {
			s.logger.WithError(err).Warn("Failed to persist refresh token")
		}
	}
}

func (s *Session) storeUser(user *models.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.store.Set(keyUser, raw); err != nil {
		s.logger.WithError(err).Warn("Failed to persist user profile")
	}
}
