package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/dientoan/secom-client/pkg/models"
)

// FetchUser resolves the authenticated profile. The backend has no /me
// endpoint, so the user list is matched against the login username, then
// against id/sub/email claims pulled out of the access token, and as a last
// resort the first record is taken. That final fallback is best effort and
// can be wrong; it mirrors what the backend forces on every client.
func (s *Session) FetchUser(ctx context.Context, username string) error {
	users, err := s.client.FindUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		return fmt.Errorf("backend returned no users")
	}

	user := matchByUsername(users, username)

	if user == nil {
		if claims := s.tokenClaims(); claims != nil {
			user = matchByClaims(users, claims)
		}
	}

	if user == nil {
		user = &users[0]
		s.logger.WithFields(logrus.Fields{
			"username": username,
			"resolved": user.Username,
		}).Warn("No user matched login or token claims, taking first record")
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.storeUser(user)

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("Resolved user profile")
	return nil
}

func matchByUsername(users []models.User, username string) *models.User {
	if username == "" {
		return nil
	}
	for i := range users {
		if users[i].Username == username || users[i].Email == username {
			return &users[i]
		}
	}
	return nil
}

func matchByClaims(users []models.User, claims jwt.MapClaims) *models.User {
	id, _ := claims["id"].(string)
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)

	for i := range users {
		u := &users[i]
		if (id != "" && u.ID == id) ||
			(sub != "" && (u.ID == sub || u.Username == sub)) ||
			(email != "" && u.Email == email) {
			return u
		}
	}
	return nil
}

// tokenClaims extracts the JWT payload without verifying the signature. The
// claims only narrow the user lookup, they grant nothing.
func (s *Session) tokenClaims() jwt.MapClaims {
	token := s.AccessToken()
	if token == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		s.logger.WithError(err).Debug("Access token is not a parseable JWT")
		return nil
	}
	return claims
}
