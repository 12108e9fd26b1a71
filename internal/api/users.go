package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dientoan/secom-client/pkg/models"
)

// FindUsers lists backend user records. There is no /me endpoint, so the
// session resolves the current profile out of this list.
func (c *Client) FindUsers(ctx context.Context) ([]models.User, error) {
	var page models.UserPage
	if err := c.do(ctx, http.MethodGet, "/user/find", nil, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return page.Content, nil
}

// GetUser fetches a single user by id.
func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(id), nil, nil, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}
	return &user, nil
}

// UpdateUser patches the profile record.
func (c *Client) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	var updated models.User
	if err := c.do(ctx, http.MethodPatch, "/user", nil, user, &updated); err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return &updated, nil
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword replaces the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := c.do(ctx, http.MethodPut, "/user/change-password", nil, req, nil); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	c.logger.Info("Password changed")
	return nil
}
