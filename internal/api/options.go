package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dientoan/secom-client/pkg/models"
)

// FindOptions fetches the entries of one option group.
func (c *Client) FindOptions(ctx context.Context, groupCode string) ([]models.Option, error) {
	query := url.Values{}
	query.Set("optionGroupCode", groupCode)

	var page models.OptionPage
	if err := c.do(ctx, http.MethodGet, "/option/find", query, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch option group %s: %w", groupCode, err)
	}
	return page.Content, nil
}

// SearchOrgUnits fetches one level of the org-unit hierarchy.
func (c *Client) SearchOrgUnits(ctx context.Context, lvl int) ([]models.OrgUnit, error) {
	query := url.Values{}
	query.Set("lvl", strconv.Itoa(lvl))

	var page models.OrgUnitPage
	if err := c.do(ctx, http.MethodGet, "/org-unit/search", query, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch org units at level %d: %w", lvl, err)
	}
	return page.Content, nil
}
