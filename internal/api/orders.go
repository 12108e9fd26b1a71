package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dientoan/secom-client/pkg/models"
	"github.com/sirupsen/logrus"
)

// FindOrders fetches one page of orders from /facility/find.
func (c *Client) FindOrders(ctx context.Context, page, size int) (*models.OrderPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var result models.OrderPage
	if err := c.do(ctx, http.MethodGet, "/facility/find", query, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"page":           page,
		"count":          len(result.Content),
		"total_elements": result.TotalElements,
	}).Debug("Fetched order page")
	return &result, nil
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodGet, "/facility/"+url.PathEscape(id), nil, nil, &order); err != nil {
		return nil, fmt.Errorf("failed to fetch order %s: %w", id, err)
	}
	return &order, nil
}

// CreateOrder posts a new order and returns the created entity.
func (c *Client) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	var created models.Order
	if err := c.do(ctx, http.MethodPost, "/facility", nil, order, &created); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	c.logger.WithField("order_id", created.ID).Info("Order created")
	return &created, nil
}

// UpdateOrder patches an existing order. The body must carry the id and the
// version the client last saw; the backend rejects a stale version.
func (c *Client) UpdateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	var updated models.Order
	if err := c.do(ctx, http.MethodPatch, "/facility", nil, order, &updated); err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	c.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"version":  order.Version,
	}).Info("Order updated")
	return &updated, nil
}

// CreateOrderPayload posts an order in its raw draft form. Drafts submit
// through this path so explicit nulls and draft-only fields reach the wire
// unchanged.
func (c *Client) CreateOrderPayload(ctx context.Context, payload map[string]interface{}) (*models.Order, error) {
	var created models.Order
	if err := c.do(ctx, http.MethodPost, "/facility", nil, payload, &created); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	c.logger.WithField("order_id", created.ID).Info("Order created")
	return &created, nil
}

// UpdateOrderPayload patches an order from a raw payload carrying the id and
// the last seen version.
func (c *Client) UpdateOrderPayload(ctx context.Context, payload map[string]interface{}) (*models.Order, error) {
	var updated models.Order
	if err := c.do(ctx, http.MethodPatch, "/facility", nil, payload, &updated); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	c.logger.WithField("order_id", updated.ID).Info("Order updated")
	return &updated, nil
}

// FacilityStatistics fetches the aggregate per-facility counts report.
func (c *Client) FacilityStatistics(ctx context.Context, reportID string) ([]models.FacilityStat, error) {
	var stats []models.FacilityStat
	path := "/dashboard/facility-statistic/" + url.PathEscape(reportID)
	if err := c.do(ctx, http.MethodPost, path, nil, struct{}{}, &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch facility statistics: %w", err)
	}
	return stats, nil
}
