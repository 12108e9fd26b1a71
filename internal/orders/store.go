// Package orders keeps the client-side order list: a paginated window for
// infinite scroll plus a separately fetched full dataset for the dashboard
// counts.
package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dientoan/secom-client/internal/api"
	"github.com/dientoan/secom-client/pkg/models"
)

var (
	// ErrAlreadyAssigned is returned when accepting an order some facility
	// already holds.
	ErrAlreadyAssigned = errors.New("order is already assigned")
	// ErrNotOwner is returned when returning an order the user does not hold.
	ErrNotOwner = errors.New("order is not assigned to this user")
	// ErrMissingFacilityType is returned when returning an order without
	// picking the next facility type.
	ErrMissingFacilityType = errors.New("next facility type is required")
)

// StatusCounts buckets the full dataset by assignment for the dashboard tabs.
type StatusCounts struct {
	Unassigned int
	Mine       int
	Others     int
}

// Store is the order list store. Every list it exposes is sorted descending
// by creation date after each mutation.
type Store struct {
	client *api.Client
	logger *logrus.Logger

	pageSize    int
	allPageSize int

	mu            sync.Mutex
	items         []models.Order
	allItems      []models.Order
	facilities    []models.FacilityStat
	totalElements int
	page          int
	hasMore       bool
	loadingMore   bool
}

func NewStore(client *api.Client, pageSize, allPageSize int, logger *logrus.Logger) *Store {
	if pageSize <= 0 {
		pageSize = 20
	}
	if allPageSize <= 0 {
		allPageSize = 100
	}
	return &Store{
		client:      client,
		logger:      logger,
		pageSize:    pageSize,
		allPageSize: allPageSize,
		hasMore:     true,
	}
}

// Orders returns a copy of the paginated window.
func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.items...)
}

// AllOrders returns a copy of the full dataset from the last FetchAllOrders.
func (s *Store) AllOrders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.allItems...)
}

// Facilities returns the last fetched facility statistics.
func (s *Store) Facilities() []models.FacilityStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FacilityStat(nil), s.facilities...)
}

// HasMore reports whether further pages remain.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Total returns the server-reported total element count.
func (s *Store) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalElements
}

// FetchOrders loads page 0, replaces the window and resets the cursor.
// On failure the window falls back to empty and the error is returned.
func (s *Store) FetchOrders(ctx context.Context) error {
	page, err := s.client.FindOrders(ctx, 0, s.pageSize)
	if err != nil {
		s.mu.Lock()
		s.items = nil
		s.hasMore = false
		s.mu.Unlock()
		return err
	}

	items := page.Content
	models.SortOrdersByCreatedDesc(items)

	s.mu.Lock()
	s.items = items
	s.totalElements = page.TotalElements
	s.hasMore = !page.Last && len(items) > 0
	s.page = 1
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"count": len(items),
		"total": page.TotalElements,
	}).Info("Order list refreshed")
	return nil
}

// LoadMoreOrders appends the next page to the window. Calls while no pages
// remain or while a load is already in flight are no-ops, so two concurrent
// invocations issue a single request.
func (s *Store) LoadMoreOrders(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasMore || s.loadingMore {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	nextPage := s.page
	s.mu.Unlock()

	page, err := s.client.FindOrders(ctx, nextPage, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingMore = false

	if err != nil {
		s.hasMore = false
		return err
	}
	if len(page.Content) == 0 {
		s.hasMore = false
		return nil
	}

	s.items = append(s.items, page.Content...)
	models.SortOrdersByCreatedDesc(s.items)
	s.page = nextPage + 1
	s.hasMore = !page.Last

	s.logger.WithFields(logrus.Fields{
		"page":  nextPage,
		"count": len(page.Content),
		"held":  len(s.items),
	}).Debug("Loaded more orders")
	return nil
}

// FetchAllOrders accumulates every page into the full dataset, stopping once
// the accumulated count reaches the server total or a page comes back empty.
// The combined slice is sorted once after the loop.
func (s *Store) FetchAllOrders(ctx context.Context) error {
	var all []models.Order
	total := 0

	for page := 0; ; page++ {
		resp, err := s.client.FindOrders(ctx, page, s.allPageSize)
		if err != nil {
			s.mu.Lock()
			s.allItems = nil
			s.mu.Unlock()
			return err
		}

		all = append(all, resp.Content...)
		total = resp.TotalElements

		s.logger.WithFields(logrus.Fields{
			"page":  page,
			"held":  len(all),
			"total": total,
		}).Debug("Fetched full-dataset page")

		if len(all) >= total || len(resp.Content) == 0 {
			break
		}
	}

	models.SortOrdersByCreatedDesc(all)

	s.mu.Lock()
	s.allItems = all
	s.totalElements = total
	s.mu.Unlock()

	s.logger.WithField("count", len(all)).Info("Full order dataset fetched")
	return nil
}

// EditOrder patches an order and refetches page 0 so the window reflects the
// server state. The backend rejects the patch when the carried version is
// stale.
func (s *Store) EditOrder(ctx context.Context, updates *models.Order) (*models.Order, error) {
	updated, err := s.client.UpdateOrder(ctx, updates)
	if err != nil {
		return nil, err
	}
	if err := s.FetchOrders(ctx); err != nil {
		s.logger.WithError(err).Warn("Order updated but list refresh failed")
	}
	return updated, nil
}

// AcceptOrder assigns an unassigned order to the user ("chưa nhận" → "đã
// nhận"). Orders some facility already holds are rejected locally.
func (s *Store) AcceptOrder(ctx context.Context, order *models.Order, user *models.User) (*models.Order, error) {
	if !order.Unassigned() {
		return nil, ErrAlreadyAssigned
	}
	updates := &models.Order{
		ID:         order.ID,
		Version:    order.Version,
		IssuePlace: user.Name,
	}
	return s.EditOrder(ctx, updates)
}

// ReturnOrder hands an order back to the pool with its next facility type
// set. Only the holder may return, and the next stage must be picked.
func (s *Store) ReturnOrder(ctx context.Context, order *models.Order, user *models.User, next *models.Ref) (*models.Order, error) {
	if !next.Valid() {
		return nil, ErrMissingFacilityType
	}
	if !order.AssignedTo(user) {
		return nil, ErrNotOwner
	}
	updates := &models.Order{
		ID:           order.ID,
		Version:      order.Version,
		IssuePlace:   models.IssuePlaceUnassigned,
		FacilityType: &models.Ref{ID: next.ID},
	}
	return s.EditOrder(ctx, updates)
}

// FetchFacilityStats loads the aggregate per-facility acceptance counts.
func (s *Store) FetchFacilityStats(ctx context.Context, reportID string) error {
	stats, err := s.client.FacilityStatistics(ctx, reportID)
	if err != nil {
		s.mu.Lock()
		s.facilities = nil
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.facilities = stats
	s.mu.Unlock()
	return nil
}

// CountByStatus buckets the full dataset by assignment relative to the user.
func (s *Store) CountByStatus(user *models.User) StatusCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts StatusCounts
	for i := range s.allItems {
		o := &s.allItems[i]
		switch {
		case o.Unassigned():
			counts.Unassigned++
		case o.AssignedTo(user):
			counts.Mine++
		default:
			counts.Others++
		}
	}
	return counts
}
