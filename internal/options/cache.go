// Package options caches the backend's reference pick lists (option groups
// and org-unit levels) per user with a timed expiry.
package options

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dientoan/secom-client/internal/api"
	"github.com/dientoan/secom-client/internal/storage"
	"github.com/dientoan/secom-client/pkg/models"
)

// Type names one cached pick list.
type Type string

const (
	StoreTypes        Type = "storeTypes"
	Countries         Type = "countries"
	Stores            Type = "stores"
	SkuOptions        Type = "skuOptions"
	Sizes             Type = "sizes"
	OrderTypes        Type = "orderTypes"
	LabelingStandards Type = "labelingStandards"
)

// AllTypes lists every pick list loaded on login.
var AllTypes = []Type{StoreTypes, Countries, Stores, SkuOptions, Sizes, OrderTypes, LabelingStandards}

const cachePrefix = "options_cache_"

// source maps a Type to its backend endpoint: either an option group code or
// an org-unit hierarchy level.
type source struct {
	group string
	lvl   int
}

var sources = map[Type]source{
	StoreTypes:        {lvl: 1},
	Countries:         {lvl: 2},
	Stores:            {lvl: 3},
	SkuOptions:        {group: "skudesigns"},
	Sizes:             {group: "state-test"},
	OrderTypes:        {group: "facility-type"},
	LabelingStandards: {group: "type-of-goods"},
}

// cacheEntry is the persisted blob shape. Timestamps are unix milliseconds.
type cacheEntry struct {
	Data      []models.Option `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Expires   int64           `json:"expires"`
}

func (e *cacheEntry) valid(now time.Time) bool {
	return e != nil && now.UnixMilli() < e.Expires
}

// SessionInfo is what the cache needs from the auth session.
type SessionInfo interface {
	User() *models.User
	IsLoggedIn() bool
}

// Cache holds the fetched pick lists in memory and mirrors them into storage
// so a fresh launch within the TTL skips the network entirely.
type Cache struct {
	client  *api.Client
	store   storage.Store
	session SessionInfo
	logger  *logrus.Logger
	ttl     time.Duration

	mu   sync.RWMutex
	data map[Type][]models.Option
	errs map[Type]error
	now  func() time.Time
}

func NewCache(client *api.Client, store storage.Store, session SessionInfo, ttl time.Duration, logger *logrus.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		client:  client,
		store:   store,
		session: session,
		logger:  logger,
		ttl:     ttl,
		data:    make(map[Type][]models.Option),
		errs:    make(map[Type]error),
		now:     time.Now,
	}
}

// Options returns the in-memory list for a type, which may be empty before
// the first fetch.
func (c *Cache) Options(t Type) []models.Option {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[t]
}

// Err returns the last fetch error recorded for a type, if any.
func (c *Cache) Err(t Type) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errs[t]
}

// Fetch returns the pick list for a type, serving a still-valid cache entry
// without a network call. A failed fetch records the error for that type and
// resolves with an empty list.
func (c *Cache) Fetch(ctx context.Context, t Type) ([]models.Option, error) {
	if cached := c.readCache(t); cached != nil {
		c.mu.Lock()
		c.data[t] = cached
		c.mu.Unlock()
		return cached, nil
	}

	opts, err := c.fetchRemote(ctx, t)

	c.mu.Lock()
	if err != nil {
		c.errs[t] = err
		c.data[t] = nil
	} else {
		delete(c.errs, t)
		c.data[t] = opts
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.WithError(err).WithField("option_type", string(t)).Error("Failed to fetch options")
		return []models.Option{}, err
	}

	c.writeCache(t, opts)
	return opts, nil
}

// Refresh drops the cache entry for a type and refetches unconditionally.
func (c *Cache) Refresh(ctx context.Context, t Type) ([]models.Option, error) {
	if err := c.store.Delete(c.cacheKey(t)); err != nil {
		c.logger.WithError(err).WithField("option_type", string(t)).Warn("Failed to clear option cache")
	}
	return c.Fetch(ctx, t)
}

// LoadEssential fetches every pick list concurrently. Each type fails or
// succeeds on its own; the first user-sweep runs before any fetch so a
// previous account's entries never leak in.
func (c *Cache) LoadEssential(ctx context.Context) {
	if !c.session.IsLoggedIn() {
		return
	}

	c.CleanCacheForUser()

	var wg sync.WaitGroup
	for _, t := range AllTypes {
		wg.Add(1)
		go func(t Type) {
			defer wg.Done()
			c.Fetch(ctx, t)
		}(t)
	}
	wg.Wait()

	c.logger.Info("Essential options loaded")
}

// CleanCacheForUser deletes cache entries that belong to a different user id.
func (c *Cache) CleanCacheForUser() {
	userID := c.userID()
	keys, err := c.store.Keys()
	if err != nil {
		c.logger.WithError(err).Warn("Failed to list storage keys for cache sweep")
		return
	}

	for _, key := range keys {
		if !strings.HasPrefix(key, cachePrefix) {
			continue
		}
		parts := strings.Split(key, "_")
		owner := parts[len(parts)-1]
		if owner == userID || owner == "anonymous" {
			continue
		}
		if err := c.store.Delete(key); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Failed to delete foreign cache entry")
		} else {
			c.logger.WithField("key", key).Debug("Swept foreign option cache entry")
		}
	}
}

func (c *Cache) fetchRemote(ctx context.Context, t Type) ([]models.Option, error) {
	src, ok := sources[t]
	if !ok {
		return nil, fmt.Errorf("unknown option type %q", t)
	}

	if src.group != "" {
		return c.client.FindOptions(ctx, src.group)
	}

	units, err := c.client.SearchOrgUnits(ctx, src.lvl)
	if err != nil {
		return nil, err
	}
	opts := make([]models.Option, len(units))
	for i, u := range units {
		opts[i] = models.Option{ID: u.ID, Code: u.Code, Name: u.Name}
	}
	return opts, nil
}

func (c *Cache) readCache(t Type) []models.Option {
	raw, err := c.store.Get(c.cacheKey(t))
	if err != nil {
		if err != storage.ErrNotFound {
			c.logger.WithError(err).WithField("option_type", string(t)).Warn("Failed to read option cache")
		}
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.store.Delete(c.cacheKey(t))
		return nil
	}
	if !entry.valid(c.now()) {
		c.store.Delete(c.cacheKey(t))
		return nil
	}
	return entry.Data
}

func (c *Cache) writeCache(t Type, opts []models.Option) {
	now := c.now()
	entry := cacheEntry{
		Data:      opts,
		Timestamp: now.UnixMilli(),
		Expires:   now.Add(c.ttl).UnixMilli(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.store.Set(c.cacheKey(t), raw); err != nil {
		c.logger.WithError(err).WithField("option_type", string(t)).Warn("Failed to write option cache")
	}
}

func (c *Cache) cacheKey(t Type) string {
	return cachePrefix + string(t) + "_" + c.userID()
}

func (c *Cache) userID() string {
	if u := c.session.User(); u != nil && strings.TrimSpace(u.ID) != "" {
		return u.ID
	}
	return "anonymous"
}
