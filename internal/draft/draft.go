// Package draft holds the in-progress order form. Edits land in memory
// immediately and are persisted to device storage on a debounce, so rapid
// field updates cost one write.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dientoan/secom-client/internal/api"
	"github.com/dientoan/secom-client/internal/storage"
	"github.com/dientoan/secom-client/pkg/models"
)

const (
	draftKeyPrefix   = "orderDraft_"
	metaLastModified = "_lastModified"
	metaUserID       = "_userId"
)

// refFields are the fields that must be either null or an object carrying a
// non-empty id when the draft is submitted.
var refFields = []string{"facilityType", "stateOpt", "orgUnit", "skuOpt"}

// initialDraft is the empty form template.
func initialDraft() map[string]interface{} {
	return map[string]interface{}{
		"version":          0,
		"id":               nil,
		"name":             nil,
		"address":          nil,
		"phone":            nil,
		"email":            nil,
		"area":             nil,
		"areaAdmin":        nil,
		"labelingStandard": nil,
		"lat":              nil,
		"lon":              nil,
		"facilityType":     nil,
		"stateOpt":         nil,
		"orgUnit":          nil,
		"skuOpt":           nil,
		"ownerName":        nil,
		"ownerPhoneNumber": nil,
		"storeType":        nil,
		"country":          nil,
		"store":            nil,
		"sku":              nil,
		"code":             nil,
		"idNumber":         nil,
		"sampleSource":     nil,
		"isPriority":       false,
		"note":             nil,
		"attr1":            nil,
		"attr2":            nil,
		"attr3":            nil,
		"attr4":            nil,
		"attr5":            nil,
	}
}

// SessionInfo is what the draft store needs from the auth session.
type SessionInfo interface {
	User() *models.User
}

// Store is the per-user draft store.
type Store struct {
	client  *api.Client
	store   storage.Store
	session SessionInfo
	logger  *logrus.Logger

	debounce time.Duration
	maxAge   time.Duration
	sweepAge time.Duration

	mu    sync.Mutex
	draft map[string]interface{}
	dirty bool
	timer *time.Timer
	now   func() time.Time
}

func NewStore(client *api.Client, store storage.Store, session SessionInfo, debounce, maxAge, sweepAge time.Duration, logger *logrus.Logger) *Store {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if sweepAge <= 0 {
		sweepAge = 7 * 24 * time.Hour
	}
	return &Store{
		client:   client,
		store:    store,
		session:  session,
		logger:   logger,
		debounce: debounce,
		maxAge:   maxAge,
		sweepAge: sweepAge,
		draft:    initialDraft(),
		now:      time.Now,
	}
}

// Draft returns a copy of the current form state.
func (s *Store) Draft() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.draft))
	for k, v := range s.draft {
		out[k] = v
	}
	return out
}

// Get returns one field of the draft.
func (s *Store) Get(field string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft[field]
}

// UpdateDraftPath sets one field in memory immediately and arms the debounced
// persist. Each edit resets the timer, so a burst of edits writes once.
func (s *Store) UpdateDraftPath(field string, value interface{}) {
	s.mu.Lock()
	s.draft[field] = value
	s.dirty = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.Flush)
	s.mu.Unlock()
}

// Flush persists the draft right away. Called on the debounce firing and by
// the app when it goes to background or the form unmounts.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
}

// ResetDraft restores the empty template and deletes the persisted copy for
// the current user.
func (s *Store) ResetDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.draft = initialDraft()
	s.dirty = false

	userID := s.userID()
	if userID == "" {
		return
	}
	if err := s.store.Delete(draftKeyPrefix + userID); err != nil {
		s.logger.WithError(err).Warn("Failed to delete persisted draft")
	}
}

// Load reads the persisted draft for the current user. Entries owned by a
// different user or modified more than the staleness window ago are deleted
// instead of loaded. Expired drafts of any owner are swept first.
func (s *Store) Load() {
	userID := s.userID()
	if userID == "" {
		return
	}

	s.SweepExpired()

	key := draftKeyPrefix + userID
	raw, err := s.store.Get(key)
	if err != nil {
		if err != storage.ErrNotFound {
			s.logger.WithError(err).Warn("Failed to read persisted draft")
		}
		return
	}

	var stored map[string]interface{}
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.WithError(err).Warn("Discarding corrupted draft")
		s.store.Delete(key)
		return
	}

	owner, _ := stored[metaUserID].(string)
	if owner != userID {
		s.store.Delete(key)
		return
	}
	if age, ok := s.entryAge(stored); !ok || age > s.maxAge {
		s.logger.WithField("user_id", userID).Info("Deleting expired draft")
		s.store.Delete(key)
		return
	}

	delete(stored, metaLastModified)
	delete(stored, metaUserID)

	s.mu.Lock()
	s.draft = stored
	s.dirty = false
	s.mu.Unlock()

	s.logger.WithField("user_id", userID).Info("Loaded persisted draft")
}

// SweepExpired deletes any stored draft older than the sweep window,
// regardless of owner, plus drafts owned by other users and blobs that no
// longer parse.
func (s *Store) SweepExpired() {
	keys, err := s.store.Keys()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to list storage keys for draft sweep")
		return
	}
	userID := s.userID()

	for _, key := range keys {
		if !strings.HasPrefix(key, draftKeyPrefix) {
			continue
		}
		raw, err := s.store.Get(key)
		if err != nil {
			continue
		}
		var stored map[string]interface{}
		if err := json.Unmarshal(raw, &stored); err != nil {
			s.store.Delete(key)
			continue
		}
		age, ok := s.entryAge(stored)
		owner, _ := stored[metaUserID].(string)
		foreign := userID != "" && owner != "" && owner != userID
		if !ok || age > s.sweepAge || foreign {
			if err := s.store.Delete(key); err == nil {
				s.logger.WithField("key", key).Debug("Swept stored draft")
			}
		}
	}
}

// SubmitDraft normalizes the draft and sends it to the backend: create when
// it has no server id, update otherwise. The cleaned map goes to the wire
// as-is; every draft key is present, cleared fields as explicit null. On
// success the draft is reset. Network errors propagate to the caller.
func (s *Store) SubmitDraft(ctx context.Context) (*models.Order, error) {
	cleaned := CleanOrder(s.Draft())

	var result *models.Order
	var err error
	if id, _ := cleaned["id"].(string); id == "" {
		result, err = s.client.CreateOrderPayload(ctx, cleaned)
	} else {
		result, err = s.client.UpdateOrderPayload(ctx, cleaned)
	}
	if err != nil {
		return nil, err
	}

	s.ResetDraft()
	return result, nil
}

// CleanOrder normalizes a draft for submission: reference objects without an
// id become null, empty strings become null, and internal metadata fields are
// stripped.
func CleanOrder(draft map[string]interface{}) map[string]interface{} {
	cleaned := make(map[string]interface{}, len(draft))
	for k, v := range draft {
		if strings.HasPrefix(k, "_") {
			continue
		}
		cleaned[k] = v
	}

	for _, field := range refFields {
		if v, ok := cleaned[field]; ok && v != nil && !refHasID(v) {
			cleaned[field] = nil
		}
	}

	for k, v := range cleaned {
		if str, ok := v.(string); ok && str == "" {
			cleaned[k] = nil
		}
	}
	return cleaned
}

// pickedFields are set from a selection list; their textual value is the
// picked entity's id.
var pickedFields = []string{"facilityType", "stateOpt", "orgUnit", "skuOpt", "storeType", "country", "store"}

// floatFields carry JSON numbers on the wire.
var floatFields = []string{"area", "lat", "lon"}

// ParseFieldValue converts a textual field value into the draft's native
// type: picked fields become {id}, numeric and boolean fields parse, and
// everything else stays a string. An empty value clears the field.
func ParseFieldValue(field, raw string) (interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	for _, f := range pickedFields {
		if f == field {
			return map[string]interface{}{"id": raw}, nil
		}
	}
	for _, f := range floatFields {
		if f == field {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s takes a number: %w", field, err)
			}
			return v, nil
		}
	}
	switch field {
	case "version":
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("field version takes an integer: %w", err)
		}
		return v, nil
	case "isPriority":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("field isPriority takes true or false: %w", err)
		}
		return v, nil
	}
	return raw, nil
}

func refHasID(v interface{}) bool {
	switch ref := v.(type) {
	case map[string]interface{}:
		id, _ := ref["id"].(string)
		return id != ""
	case *models.Ref:
		return ref.Valid()
	case models.Ref:
		return ref.Valid()
	default:
		return false
	}
}

func (s *Store) persistLocked() {
	if !s.dirty {
		return
	}
	userID := s.userID()
	if userID == "" {
		return
	}

	stored := make(map[string]interface{}, len(s.draft)+2)
	for k, v := range s.draft {
		stored[k] = v
	}
	stored[metaLastModified] = s.now().Format(time.RFC3339)
	stored[metaUserID] = userID

	raw, err := json.Marshal(stored)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to serialize draft")
		return
	}
	if err := s.store.Set(draftKeyPrefix+userID, raw); err != nil {
		s.logger.WithError(err).Warn("Failed to persist draft")
		return
	}
	s.dirty = false
	s.logger.WithField("user_id", userID).Debug("Draft saved")
}

func (s *Store) entryAge(stored map[string]interface{}) (time.Duration, bool) {
	ts, _ := stored[metaLastModified].(string)
	if ts == "" {
		return 0, false
	}
	modified, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0, false
	}
	return s.now().Sub(modified), true
}

func (s *Store) userID() string {
	if u := s.session.User(); u != nil {
		return u.ID
	}
	return ""
}
