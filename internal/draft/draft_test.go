package draft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dientoan/secom-client/internal/api"
	"github.com/dientoan/secom-client/internal/storage"
	"github.com/dientoan/secom-client/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type fakeSession struct {
	user *models.User
}

func (f *fakeSession) User() *models.User { return f.user }

func newTestStore(t *testing.T, baseURL string) (*Store, *storage.MemStore) {
	t.Helper()
	mem := storage.NewMemStore()
	session := &fakeSession{user: &models.User{ID: "u1", Username: "staff", Name: "Nguyen Van A"}}
	store := NewStore(api.NewClient(baseURL, time.Second, testLogger()), mem, session,
		100*time.Millisecond, 24*time.Hour, 7*24*time.Hour, testLogger())
	return store, mem
}

func TestResetThenUpdatePath(t *testing.T) {
	store, _ := newTestStore(t, "http://unused")

	store.UpdateDraftPath("name", "X")
	store.UpdateDraftPath("phone", "0901")
	store.ResetDraft()
	store.UpdateDraftPath("name", "X")

	want := initialDraft()
	want["name"] = "X"
	if got := store.Draft(); !reflect.DeepEqual(got, want) {
		t.Errorf("draft after reset+update diverged from template+field:\n got %v\nwant %v", got, want)
	}
}

func TestDebouncedPersist(t *testing.T) {
	store, mem := newTestStore(t, "http://unused")

	store.UpdateDraftPath("name", "X")
	if _, err := mem.Get("orderDraft_u1"); err != storage.ErrNotFound {
		t.Fatal("draft persisted before the debounce elapsed")
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, err := mem.Get("orderDraft_u1"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("draft never persisted after the debounce")
		}
		time.Sleep(5 * time.Millisecond)
	}

	raw, _ := mem.Get("orderDraft_u1")
	var stored map[string]interface{}
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("stored draft is not JSON: %v", err)
	}
	if stored["name"] != "X" {
		t.Errorf("stored draft lost the edit: %v", stored["name"])
	}
	if stored["_userId"] != "u1" {
		t.Errorf("stored draft missing owner: %v", stored["_userId"])
	}
	if _, ok := stored["_lastModified"].(string); !ok {
		t.Error("stored draft missing _lastModified")
	}
}

func TestFlushPersistsImmediately(t *testing.T) {
	store, mem := newTestStore(t, "http://unused")

	store.UpdateDraftPath("note", "gấp")
	store.Flush()

	if _, err := mem.Get("orderDraft_u1"); err != nil {
		t.Fatalf("flush did not persist: %v", err)
	}
}

func TestLoadRejectsForeignOwner(t *testing.T) {
	store, mem := newTestStore(t, "http://unused")

	stored := initialDraft()
	stored["name"] = "stolen"
	stored[metaUserID] = "someone-else"
	stored[metaLastModified] = time.Now().Format(time.RFC3339)
	raw, _ := json.Marshal(stored)
	mem.Set("orderDraft_u1", raw)

	store.Load()

	if got := store.Get("name"); got != nil {
		t.Errorf("foreign draft was loaded: %v", got)
	}
	if _, err := mem.Get("orderDraft_u1"); err != storage.ErrNotFound {
		t.Error("foreign draft was not deleted")
	}
}

func TestLoadRejectsStaleDraft(t *testing.T) {
	store, mem := newTestStore(t, "http://unused")

	stored := initialDraft()
	stored["name"] = "old"
	stored[metaUserID] = "u1"
	stored[metaLastModified] = time.Now().Add(-25 * time.Hour).Format(time.RFC3339)
	raw, _ := json.Marshal(stored)
	mem.Set("orderDraft_u1", raw)

	store.Load()

	if got := store.Get("name"); got != nil {
		t.Errorf("stale draft was loaded: %v", got)
	}
	if _, err := mem.Get("orderDraft_u1"); err != storage.ErrNotFound {
		t.Error("stale draft was not deleted")
	}
}

func TestLoadAcceptsFreshOwnDraft(t *testing.T) {
	store, mem := newTestStore(t, "http://unused")

	stored := initialDraft()
	stored["name"] = "đơn dở dang"
	stored[metaUserID] = "u1"
	stored[metaLastModified] = time.Now().Add(-time.Hour).Format(time.RFC3339)
	raw, _ := json.Marshal(stored)
	mem.Set("orderDraft_u1", raw)

	store.Load()

	if got := store.Get("name"); got != "đơn dở dang" {
		t.Errorf("own fresh draft not loaded: %v", got)
	}
}

func TestSweepExpiredDrafts(t *testing.T) {
	store, mem := newTestStore(t, "http://unused")

	old := initialDraft()
	old[metaUserID] = "u1"
	old[metaLastModified] = time.Now().Add(-8 * 24 * time.Hour).Format(time.RFC3339)
	rawOld, _ := json.Marshal(old)
	mem.Set("orderDraft_ancient", rawOld)

	mem.Set("orderDraft_corrupt", []byte("{not json"))
	mem.Set("options_cache_sizes_u1", []byte(`{"data":[]}`))

	store.SweepExpired()

	if _, err := mem.Get("orderDraft_ancient"); err != storage.ErrNotFound {
		t.Error("expired draft survived the sweep")
	}
	if _, err := mem.Get("orderDraft_corrupt"); err != storage.ErrNotFound {
		t.Error("corrupted draft survived the sweep")
	}
	if _, err := mem.Get("options_cache_sizes_u1"); err != nil {
		t.Error("sweep touched a non-draft key")
	}
}

func TestCleanOrderReferenceInvariant(t *testing.T) {
	draft := initialDraft()
	draft["facilityType"] = map[string]interface{}{"name": "Cắt"} // no id
	draft["stateOpt"] = map[string]interface{}{"id": "s1"}
	draft["orgUnit"] = &models.Ref{}
	draft["name"] = ""
	draft["_userId"] = "u1"

	cleaned := CleanOrder(draft)

	if cleaned["facilityType"] != nil {
		t.Errorf("reference without id must clean to null, got %v", cleaned["facilityType"])
	}
	if cleaned["orgUnit"] != nil {
		t.Errorf("empty Ref must clean to null, got %v", cleaned["orgUnit"])
	}
	if ref, ok := cleaned["stateOpt"].(map[string]interface{}); !ok || ref["id"] != "s1" {
		t.Errorf("valid reference was mangled: %v", cleaned["stateOpt"])
	}
	if cleaned["name"] != nil {
		t.Errorf("empty string must clean to null, got %v", cleaned["name"])
	}
	if _, present := cleaned["_userId"]; present {
		t.Error("internal metadata leaked into the cleaned order")
	}
}

func TestSubmitDraftCreatesAndResets(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/facility" {
			t.Errorf("expected POST /facility, got %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Order{ID: "created-1"})
	}))
	defer srv.Close()

	store, mem := newTestStore(t, srv.URL)
	store.UpdateDraftPath("name", "Khách A")
	store.UpdateDraftPath("facilityType", map[string]interface{}{"name": "no id"})
	store.Flush()

	created, err := store.SubmitDraft(context.Background())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if created.ID != "created-1" {
		t.Errorf("unexpected created id %q", created.ID)
	}

	if v, present := body["facilityType"]; !present || v != nil {
		t.Errorf("submit must send facilityType:null for an id-less reference, got %v", v)
	}
	if body["name"] != "Khách A" {
		t.Errorf("submit lost the name field: %v", body["name"])
	}

	if got := store.Get("name"); got != nil {
		t.Error("draft not reset after a successful submit")
	}
	if _, err := mem.Get("orderDraft_u1"); err != storage.ErrNotFound {
		t.Error("persisted draft not deleted after submit")
	}
}

func TestSubmitDraftKeepsEveryKey(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Order{ID: "created-2"})
	}))
	defer srv.Close()

	store, _ := newTestStore(t, srv.URL)
	store.UpdateDraftPath("storeType", map[string]interface{}{"id": "st1"})
	store.UpdateDraftPath("country", map[string]interface{}{"id": "c1"})
	store.UpdateDraftPath("store", map[string]interface{}{"id": "sh1"})
	store.UpdateDraftPath("sku", "SKU-42")
	store.UpdateDraftPath("name", "")

	area, err := ParseFieldValue("area", "12")
	if err != nil {
		t.Fatalf("area did not parse: %v", err)
	}
	store.UpdateDraftPath("area", area)

	if _, err := store.SubmitDraft(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	ref, ok := body["storeType"].(map[string]interface{})
	if !ok || ref["id"] != "st1" {
		t.Errorf("submit dropped or mangled storeType: %v", body["storeType"])
	}
	if _, present := body["country"]; !present {
		t.Error("submit dropped country")
	}
	if _, present := body["store"]; !present {
		t.Error("submit dropped store")
	}
	if body["sku"] != "SKU-42" {
		t.Errorf("submit dropped sku: %v", body["sku"])
	}
	if v, present := body["name"]; !present || v != nil {
		t.Errorf("cleared field must reach the wire as null, got %v (present=%v)", v, present)
	}
	if body["area"] != float64(12) {
		t.Errorf("numeric field lost its type on the wire: %v", body["area"])
	}
}

func TestParseFieldValue(t *testing.T) {
	cases := []struct {
		field string
		raw   string
		want  interface{}
	}{
		{"area", "12", float64(12)},
		{"lat", "10.76", 10.76},
		{"version", "3", 3},
		{"isPriority", "true", true},
		{"facilityType", "ft1", map[string]interface{}{"id": "ft1"}},
		{"country", "c1", map[string]interface{}{"id": "c1"}},
		{"name", "Khách A", "Khách A"},
		{"name", "", nil},
		{"area", "", nil},
	}
	for _, tc := range cases {
		got, err := ParseFieldValue(tc.field, tc.raw)
		if err != nil {
			t.Errorf("ParseFieldValue(%q, %q) failed: %v", tc.field, tc.raw, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseFieldValue(%q, %q) = %v, want %v", tc.field, tc.raw, got, tc.want)
		}
	}

	if _, err := ParseFieldValue("area", "abc"); err == nil {
		t.Error("expected a parse error for a non-numeric area")
	}
	if _, err := ParseFieldValue("version", "x"); err == nil {
		t.Error("expected a parse error for a non-integer version")
	}
}

func TestSubmitDraftUpdatesWhenIDPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH for a draft with a server id, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(models.Order{ID: "o9", Version: 3})
	}))
	defer srv.Close()

	store, _ := newTestStore(t, srv.URL)
	store.UpdateDraftPath("id", "o9")
	store.UpdateDraftPath("version", 2)

	updated, err := store.SubmitDraft(context.Background())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if updated.Version != 3 {
		t.Errorf("expected the server version, got %d", updated.Version)
	}
}

func TestSubmitErrorKeepsDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store, _ := newTestStore(t, srv.URL)
	store.UpdateDraftPath("name", "keep me")

	if _, err := store.SubmitDraft(context.Background()); err == nil {
		t.Fatal("expected submit to propagate the backend error")
	}
	if got := store.Get("name"); got != "keep me" {
		t.Errorf("draft was reset despite a failed submit: %v", got)
	}
}
