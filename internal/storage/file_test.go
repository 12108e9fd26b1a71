package storage

import (
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := store.Get("missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for a missing key, got %v", err)
	}

	if err := store.Set("orderDraft_u1", []byte(`{"name":"x"}`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := store.Get("orderDraft_u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != `{"name":"x"}` {
		t.Errorf("unexpected value %q", got)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "orderDraft_u1" {
		t.Errorf("unexpected keys %v", keys)
	}

	if err := store.Delete("orderDraft_u1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get("orderDraft_u1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again must not fail.
	if err := store.Delete("orderDraft_u1"); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
}

func TestFileStoreKeysWithUnsafeCharacters(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	key := "options_cache_storeTypes_user/../../etc"
	if err := store.Set(key, []byte("v")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := store.Get(key)
	if err != nil || string(got) != "v" {
		t.Fatalf("roundtrip failed: %v %q", err, got)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("key did not survive encoding: %v", keys)
	}
}
