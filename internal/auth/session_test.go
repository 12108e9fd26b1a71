package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

// authBackend fakes the token endpoint and the user list.
type authBackend struct {
	users        []models.User
	accessToken  string
	refreshCalls int32
	failRefresh  bool
}

func (b *authBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.PostFormValue("grant_type") {
		case "password":
			if r.PostFormValue("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
				return
			}
			json.NewEncoder(w).Encode(models.TokenResponse{AccessToken: b.accessToken, RefreshToken: "refresh-1"})
		case "refresh_token":
			atomic.AddInt32(&b.refreshCalls, 1)
			if b.failRefresh {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(models.TokenResponse{AccessToken: "fresh-token", RefreshToken: "refresh-2"})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/user/find", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.UserPage{Content: b.users, TotalElements: len(b.users)})
	})
	return mux
}

func newTestSession(t *testing.T, backend *authBackend) (*Session, *storage.MemStore) {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	mem := storage.NewMemStore()
	client := api.NewClient(srv.URL, time.Second, testLogger())
	session := NewSession(client, mem, "/oauth2/token", "client-id", "client-secret", testLogger())
	client.SetTokenSource(session)
	return session, mem
}

func defaultUsers() []models.User {
	return []models.User{
		{ID: "u1", Username: "manager", Name: "Tran Thi B", Email: "manager@example.com"},
		{ID: "u2", Username: "staff", Name: "Nguyen Van A", Email: "staff@example.com"},
	}
}

func TestLogInSuccess(t *testing.T) {
	backend := &authBackend{users: defaultUsers(), accessToken: "token-1"}
	session, mem := newTestSession(t, backend)

	if err := session.LogIn(context.Background(), "staff", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if !session.IsLoggedIn() {
		t.Error("expected isLoggedIn=true after login")
	}
	if session.AccessToken() != "token-1" {
		t.Errorf("unexpected token %q", session.AccessToken())
	}

	user := session.User()
	if user == nil || user.ID != "u2" {
		t.Fatalf("expected the profile matched by username, got %+v", user)
	}

	if tok, err := mem.Get("access_token"); err != nil || string(tok) != "token-1" {
		t.Errorf("access token not persisted: %v %q", err, tok)
	}
	if tok, err := mem.Get("refresh_token"); err != nil || string(tok) != "refresh-1" {
		t.Errorf("refresh token not persisted: %v %q", err, tok)
	}
	if _, err := mem.Get("user"); err != nil {
		t.Errorf("profile not persisted: %v", err)
	}
}

func TestLogInFailureLeavesSessionUntouched(t *testing.T) {
	backend := &authBackend{users: defaultUsers(), accessToken: "token-1"}
	session, _ := newTestSession(t, backend)

	if err := session.LogIn(context.Background(), "staff", "secret"); err != nil {
		t.Fatalf("setup login failed: %v", err)
	}

	err := session.LogIn(context.Background(), "staff", "wrong")
	if err == nil {
		t.Fatal("expected an error for bad credentials")
	}
	if _, ok := err.(*AuthError); !ok {
		t.Errorf("expected *AuthError, got %T", err)
	}

	if !session.IsLoggedIn() || session.AccessToken() != "token-1" {
		t.Error("failed login must leave the previous session intact")
	}
}

func TestLogOutClearsEverything(t *testing.T) {
	backend := &authBackend{users: defaultUsers(), accessToken: "token-1"}
	session, mem := newTestSession(t, backend)

	session.LogIn(context.Background(), "staff", "secret")
	session.LogOut()

	if session.IsLoggedIn() {
		t.Error("expected isLoggedIn=false after logout")
	}
	if session.AccessToken() != "" {
		t.Error("token survived logout")
	}
	if session.User() != nil {
		t.Error("profile survived logout")
	}
	for _, key := range []string{"access_token", "refresh_token", "user"} {
		if _, err := mem.Get(key); err != storage.ErrNotFound {
			t.Errorf("key %s survived logout", key)
		}
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	backend := &authBackend{users: defaultUsers(), accessToken: "token-1"}
	session, mem := newTestSession(t, backend)
	session.LogIn(context.Background(), "staff", "secret")

	if err := session.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if session.AccessToken() != "fresh-token" {
		t.Errorf("token not rotated: %q", session.AccessToken())
	}
	if tok, _ := mem.Get("refresh_token"); string(tok) != "refresh-2" {
		t.Errorf("rotated refresh token not persisted: %q", tok)
	}
}

func TestRefreshFailureForcesLogout(t *testing.T) {
	backend := &authBackend{users: defaultUsers(), accessToken: "token-1", failRefresh: true}
	session, mem := newTestSession(t, backend)
	session.LogIn(context.Background(), "staff", "secret")

	if err := session.Refresh(context.Background()); err == nil {
		t.Fatal("expected the refresh error to propagate")
	}
	if session.IsLoggedIn() {
		t.Error("failed refresh must force a logout")
	}
	if _, err := mem.Get("access_token"); err != storage.ErrNotFound {
		t.Error("token survived the forced logout")
	}
}

func TestRestoreLoadsPersistedSession(t *testing.T) {
	backend := &authBackend{users: defaultUsers(), accessToken: "token-1"}
	session, mem := newTestSession(t, backend)

	mem.Set("access_token", []byte("stored-token"))
	raw, _ := json.Marshal(models.User{ID: "u2", Username: "staff"})
	mem.Set("user", raw)

	if err := session.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !session.IsLoggedIn() || session.AccessToken() != "stored-token" {
		t.Error("restore did not rebuild the session")
	}
	if user := session.User(); user == nil || user.ID != "u2" {
		t.Errorf("restore did not rebuild the profile: %+v", user)
	}
}

func TestRestoreWithEmptyStorageStaysLoggedOut(t *testing.T) {
	backend := &authBackend{users: defaultUsers()}
	session, _ := newTestSession(t, backend)

	if err := session.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if session.IsLoggedIn() {
		t.Error("no token means logged out")
	}
}

func unsignedJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "."
}

func TestFetchUserFallsBackToTokenClaims(t *testing.T) {
	backend := &authBackend{
		users:       defaultUsers(),
		accessToken: unsignedJWT(t, map[string]interface{}{"sub": "u2"}),
	}
	session, _ := newTestSession(t, backend)
	// Login username matches no user record; the sub claim does.
	if err := session.LogIn(context.Background(), "staff@corp-alias", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	user := session.User()
	if user == nil || user.ID != "u2" {
		t.Fatalf("expected the claims fallback to resolve u2, got %+v", user)
	}
}

func TestFetchUserLastResortTakesFirstRecord(t *testing.T) {
	backend := &authBackend{users: defaultUsers(), accessToken: "opaque-token"}
	session, _ := newTestSession(t, backend)

	if err := session.LogIn(context.Background(), "nobody", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	user := session.User()
	if user == nil || user.ID != defaultUsers()[0].ID {
		t.Fatalf("expected the first record as last resort, got %+v", user)
	}
}
