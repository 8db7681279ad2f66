package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

func TestNewSessionManager_EmptyKeyRejected(t *testing.T) {
	_, err := auth.NewSessionManager("", "s", "", time.Hour, false, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser_RedirectsToLogin(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("protected content"))
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}

	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "/login") {
		t.Errorf("expected redirect to /login, got %q", location)
	}
}

func TestRequireSignedIn_NoUser_API_Returns401(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/data", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireSignedIn_NoUser_HTMX_ReturnsHXRedirect(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	hxRedirect := rec.Header().Get("HX-Redirect")
	if !strings.HasPrefix(hxRedirect, "/login") {
		t.Errorf("expected HX-Redirect to /login, got %q", hxRedirect)
	}
}

func TestRequireSignedIn_WithUser_Proceeds(t *testing.T) {
	sm := newTestSessionManager(t)

	called := false
	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req = withTestUser(req)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestSignIn_ThenLoadSessionUser(t *testing.T) {
	sm := newTestSessionManager(t)

	// Sign in and capture the cookie.
	signInReq := httptest.NewRequest("POST", "/login", nil)
	signInRec := httptest.NewRecorder()
	err := sm.SignIn(signInRec, signInReq, auth.SessionUser{
		ID:    "507f1f77bcf86cd799439011",
		Name:  "Test User",
		Email: "test@example.com",
	})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	cookies := signInRec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie to be set")
	}

	// Replay the cookie through LoadSessionUser.
	var got *auth.SessionUser
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected user in context after sign-in")
	}
	if got.ID != "507f1f77bcf86cd799439011" || got.Email != "test@example.com" {
		t.Errorf("unexpected session user: %+v", got)
	}
}

func TestSignOut_ClearsSession(t *testing.T) {
	sm := newTestSessionManager(t)

	signInReq := httptest.NewRequest("POST", "/login", nil)
	signInRec := httptest.NewRecorder()
	if err := sm.SignIn(signInRec, signInReq, auth.SessionUser{ID: "507f1f77bcf86cd799439011"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	signOutReq := httptest.NewRequest("POST", "/logout", nil)
	for _, c := range signInRec.Result().Cookies() {
		signOutReq.AddCookie(c)
	}
	signOutRec := httptest.NewRecorder()
	if err := sm.SignOut(signOutRec, signOutReq); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	var expired bool
	for _, c := range signOutRec.Result().Cookies() {
		if c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("expected session cookie to be expired on sign-out")
	}
}

type staticFetcher struct {
	user *auth.SessionUser
	err  error
}

func (f staticFetcher) FetchSessionUser(_ context.Context, _ string) (*auth.SessionUser, error) {
	return f.user, f.err
}

func TestLoadSessionUser_FetcherDropsDisabledAccount(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(staticFetcher{user: nil}) // account gone or disabled

	signInReq := httptest.NewRequest("POST", "/login", nil)
	signInRec := httptest.NewRecorder()
	if err := sm.SignIn(signInRec, signInReq, auth.SessionUser{ID: "507f1f77bcf86cd799439011"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	var found bool
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range signInRec.Result().Cookies() {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if found {
		t.Error("expected no user in context when fetcher reports account gone")
	}
}

func TestLoadSessionUser_FetcherRefreshesProfile(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(staticFetcher{user: &auth.SessionUser{
		ID:    "507f1f77bcf86cd799439011",
		Name:  "Renamed User",
		Email: "renamed@example.com",
	}})

	signInReq := httptest.NewRequest("POST", "/login", nil)
	signInRec := httptest.NewRecorder()
	if err := sm.SignIn(signInRec, signInReq, auth.SessionUser{
		ID: "507f1f77bcf86cd799439011", Name: "Old Name", Email: "old@example.com",
	}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	var got *auth.SessionUser
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range signInRec.Result().Cookies() {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected user in context")
	}
	if got.Name != "Renamed User" || got.Email != "renamed@example.com" {
		t.Errorf("expected refreshed profile, got %+v", got)
	}
}

func TestCurrentUser_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)

	user, ok := auth.CurrentUser(req)

	if ok {
		t.Error("expected ok to be false when no user in context")
	}
	if user != nil {
		t.Error("expected user to be nil when no user in context")
	}
}

// withTestUser injects a SessionUser into the request context for testing.
// This simulates what LoadSessionUser middleware does.
func withTestUser(r *http.Request) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:    "507f1f77bcf86cd799439011",
		Name:  "Test User",
		Email: "test@example.com",
	})
}
