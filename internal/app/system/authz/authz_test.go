package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"github.com/taskhubapp/taskhub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserCtx_ValidUser(t *testing.T) {
	id := primitive.NewObjectID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:    id.Hex(),
		Name:  "Test User",
		Email: "test@example.com",
	})

	name, userID, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected ok=true for valid user")
	}
	if name != "Test User" {
		t.Errorf("expected name 'Test User', got %q", name)
	}
	if userID != id {
		t.Errorf("expected userID %s, got %s", id.Hex(), userID.Hex())
	}
}

func TestUserCtx_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	name, userID, ok := authz.UserCtx(req)
	if ok {
		t.Error("expected ok=false when no user in context")
	}
	if name != "" {
		t.Errorf("expected empty name, got %q", name)
	}
	if userID != primitive.NilObjectID {
		t.Errorf("expected NilObjectID, got %s", userID.Hex())
	}
}

func TestUserCtx_MalformedID_FailsClosed(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:   "not-a-valid-objectid",
		Name: "Corrupt Session",
	})

	_, userID, ok := authz.UserCtx(req)
	if ok {
		t.Error("expected ok=false for malformed user ID")
	}
	if userID != primitive.NilObjectID {
		t.Errorf("expected NilObjectID, got %s", userID.Hex())
	}
}

func TestUserID(t *testing.T) {
	id := primitive.NewObjectID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: id.Hex()})

	got, ok := authz.UserID(req)
	if !ok || got != id {
		t.Errorf("UserID = %s, %v; want %s, true", got.Hex(), ok, id.Hex())
	}

	if _, ok := authz.UserID(httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("expected ok=false without a user")
	}
}

func TestUserEmail(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:    primitive.NewObjectID().Hex(),
		Email: "who@example.com",
	})

	if got := authz.UserEmail(req); got != "who@example.com" {
		t.Errorf("UserEmail = %q", got)
	}
	if got := authz.UserEmail(httptest.NewRequest("GET", "/", nil)); got != "" {
		t.Errorf("UserEmail without user = %q, want empty", got)
	}
}
