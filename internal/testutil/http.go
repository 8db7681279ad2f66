package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser is a minimal signed-in user for handler tests.
type TestUser struct {
	ID    primitive.ObjectID
	Name  string
	Email string
}

// NewTestUser returns a TestUser with a fresh ID.
func NewTestUser(name, email string) TestUser {
	return TestUser{
		ID:    primitive.NewObjectID(),
		Name:  name,
		Email: email,
	}
}

// WithUser attaches the user to the request context the same way the
// session middleware does, so handlers under test see a signed-in user.
func WithUser(r *http.Request, u TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
	})
}

// NewRequest builds a request with an optional JSON body.
func NewRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

// NewAuthenticatedRequest builds a JSON request already carrying the user.
func NewAuthenticatedRequest(t *testing.T, method, target string, body any, u TestUser) *http.Request {
	t.Helper()
	return WithUser(NewRequest(t, method, target, body), u)
}

// ResponseRecorder wraps httptest.ResponseRecorder with assertion helpers.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
	t *testing.T
}

// NewRecorder creates a ResponseRecorder bound to the test.
func NewRecorder(t *testing.T) *ResponseRecorder {
	t.Helper()
	return &ResponseRecorder{ResponseRecorder: httptest.NewRecorder(), t: t}
}

// AssertStatus fails the test if the response status differs.
func (rr *ResponseRecorder) AssertStatus(want int) {
	rr.t.Helper()
	if rr.Code != want {
		rr.t.Errorf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

// AssertContains fails the test if the body does not contain the substring.
func (rr *ResponseRecorder) AssertContains(substr string) {
	rr.t.Helper()
	if !strings.Contains(rr.Body.String(), substr) {
		rr.t.Errorf("body does not contain %q; body: %s", substr, rr.Body.String())
	}
}

// DecodeJSON unmarshals the response body into v.
func (rr *ResponseRecorder) DecodeJSON(v any) {
	rr.t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		rr.t.Fatalf("failed to decode response JSON: %v; body: %s", err, rr.Body.String())
	}
}
