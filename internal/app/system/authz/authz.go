// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the signed-in user's name, Mongo ObjectID, and a found
// flag. If no user is present in context or the user ID is malformed, it
// returns "", NilObjectID, false. This ensures callers can trust that
// ok=true means a valid, authenticated user with a valid ObjectID.
//
// No role is returned here on purpose: workspace and project roles are
// resolved per scope by the policy layer, never cached in the session.
func UserCtx(r *http.Request) (name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed for security.
		// This should not happen in normal operation; indicates session corruption.
		return "", primitive.NilObjectID, false
	}
	return user.Name, userID, true
}

// UserID returns just the signed-in user's ObjectID, or NilObjectID/false
// when no valid user is present.
func UserID(r *http.Request) (primitive.ObjectID, bool) {
	_, id, ok := UserCtx(r)
	return id, ok
}

// UserEmail returns the signed-in user's email, or "" when no user is present.
func UserEmail(r *http.Request) string {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return ""
	}
	return user.Email
}
