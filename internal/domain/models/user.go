// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Authentication methods recorded on a user account.
const (
	AuthMethodInternal = "internal"
	AuthMethodGoogle   = "google"
)

// User represents an account that can own workspaces, join projects, and
// receive invitations. Users are referenced by ID everywhere; membership is
// never embedded on the user document — use the workspace_members and
// project_members collections to discover what a user belongs to.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Username   string             `bson:"username" json:"username"`
	Email      string             `bson:"email" json:"email"`
	AuthMethod string             `bson:"auth_method,omitempty" json:"auth_method,omitempty"` // "internal" | "google"

	// PasswordHash is set only for auth_method "internal".
	PasswordHash string `bson:"password_hash,omitempty" json:"-"`

	Status string `bson:"status" json:"status"` // "active" | "disabled"

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
