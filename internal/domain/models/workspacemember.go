// internal/domain/models/workspacemember.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workspace member roles.
const (
	WorkspaceRoleOwner  = "owner"
	WorkspaceRoleAdmin  = "admin"
	WorkspaceRoleMember = "member"
)

// WorkspaceMember is the authoritative join between users and group
// workspaces. Exactly one document per (workspace_id, user_id); role is a
// scalar — update the document to change it.
//
// Members are soft-deleted (deleted_at set) rather than removed, so a
// workspace delete/restore cycle can bring the roster back intact. Every
// read path that cares about "active" membership must filter deleted_at.
type WorkspaceMember struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role        string             `bson:"role" json:"role"` // "owner" | "admin" | "member"

	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsActive reports whether the membership is live (not soft-deleted).
func (m WorkspaceMember) IsActive() bool {
	return m.DeletedAt == nil
}
