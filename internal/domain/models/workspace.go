// internal/domain/models/workspace.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workspace types.
const (
	WorkspaceTypePersonal = "personal"
	WorkspaceTypeGroup    = "group"
)

// Workspace is the top-level tenant container in TaskHub.
//
// A personal workspace has exactly one implicit member — its owner — and
// never accepts invitations or additional members. A group workspace has an
// explicit member roster in the workspace_members collection, with exactly
// one owner row whose user_id equals OwnerUserID.
//
// Workspaces are soft-deleted: DeletedAt is set on delete and cleared on
// restore so the delete is reversible. The cascade to memberships and
// projects mirrors this.
type Workspace struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"name_ci"` // Case-insensitive for search

	Type        string             `bson:"type" json:"type"` // "personal" | "group"
	OwnerUserID primitive.ObjectID `bson:"owner_user_id" json:"owner_user_id"`

	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsPersonal reports whether the workspace is a single-user personal space.
func (w Workspace) IsPersonal() bool {
	return w.Type == WorkspaceTypePersonal
}

// IsDeleted reports whether the workspace is currently soft-deleted.
func (w Workspace) IsDeleted() bool {
	return w.DeletedAt != nil
}
