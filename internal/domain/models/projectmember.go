// internal/domain/models/projectmember.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectMember joins a user to a project through a project role. Exactly
// one document per (project_id, user_id).
//
// A project membership is only meaningful while the user holds active
// membership in the project's parent workspace (or owns the workspace);
// role resolution consults live workspace membership, so a row left behind
// after a workspace removal grants nothing.
type ProjectMember struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"` // Parent workspace, denormalized for scoped queries
	ProjectID   primitive.ObjectID `bson:"project_id" json:"project_id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	RoleID      primitive.ObjectID `bson:"role_id" json:"role_id"`

	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsActive reports whether the membership is live (not soft-deleted).
func (m ProjectMember) IsActive() bool {
	return m.DeletedAt == nil
}
