// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project is a unit of work nested inside exactly one workspace. The
// workspace relationship is immutable after creation.
type Project struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`

	Name        string `bson:"name" json:"name"`
	NameCI      string `bson:"name_ci" json:"name_ci"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	// CreatorUserID always resolves as a project admin, with or without an
	// explicit project_members row.
	CreatorUserID primitive.ObjectID `bson:"creator_user_id" json:"creator_user_id"`

	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsDeleted reports whether the project is currently soft-deleted.
func (p Project) IsDeleted() bool {
	return p.DeletedAt != nil
}
