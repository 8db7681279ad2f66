// internal/domain/models/projectrole.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project permissions grantable to custom roles.
const (
	PermProjectManage  = "project:manage"  // update/delete project, manage members and roles
	PermProjectInvite  = "project:invite"  // issue project invitations
	PermTaskManage     = "task:manage"     // create/update/delete tasks
	PermTaskView       = "task:view"       // read-only access
	PermCommentManage  = "comment:manage"  // moderate comments
	PermSettingsManage = "settings:manage" // project settings
)

// SystemAdminRoleName is the name of the role every project is created with.
const SystemAdminRoleName = "Admin"

// ProjectRole defines what members holding it may do inside a project.
//
// Every project gets a system "Admin" role at creation time; additional
// custom roles may be added with an explicit permission set.
//
// Administrative is computed once, when the role is defined, from the role
// being the system Admin role or its permission set including
// PermProjectManage. Authorization checks read the flag; they never compare
// role names.
type ProjectRole struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID primitive.ObjectID `bson:"project_id" json:"project_id"`

	Name   string `bson:"name" json:"name"`
	NameCI string `bson:"name_ci" json:"name_ci"`

	Permissions []string `bson:"permissions" json:"permissions"`

	// System marks the built-in Admin role, which cannot be edited or deleted.
	System bool `bson:"system" json:"system"`

	Administrative bool `bson:"administrative" json:"administrative"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ComputeAdministrative reports whether a role with the given attributes
// carries administrative capability. Called at role-definition time; the
// result is persisted on the role document.
func ComputeAdministrative(system bool, permissions []string) bool {
	if system {
		return true
	}
	for _, p := range permissions {
		if p == PermProjectManage {
			return true
		}
	}
	return false
}

// HasPermission reports whether the role grants the given permission.
// Administrative roles grant everything.
func (r ProjectRole) HasPermission(perm string) bool {
	if r.Administrative {
		return true
	}
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
