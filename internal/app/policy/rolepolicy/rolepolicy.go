// Package rolepolicy resolves what a user is inside a workspace or project.
//
// Resolution rules:
//   - The workspace document's owner_user_id is authoritative for ownership;
//     the owner resolves as "owner" even if their roster row is missing.
//   - Personal workspaces have exactly one user: the owner. Everyone else
//     resolves to no access.
//   - Project access requires live workspace access. A project membership
//     row left behind after the user was removed from the workspace grants
//     nothing.
//   - The workspace owner and the project creator hold administrative
//     capability over every project in the workspace; other members get
//     whatever their project role's stored administrative flag says.
package rolepolicy

import (
	"context"

	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NoAccess is the role resolved for users with no standing in a scope.
const NoAccess = ""

// WorkspaceStore is the workspace lookup the resolver needs. Implementations
// return nil without error when no live workspace exists.
type WorkspaceStore interface {
	FindActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Workspace, error)
}

// WorkspaceMemberStore looks up live roster rows. nil means no membership.
type WorkspaceMemberStore interface {
	GetActive(ctx context.Context, workspaceID, userID primitive.ObjectID) (*models.WorkspaceMember, error)
}

// ProjectStore looks up live projects. nil means no project.
type ProjectStore interface {
	FindActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
}

// ProjectMemberStore looks up live project roster rows. nil means none.
type ProjectMemberStore interface {
	GetActive(ctx context.Context, projectID, userID primitive.ObjectID) (*models.ProjectMember, error)
}

// ProjectRoleStore looks up role definitions. nil means the role is gone.
type ProjectRoleStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.ProjectRole, error)
}

// WorkspaceAccess is the result of resolving a user against a workspace.
type WorkspaceAccess struct {
	Workspace models.Workspace
	// Role is "owner", "admin", "member", or NoAccess.
	Role string
}

// Found reports whether the workspace exists and is not deleted.
func (a WorkspaceAccess) Found() bool { return !a.Workspace.ID.IsZero() }

// HasAccess reports whether the user holds any role in the workspace.
func (a WorkspaceAccess) HasAccess() bool { return a.Role != NoAccess }

// AtLeast reports whether the resolved role ranks at or above min.
func (a WorkspaceAccess) AtLeast(min string) bool {
	return roleRank(a.Role) >= roleRank(min) && a.Role != NoAccess
}

func roleRank(role string) int {
	switch role {
	case models.WorkspaceRoleOwner:
		return 3
	case models.WorkspaceRoleAdmin:
		return 2
	case models.WorkspaceRoleMember:
		return 1
	default:
		return 0
	}
}

// ProjectAccess is the result of resolving a user against a project.
type ProjectAccess struct {
	Project       models.Project
	Workspace     models.Workspace
	WorkspaceRole string
	// Role is the user's project role definition, nil when they hold no
	// explicit project membership (or their role was deleted under them).
	Role *models.ProjectRole
	// Administrative is true for the workspace owner, the project creator,
	// and members whose role carries the administrative flag.
	Administrative bool
}

// Found reports whether the project and its workspace both exist live.
func (a ProjectAccess) Found() bool { return !a.Project.ID.IsZero() }

// HasAccess reports whether the user can see the project at all.
func (a ProjectAccess) HasAccess() bool {
	return a.Administrative || a.Role != nil
}

// HasPermission reports whether the user may perform the given permission
// inside the project.
func (a ProjectAccess) HasPermission(perm string) bool {
	if a.Administrative {
		return true
	}
	if a.Role == nil {
		return false
	}
	return a.Role.HasPermission(perm)
}

// Resolver answers role questions from live store state.
type Resolver struct {
	workspaces     WorkspaceStore
	members        WorkspaceMemberStore
	projects       ProjectStore
	projectMembers ProjectMemberStore
	roles          ProjectRoleStore
}

func New(workspaces WorkspaceStore, members WorkspaceMemberStore, projects ProjectStore, projectMembers ProjectMemberStore, roles ProjectRoleStore) *Resolver {
	return &Resolver{
		workspaces:     workspaces,
		members:        members,
		projects:       projects,
		projectMembers: projectMembers,
		roles:          roles,
	}
}

// Workspace resolves a user's role in a workspace. A zero-ID Workspace in
// the result means the workspace does not exist or is deleted.
func (r *Resolver) Workspace(ctx context.Context, workspaceID, userID primitive.ObjectID) (WorkspaceAccess, error) {
	ws, err := r.workspaces.FindActiveByID(ctx, workspaceID)
	if err != nil {
		return WorkspaceAccess{}, err
	}
	if ws == nil {
		return WorkspaceAccess{}, nil
	}

	access := WorkspaceAccess{Workspace: *ws}

	if ws.OwnerUserID == userID {
		access.Role = models.WorkspaceRoleOwner
		return access, nil
	}
	if ws.IsPersonal() {
		// Personal workspaces have no roster.
		return access, nil
	}

	m, err := r.members.GetActive(ctx, workspaceID, userID)
	if err != nil {
		return WorkspaceAccess{}, err
	}
	if m == nil {
		return access, nil
	}
	access.Role = m.Role
	return access, nil
}

// Project resolves a user's standing in a project, walking up to the parent
// workspace first. A zero-ID Project in the result means the project or its
// workspace does not exist or is deleted.
func (r *Resolver) Project(ctx context.Context, projectID, userID primitive.ObjectID) (ProjectAccess, error) {
	p, err := r.projects.FindActiveByID(ctx, projectID)
	if err != nil {
		return ProjectAccess{}, err
	}
	if p == nil {
		return ProjectAccess{}, nil
	}

	ws, err := r.Workspace(ctx, p.WorkspaceID, userID)
	if err != nil {
		return ProjectAccess{}, err
	}
	if !ws.Found() {
		// Deleted workspace hides its projects.
		return ProjectAccess{}, nil
	}

	access := ProjectAccess{
		Project:       *p,
		Workspace:     ws.Workspace,
		WorkspaceRole: ws.Role,
	}
	if !ws.HasAccess() {
		// No live workspace standing; stale project rows grant nothing.
		return access, nil
	}

	if ws.Role == models.WorkspaceRoleOwner || p.CreatorUserID == userID {
		access.Administrative = true
	}

	m, err := r.projectMembers.GetActive(ctx, projectID, userID)
	if err != nil {
		return ProjectAccess{}, err
	}
	if m == nil {
		return access, nil
	}

	role, err := r.roles.FindByID(ctx, m.RoleID)
	if err != nil {
		return ProjectAccess{}, err
	}
	if role == nil {
		// Role deleted out from under the membership; the row stays but
		// grants nothing beyond what the user already has.
		return access, nil
	}
	access.Role = role
	if role.Administrative {
		access.Administrative = true
	}
	return access, nil
}
