// Package authzpolicy is the single decision point for scoped operations.
// Handlers name the action they are about to perform; the engine resolves
// the caller's standing through rolepolicy and either returns the resolved
// access or refuses.
//
// Decision table:
//   - workspace view / list contents: any live role
//   - workspace update, delete, restore, ownership transfer: owner only
//   - workspace invite and member management: owner or admin
//   - project create in a workspace: any live role
//   - project view: any project standing
//   - project update, delete, member and role management: administrative
//   - project invite: administrative or the project:invite permission
//   - task read/write: the matching task permission
//
// Nonexistent or deleted scopes resolve to ErrNotFound, not ErrForbidden,
// so callers cannot probe which IDs exist.
package authzpolicy

import (
	"context"
	"errors"

	"github.com/taskhubapp/taskhub/internal/app/policy/rolepolicy"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrForbidden is returned when the caller lacks standing for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the target scope does not exist or is deleted.
	ErrNotFound = errors.New("not found")
)

// Action names an operation subject to authorization.
type Action string

// Workspace-scoped actions.
const (
	WorkspaceView          Action = "workspace.view"
	WorkspaceUpdate        Action = "workspace.update"
	WorkspaceDelete        Action = "workspace.delete"
	WorkspaceRestore       Action = "workspace.restore"
	WorkspaceTransferOwner Action = "workspace.transfer_owner"
	WorkspaceInvite        Action = "workspace.invite"
	WorkspaceManageMembers Action = "workspace.manage_members"
	ProjectCreate          Action = "project.create"
)

// Project-scoped actions.
const (
	ProjectView          Action = "project.view"
	ProjectUpdate        Action = "project.update"
	ProjectDelete        Action = "project.delete"
	ProjectRestore       Action = "project.restore"
	ProjectInvite        Action = "project.invite"
	ProjectManageMembers Action = "project.manage_members"
	ProjectManageRoles   Action = "project.manage_roles"
	TaskView             Action = "task.view"
	TaskManage           Action = "task.manage"
)

// Resolver is the slice of rolepolicy the engine consumes.
type Resolver interface {
	Workspace(ctx context.Context, workspaceID, userID primitive.ObjectID) (rolepolicy.WorkspaceAccess, error)
	Project(ctx context.Context, projectID, userID primitive.ObjectID) (rolepolicy.ProjectAccess, error)
}

// Engine decides scoped actions.
type Engine struct {
	resolver Resolver
}

func New(resolver Resolver) *Engine {
	return &Engine{resolver: resolver}
}

// RequireWorkspace authorizes a workspace-scoped action and returns the
// resolved access for reuse by the handler.
func (e *Engine) RequireWorkspace(ctx context.Context, workspaceID, userID primitive.ObjectID, action Action) (rolepolicy.WorkspaceAccess, error) {
	access, err := e.resolver.Workspace(ctx, workspaceID, userID)
	if err != nil {
		return rolepolicy.WorkspaceAccess{}, err
	}
	if !access.Found() {
		return rolepolicy.WorkspaceAccess{}, ErrNotFound
	}
	if !workspaceAllowed(access, action) {
		if !access.HasAccess() {
			// Outsiders learn nothing about the workspace.
			return rolepolicy.WorkspaceAccess{}, ErrNotFound
		}
		return rolepolicy.WorkspaceAccess{}, ErrForbidden
	}
	return access, nil
}

func workspaceAllowed(access rolepolicy.WorkspaceAccess, action Action) bool {
	switch action {
	case WorkspaceView, ProjectCreate:
		return access.HasAccess()
	case WorkspaceUpdate, WorkspaceDelete, WorkspaceRestore, WorkspaceTransferOwner:
		return access.Role == models.WorkspaceRoleOwner
	case WorkspaceInvite, WorkspaceManageMembers:
		return access.AtLeast(models.WorkspaceRoleAdmin)
	default:
		return false
	}
}

// RequireDeletedWorkspace authorizes an action against a workspace that may
// be soft-deleted. Only restore goes through here; rolepolicy hides deleted
// workspaces, so the caller supplies the loaded document and the check is
// ownership alone.
func (e *Engine) RequireDeletedWorkspace(ws models.Workspace, userID primitive.ObjectID, action Action) error {
	if action != WorkspaceRestore {
		return ErrForbidden
	}
	if ws.OwnerUserID != userID {
		return ErrNotFound
	}
	return nil
}

// RequireProject authorizes a project-scoped action and returns the
// resolved access for reuse by the handler.
func (e *Engine) RequireProject(ctx context.Context, projectID, userID primitive.ObjectID, action Action) (rolepolicy.ProjectAccess, error) {
	access, err := e.resolver.Project(ctx, projectID, userID)
	if err != nil {
		return rolepolicy.ProjectAccess{}, err
	}
	if !access.Found() {
		return rolepolicy.ProjectAccess{}, ErrNotFound
	}
	if !projectAllowed(access, action) {
		if access.WorkspaceRole == rolepolicy.NoAccess {
			return rolepolicy.ProjectAccess{}, ErrNotFound
		}
		return rolepolicy.ProjectAccess{}, ErrForbidden
	}
	return access, nil
}

// RequireDeletedProject authorizes restoring a soft-deleted project.
// rolepolicy hides deleted projects, so the caller supplies the loaded
// document; restore is open to the workspace owner and to the project
// creator while they still hold workspace membership.
func (e *Engine) RequireDeletedProject(ctx context.Context, p models.Project, userID primitive.ObjectID) error {
	access, err := e.resolver.Workspace(ctx, p.WorkspaceID, userID)
	if err != nil {
		return err
	}
	if !access.Found() || !access.HasAccess() {
		return ErrNotFound
	}
	if access.Role == models.WorkspaceRoleOwner || p.CreatorUserID == userID {
		return nil
	}
	return ErrForbidden
}

func projectAllowed(access rolepolicy.ProjectAccess, action Action) bool {
	switch action {
	case ProjectView:
		return access.HasAccess()
	case ProjectUpdate, ProjectDelete, ProjectManageMembers, ProjectManageRoles:
		return access.Administrative
	case ProjectInvite:
		return access.HasPermission(models.PermProjectInvite)
	case TaskView:
		return access.HasPermission(models.PermTaskView)
	case TaskManage:
		return access.HasPermission(models.PermTaskManage)
	default:
		return false
	}
}
