// internal/app/features/workspaces/crud.go
package workspaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/go-chi/chi/v5"
	apierrors "github.com/taskhubapp/taskhub/internal/app/features/errors"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/system/authz"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
	"github.com/taskhubapp/taskhub/internal/app/system/txn"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// workspaceID pulls and parses the {id} URL parameter. A malformed ID is
// indistinguishable from a missing workspace.
func workspaceID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.NotFound(w, "Workspace not found.")
		return primitive.NilObjectID, false
	}
	return id, true
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /workspaces                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleCreate creates a workspace. A group workspace gets its owner roster
// row in the same transaction; a personal workspace has no roster and at
// most one exists per owner.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}

	req.Name = normalize.Name(req.Name)
	if req.Name == "" {
		apierrors.Unprocessable(w, "invalid_name", "Workspace name is required.")
		return
	}
	switch req.Type {
	case models.WorkspaceTypePersonal, models.WorkspaceTypeGroup:
	default:
		apierrors.Unprocessable(w, "invalid_type", `Workspace type must be "personal" or "group".`)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	var ws models.Workspace
	err := txn.WithTransaction(ctx, h.Client, func(ctx context.Context) error {
		var err error
		ws, err = h.Workspaces.Create(ctx, models.Workspace{
			Name:        req.Name,
			Type:        req.Type,
			OwnerUserID: userID,
		})
		if err != nil {
			return err
		}
		if ws.Type == models.WorkspaceTypeGroup {
			_, err = h.Members.Add(ctx, models.WorkspaceMember{
				WorkspaceID: ws.ID,
				UserID:      userID,
				Role:        models.WorkspaceRoleOwner,
			})
		}
		return err
	})
	if err != nil {
		if wafflemongo.IsDup(err) {
			apierrors.Conflict(w, "personal_workspace_exists", "You already have a personal workspace.")
			return
		}
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.WorkspaceCreated(ctx, r, userID, ws.ID, ws.Type, ws.Name)

	writeJSON(w, http.StatusCreated, toWorkspaceResponse(ws, models.WorkspaceRoleOwner))
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /workspaces                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleList returns the caller's workspaces: owned ones plus group
// workspaces they hold an active membership in.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	owned, err := h.Workspaces.ListActiveOwnedBy(ctx, userID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	memberships, err := h.Members.ListActiveByUser(ctx, userID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	roleByWorkspace := make(map[primitive.ObjectID]string, len(memberships))
	var memberIDs []primitive.ObjectID
	for _, m := range memberships {
		roleByWorkspace[m.WorkspaceID] = m.Role
		memberIDs = append(memberIDs, m.WorkspaceID)
	}

	joined, err := h.Workspaces.ListActiveByIDs(ctx, memberIDs)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	seen := make(map[primitive.ObjectID]bool)
	out := make([]workspaceResponse, 0, len(owned)+len(joined))
	for _, ws := range owned {
		seen[ws.ID] = true
		out = append(out, toWorkspaceResponse(ws, models.WorkspaceRoleOwner))
	}
	for _, ws := range joined {
		if seen[ws.ID] {
			continue
		}
		out = append(out, toWorkspaceResponse(ws, roleByWorkspace[ws.ID]))
	}

	writeJSON(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /workspaces/{id}                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	access, err := h.Authz.RequireWorkspace(ctx, wsID, userID, authzpolicy.WorkspaceView)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkspaceResponse(access.Workspace, access.Role))
}

/*─────────────────────────────────────────────────────────────────────────────*
| PATCH /workspaces/{id}                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}
	req.Name = normalize.Name(req.Name)
	if req.Name == "" {
		apierrors.Unprocessable(w, "invalid_name", "Workspace name is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	access, err := h.Authz.RequireWorkspace(ctx, wsID, userID, authzpolicy.WorkspaceUpdate)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	if err := h.Workspaces.Rename(ctx, wsID, req.Name); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	h.AuditLog.WorkspaceUpdated(ctx, r, userID, wsID, "name")

	ws := access.Workspace
	ws.Name = req.Name
	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws, access.Role))
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /workspaces/{id}                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleDelete soft-deletes the workspace and cascades to its roster,
// projects, and project memberships, all stamped with the same timestamp so
// restore can tell cascade rows from individually deleted ones.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	if _, err := h.Authz.RequireWorkspace(ctx, wsID, userID, authzpolicy.WorkspaceDelete); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	at := time.Now().UTC()
	err := txn.WithTransaction(ctx, h.Client, func(ctx context.Context) error {
		if _, err := h.Workspaces.SoftDelete(ctx, wsID, at); err != nil {
			return err
		}
		if _, err := h.Members.RemoveAllByWorkspace(ctx, wsID, at); err != nil {
			return err
		}
		if _, err := h.Projects.SoftDeleteByWorkspace(ctx, wsID, at); err != nil {
			return err
		}
		_, err := h.ProjectMembers.RemoveAllByWorkspace(ctx, wsID, at)
		return err
	})
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.WorkspaceDeleted(ctx, r, userID, wsID)

	w.WriteHeader(http.StatusNoContent)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /workspaces/{id}/restore                                               |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	ws, err := h.Workspaces.GetByID(ctx, wsID)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	if !ws.IsDeleted() {
		apierrors.Unprocessable(w, "not_deleted", "Workspace is not deleted.")
		return
	}
	if err := h.Authz.RequireDeletedWorkspace(ws, userID, authzpolicy.WorkspaceRestore); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	at := *ws.DeletedAt
	err = txn.WithTransaction(ctx, h.Client, func(ctx context.Context) error {
		if _, err := h.Workspaces.Restore(ctx, wsID); err != nil {
			return err
		}
		if _, err := h.Members.RestoreAllByWorkspace(ctx, wsID, at); err != nil {
			return err
		}
		if _, err := h.Projects.RestoreByWorkspace(ctx, wsID, at); err != nil {
			return err
		}
		_, err := h.ProjectMembers.RestoreAllByWorkspace(ctx, wsID, at)
		return err
	})
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.WorkspaceRestored(ctx, r, userID, wsID)

	ws.DeletedAt = nil
	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws, models.WorkspaceRoleOwner))
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /workspaces/{id}/transfer                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleTransferOwner moves ownership to another active member. The previous
// owner stays on the roster as an admin, so the workspace keeps exactly one
// owner throughout.
func (h *Handler) HandleTransferOwner(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}
	newOwnerID, err := primitive.ObjectIDFromHex(req.NewOwnerUserID)
	if err != nil {
		apierrors.BadRequest(w, "Invalid new owner user ID.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	access, err := h.Authz.RequireWorkspace(ctx, wsID, userID, authzpolicy.WorkspaceTransferOwner)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	if access.Workspace.IsPersonal() {
		apierrors.Unprocessable(w, "invalid_state", "A personal workspace cannot change owners.")
		return
	}
	if newOwnerID == userID {
		apierrors.Unprocessable(w, "invalid_state", "You already own this workspace.")
		return
	}

	target, err := h.Members.GetActive(ctx, wsID, newOwnerID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	if target == nil {
		apierrors.Unprocessable(w, "not_a_member", "The new owner must be an active member of the workspace.")
		return
	}

	err = txn.WithTransaction(ctx, h.Client, func(ctx context.Context) error {
		if err := h.Workspaces.SetOwner(ctx, wsID, newOwnerID); err != nil {
			return err
		}
		if err := h.Members.SetRole(ctx, wsID, newOwnerID, models.WorkspaceRoleOwner); err != nil {
			return err
		}
		return h.Members.SetRole(ctx, wsID, userID, models.WorkspaceRoleAdmin)
	})
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	h.AuditLog.WorkspaceOwnerChanged(ctx, r, userID, wsID, newOwnerID)

	ws := access.Workspace
	ws.OwnerUserID = newOwnerID
	writeJSON(w, http.StatusOK, toWorkspaceResponse(ws, models.WorkspaceRoleAdmin))
}
