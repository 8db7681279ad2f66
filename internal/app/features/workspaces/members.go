// internal/app/features/workspaces/members.go
package workspaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	apierrors "github.com/taskhubapp/taskhub/internal/app/features/errors"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/system/authz"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
	"github.com/taskhubapp/taskhub/internal/app/system/txn"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func memberUserID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		apierrors.NotFound(w, "Member not found.")
		return primitive.NilObjectID, false
	}
	return id, true
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /workspaces/{id}/members                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleListMembers returns the live roster, with names and emails resolved
// in one batched user lookup.
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Authz.RequireWorkspace(ctx, wsID, userID, authzpolicy.WorkspaceView); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	roster, err := h.Members.ListActiveByWorkspace(ctx, wsID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(roster))
	for _, m := range roster {
		ids = append(ids, m.UserID)
	}
	users, err := h.Users.GetManyByIDs(ctx, ids)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]memberResponse, 0, len(roster))
	for _, m := range roster {
		u := byID[m.UserID]
		out = append(out, memberResponse{
			UserID:   m.UserID.Hex(),
			FullName: u.FullName,
			Email:    u.Email,
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| PATCH /workspaces/{id}/members/{userID}                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleSetMemberRole changes a member's role between admin and member. The
// owner row is untouchable here; ownership moves only through transfer.
func (h *Handler) HandleSetMemberRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}
	targetID, ok := memberUserID(w, r)
	if !ok {
		return
	}

	var req memberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}
	switch req.Role {
	case models.WorkspaceRoleAdmin, models.WorkspaceRoleMember:
	default:
		apierrors.Unprocessable(w, "invalid_role", `Role must be "admin" or "member".`)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	access, err := h.Authz.RequireWorkspace(ctx, wsID, actorID, authzpolicy.WorkspaceManageMembers)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	if access.Workspace.OwnerUserID == targetID {
		apierrors.Unprocessable(w, "invalid_state", "The owner's role changes only by ownership transfer.")
		return
	}

	target, err := h.Members.GetActive(ctx, wsID, targetID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	if target == nil {
		apierrors.NotFound(w, "Member not found.")
		return
	}

	if err := h.Members.SetRole(ctx, wsID, targetID, req.Role); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	h.AuditLog.MemberRoleChanged(ctx, r, actorID, wsID, targetID, req.Role)

	writeJSON(w, http.StatusOK, memberResponse{
		UserID:   targetID.Hex(),
		Role:     req.Role,
		JoinedAt: target.CreatedAt,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /workspaces/{id}/members/{userID}                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRemoveMember soft-deletes a roster row and the member's project
// memberships in the workspace, so no project row outlives its workspace
// membership. Members may remove themselves; the owner cannot leave.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}
	targetID, ok := memberUserID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	action := authzpolicy.WorkspaceManageMembers
	if targetID == actorID {
		// Leaving requires only membership.
		action = authzpolicy.WorkspaceView
	}
	access, err := h.Authz.RequireWorkspace(ctx, wsID, actorID, action)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	if access.Workspace.OwnerUserID == targetID {
		apierrors.Unprocessable(w, "invalid_state", "The owner cannot be removed. Transfer ownership first.")
		return
	}

	at := time.Now().UTC()
	var removed int64
	err = txn.WithTransaction(ctx, h.Client, func(ctx context.Context) error {
		n, err := h.Members.Remove(ctx, wsID, targetID)
		if err != nil {
			return err
		}
		removed = n
		_, err = h.ProjectMembers.RemoveAllByUserInWorkspace(ctx, wsID, targetID, at)
		return err
	})
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	if removed == 0 {
		apierrors.NotFound(w, "Member not found.")
		return
	}

	h.AuditLog.MemberRemoved(ctx, r, actorID, wsID, targetID)

	w.WriteHeader(http.StatusNoContent)
}
