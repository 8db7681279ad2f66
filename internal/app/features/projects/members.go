// internal/app/features/projects/members.go
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	apierrors "github.com/taskhubapp/taskhub/internal/app/features/errors"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	projectmemberstore "github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	"github.com/taskhubapp/taskhub/internal/app/system/authz"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
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
| GET /projects/{id}/members                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Authz.RequireProject(ctx, pID, userID, authzpolicy.ProjectView); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	roster, err := h.Members.ListActiveByProject(ctx, pID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	roles, err := h.Roles.ListByProject(ctx, pID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	roleName := make(map[primitive.ObjectID]string, len(roles))
	for _, role := range roles {
		roleName[role.ID] = role.Name
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
			RoleID:   m.RoleID.Hex(),
			RoleName: roleName[m.RoleID],
			JoinedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /projects/{id}/members                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleAddMember assigns a workspace member to the project with a role. The
// hierarchy guard rejects users who hold no live workspace membership, so a
// project roster can never reach outside its workspace.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}
	targetID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		apierrors.BadRequest(w, "Invalid user ID.")
		return
	}
	rID, err := primitive.ObjectIDFromHex(req.RoleID)
	if err != nil {
		apierrors.NotFound(w, "Role not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	access, err := h.Authz.RequireProject(ctx, pID, actorID, authzpolicy.ProjectManageMembers)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	if ok := h.roleBelongsToProject(ctx, w, rID, pID); !ok {
		return
	}
	if err := h.Hierarchy.CheckProjectMembership(ctx, access.Project.WorkspaceID, targetID); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	m, err := h.Members.Add(ctx, models.ProjectMember{
		WorkspaceID: access.Project.WorkspaceID,
		ProjectID:   pID,
		UserID:      targetID,
		RoleID:      rID,
	})
	if errors.Is(err, projectmemberstore.ErrDuplicateMembership) {
		// A live duplicate is a conflict; a soft-deleted row gets revived
		// onto the requested role.
		existing, lookupErr := h.Members.GetActive(ctx, pID, targetID)
		if lookupErr != nil {
			apierrors.Internal(w, h.Log, lookupErr)
			return
		}
		if existing != nil {
			apierrors.Conflict(w, "already_member", "The user is already a member of this project.")
			return
		}
		if _, err := h.Members.Reactivate(ctx, pID, targetID, rID); err != nil {
			apierrors.Internal(w, h.Log, err)
			return
		}
		revived, err := h.Members.GetActive(ctx, pID, targetID)
		if err != nil {
			apierrors.Internal(w, h.Log, err)
			return
		}
		if revived != nil {
			m = *revived
		}
	} else if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectMemberChanged(ctx, r, actorID, access.Project.WorkspaceID, pID, targetID, rID)

	writeJSON(w, http.StatusCreated, memberResponse{
		UserID:   targetID.Hex(),
		RoleID:   rID.Hex(),
		JoinedAt: m.CreatedAt,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| PATCH /projects/{id}/members/{userID}                                       |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleSetMemberRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
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
	rID, err := primitive.ObjectIDFromHex(req.RoleID)
	if err != nil {
		apierrors.NotFound(w, "Role not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	access, err := h.Authz.RequireProject(ctx, pID, actorID, authzpolicy.ProjectManageMembers)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	if ok := h.roleBelongsToProject(ctx, w, rID, pID); !ok {
		return
	}

	if err := h.Members.SetRole(ctx, pID, targetID, rID); err != nil {
		if errors.Is(err, projectmemberstore.ErrNotFound) {
			apierrors.NotFound(w, "Member not found.")
			return
		}
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectMemberChanged(ctx, r, actorID, access.Project.WorkspaceID, pID, targetID, rID)

	writeJSON(w, http.StatusOK, memberResponse{
		UserID: targetID.Hex(),
		RoleID: rID.Hex(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /projects/{id}/members/{userID}                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRemoveMember soft-deletes a project roster row. Members may remove
// themselves. Removing the creator's row is allowed; the creator keeps
// administrative standing regardless.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
	if !ok {
		return
	}
	targetID, ok := memberUserID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	action := authzpolicy.ProjectManageMembers
	if targetID == actorID {
		// Leaving requires only visibility.
		action = authzpolicy.ProjectView
	}
	access, err := h.Authz.RequireProject(ctx, pID, actorID, action)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	removed, err := h.Members.Remove(ctx, pID, targetID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	if removed == 0 {
		apierrors.NotFound(w, "Member not found.")
		return
	}

	h.AuditLog.ProjectMemberRemoved(ctx, r, actorID, access.Project.WorkspaceID, pID, targetID)

	w.WriteHeader(http.StatusNoContent)
}
