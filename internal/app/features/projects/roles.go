// internal/app/features/projects/roles.go
package projects

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	apierrors "github.com/taskhubapp/taskhub/internal/app/features/errors"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/system/authz"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validPermissions = map[string]bool{
	models.PermProjectManage:  true,
	models.PermProjectInvite:  true,
	models.PermTaskManage:     true,
	models.PermTaskView:       true,
	models.PermCommentManage:  true,
	models.PermSettingsManage: true,
}

func roleID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "roleID"))
	if err != nil {
		apierrors.NotFound(w, "Role not found.")
		return primitive.NilObjectID, false
	}
	return id, true
}

func checkPermissions(w http.ResponseWriter, perms []string) bool {
	for _, p := range perms {
		if !validPermissions[p] {
			apierrors.Unprocessable(w, "invalid_permission", "Unknown permission: "+p)
			return false
		}
	}
	return true
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /projects/{id}/roles                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
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

	roles, err := h.Roles.ListByProject(ctx, pID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	writeJSON(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /projects/{id}/roles                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleCreateRole defines a custom role. Granting project:manage makes the
// role administrative; the flag is computed at definition time in the store.
func (h *Handler) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
	if !ok {
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}
	req.Name = normalize.Name(req.Name)
	if req.Name == "" {
		apierrors.Unprocessable(w, "invalid_name", "Role name is required.")
		return
	}
	if !checkPermissions(w, req.Permissions) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	access, err := h.Authz.RequireProject(ctx, pID, userID, authzpolicy.ProjectManageRoles)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	role, err := h.Roles.Create(ctx, models.ProjectRole{
		ProjectID:   pID,
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectRoleCreated(ctx, r, userID, access.Project.WorkspaceID, pID, role.ID, role.Name)

	writeJSON(w, http.StatusCreated, toRoleResponse(role))
}

/*─────────────────────────────────────────────────────────────────────────────*
| PATCH /projects/{id}/roles/{roleID}                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
	if !ok {
		return
	}
	rID, ok := roleID(w, r)
	if !ok {
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}
	req.Name = normalize.Name(req.Name)
	if req.Name == "" {
		apierrors.Unprocessable(w, "invalid_name", "Role name is required.")
		return
	}
	if !checkPermissions(w, req.Permissions) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	access, err := h.Authz.RequireProject(ctx, pID, userID, authzpolicy.ProjectManageRoles)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	if ok := h.roleBelongsToProject(ctx, w, rID, pID); !ok {
		return
	}

	if err := h.Roles.Update(ctx, rID, req.Name, req.Permissions); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectRoleUpdated(ctx, r, userID, access.Project.WorkspaceID, pID, rID, "name,permissions")

	role, err := h.Roles.GetByID(ctx, rID)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /projects/{id}/roles/{roleID}                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleDeleteRole removes a custom role. The system Admin role and roles
// still held by active members are protected.
func (h *Handler) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
	if !ok {
		return
	}
	rID, ok := roleID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	access, err := h.Authz.RequireProject(ctx, pID, userID, authzpolicy.ProjectManageRoles)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	role, err := h.Roles.FindByID(ctx, rID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	if role == nil || role.ProjectID != pID {
		apierrors.NotFound(w, "Role not found.")
		return
	}

	held, err := h.Members.CountActiveByRole(ctx, rID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	if held > 0 {
		apierrors.Conflict(w, "role_in_use", "Members still hold this role. Reassign them first.")
		return
	}

	if err := h.Roles.Delete(ctx, rID); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectRoleDeleted(ctx, r, userID, access.Project.WorkspaceID, pID, rID, role.Name)

	w.WriteHeader(http.StatusNoContent)
}

// roleBelongsToProject writes a 404 and returns false when the role does not
// exist inside the project.
func (h *Handler) roleBelongsToProject(ctx context.Context, w http.ResponseWriter, rID, pID primitive.ObjectID) bool {
	role, err := h.Roles.FindByID(ctx, rID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return false
	}
	if role == nil || role.ProjectID != pID {
		apierrors.NotFound(w, "Role not found.")
		return false
	}
	return true
}
