// internal/app/features/projects/crud.go
package projects

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	apierrors "github.com/taskhubapp/taskhub/internal/app/features/errors"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/system/authz"
	"github.com/taskhubapp/taskhub/internal/app/system/htmlsanitize"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
	"github.com/taskhubapp/taskhub/internal/app/system/txn"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// projectID pulls and parses the {id} URL parameter. A malformed ID is
// indistinguishable from a missing project.
func projectID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.NotFound(w, "Project not found.")
		return primitive.NilObjectID, false
	}
	return id, true
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /projects                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleCreate creates a project inside a workspace. The system Admin role
// and the creator's admin membership are written in the same transaction, so
// a project never exists without them.
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
	wsID, err := primitive.ObjectIDFromHex(req.WorkspaceID)
	if err != nil {
		apierrors.NotFound(w, "Workspace not found.")
		return
	}
	req.Name = normalize.Name(req.Name)
	if req.Name == "" {
		apierrors.Unprocessable(w, "invalid_name", "Project name is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if _, err := h.Authz.RequireWorkspace(ctx, wsID, userID, authzpolicy.ProjectCreate); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	var p models.Project
	err = txn.WithTransaction(ctx, h.Client, func(ctx context.Context) error {
		var err error
		p, err = h.Projects.Create(ctx, models.Project{
			WorkspaceID:   wsID,
			Name:          req.Name,
			Description:   htmlsanitize.Sanitize(req.Description),
			CreatorUserID: userID,
		})
		if err != nil {
			return err
		}
		admin, err := h.Roles.CreateSystemAdmin(ctx, p.ID)
		if err != nil {
			return err
		}
		_, err = h.Members.Add(ctx, models.ProjectMember{
			WorkspaceID: wsID,
			ProjectID:   p.ID,
			UserID:      userID,
			RoleID:      admin.ID,
		})
		return err
	})
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectCreated(ctx, r, userID, wsID, p.ID, p.Name)

	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /projects?workspace_id=…                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleList returns the live projects of a workspace the caller belongs to.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}

	wsID, err := primitive.ObjectIDFromHex(normalize.QueryParam(r.URL.Query().Get("workspace_id")))
	if err != nil {
		apierrors.BadRequest(w, "A valid workspace_id query parameter is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Authz.RequireWorkspace(ctx, wsID, userID, authzpolicy.WorkspaceView); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	list, err := h.Projects.ListActiveByWorkspace(ctx, wsID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	out := make([]projectResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /projects/{id}                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	access, err := h.Authz.RequireProject(ctx, pID, userID, authzpolicy.ProjectView)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(access.Project))
}

/*─────────────────────────────────────────────────────────────────────────────*
| PATCH /projects/{id}                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return
	}
	pID, ok := projectID(w, r)
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
		apierrors.Unprocessable(w, "invalid_name", "Project name is required.")
		return
	}
	req.Description = htmlsanitize.Sanitize(req.Description)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	access, err := h.Authz.RequireProject(ctx, pID, userID, authzpolicy.ProjectUpdate)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	if err := h.Projects.Update(ctx, pID, req.Name, req.Description); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectUpdated(ctx, r, userID, access.Project.WorkspaceID, pID, "name,description")

	p := access.Project
	p.Name = req.Name
	p.Description = req.Description
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /projects/{id}                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleDelete soft-deletes a project. Membership rows are left untouched;
// they are inert while the project is deleted and come back with a restore.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	access, err := h.Authz.RequireProject(ctx, pID, userID, authzpolicy.ProjectDelete)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	if _, err := h.Projects.SoftDelete(ctx, pID, time.Now().UTC()); err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectDeleted(ctx, r, userID, access.Project.WorkspaceID, pID)

	w.WriteHeader(http.StatusNoContent)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /projects/{id}/restore                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRestore undeletes a project. Only the workspace owner or the project
// creator may do this, and only while the parent workspace is live.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
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

	p, err := h.Projects.GetByID(ctx, pID)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}
	if !p.IsDeleted() {
		apierrors.Unprocessable(w, "not_deleted", "Project is not deleted.")
		return
	}
	if err := h.Authz.RequireDeletedProject(ctx, p, userID); err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	if _, err := h.Projects.Restore(ctx, pID); err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.ProjectRestored(ctx, r, userID, p.WorkspaceID, pID)

	p.DeletedAt = nil
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}
