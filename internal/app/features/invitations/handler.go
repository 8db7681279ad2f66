// internal/app/features/invitations/handler.go
package invitations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	apierrors "github.com/taskhubapp/taskhub/internal/app/features/errors"
	"github.com/taskhubapp/taskhub/internal/app/invites"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	userstore "github.com/taskhubapp/taskhub/internal/app/store/users"
	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"github.com/taskhubapp/taskhub/internal/app/system/authz"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler exposes the invitation lifecycle over HTTP. Authorization for
// issuing goes through the policy engine; settlement is addressed by token
// and checked against the signed-in user's email by the ledger.
type Handler struct {
	Ledger   *invites.Ledger
	Users    *userstore.Store
	Authz    *authzpolicy.Engine
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

// NewHandler creates a new invitations Handler.
func NewHandler(ledger *invites.Ledger, users *userstore.Store, engine *authzpolicy.Engine, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Ledger:   ledger,
		Users:    users,
		Authz:    engine,
		AuditLog: audit,
		Log:      logger,
	}
}

// currentUser loads the signed-in user's account. The session may outlive
// the account, so a miss is handled as an auth failure rather than a 500.
func (h *Handler) currentUser(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.User, bool) {
	userID, ok := authz.UserID(r)
	if !ok {
		apierrors.Unauthorized(w)
		return models.User{}, false
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			apierrors.Unauthorized(w)
			return models.User{}, false
		}
		apierrors.Internal(w, h.Log, err)
		return models.User{}, false
	}
	return *u, true
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /invitations/workspace                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleInviteWorkspace issues (or refreshes) a workspace invitation.
func (h *Handler) HandleInviteWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}
	wsID, err := primitive.ObjectIDFromHex(req.WorkspaceID)
	if err != nil {
		apierrors.NotFound(w, "Workspace not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	inviter, ok := h.currentUser(ctx, w, r)
	if !ok {
		return
	}

	access, err := h.Authz.RequireWorkspace(ctx, wsID, inviter.ID, authzpolicy.WorkspaceInvite)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	inv, err := h.Ledger.InviteToWorkspace(ctx, access.Workspace, inviter, req.Email, req.Role, req.Message)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	h.AuditLog.InviteSent(ctx, r, inviter.ID, &wsID, nil, inv.Email)

	writeJSON(w, http.StatusCreated, toInvitationResponse(inv))
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /invitations/project                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleInviteProject issues (or refreshes) a project invitation. The ledger
// requires a registered invitee who already belongs to the workspace.
func (h *Handler) HandleInviteProject(w http.ResponseWriter, r *http.Request) {
	var req projectInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}
	pID, err := primitive.ObjectIDFromHex(req.ProjectID)
	if err != nil {
		apierrors.NotFound(w, "Project not found.")
		return
	}
	rID, err := primitive.ObjectIDFromHex(req.RoleID)
	if err != nil {
		apierrors.NotFound(w, "Role not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	inviter, ok := h.currentUser(ctx, w, r)
	if !ok {
		return
	}

	access, err := h.Authz.RequireProject(ctx, pID, inviter.ID, authzpolicy.ProjectInvite)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	inv, err := h.Ledger.InviteToProject(ctx, access.Project, inviter, req.Email, rID, req.Message)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	wsID := access.Project.WorkspaceID
	h.AuditLog.InviteSent(ctx, r, inviter.ID, &wsID, &pID, inv.Email)

	writeJSON(w, http.StatusCreated, toInvitationResponse(inv))
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /invitations/pending                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandlePending lists the live invitations addressed to the caller's email.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, ok := h.currentUser(ctx, w, r)
	if !ok {
		return
	}

	list, err := h.Ledger.PendingForUser(ctx, user)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	out := make([]invitationResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toInvitationResponse(inv))
	}
	writeJSON(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /invitations/scope/pending?scope_type=…&scope_id=…                      |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleScopePending lists the outstanding (pending, unexpired) invitations
// for a scope, newest first. Visible to whoever may issue invitations there.
func (h *Handler) HandleScopePending(w http.ResponseWriter, r *http.Request) {
	h.handleScopeListing(w, r, h.Ledger.PendingForScope)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /invitations/history?scope_type=…&scope_id=…                            |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleHistory lists every invitation ever issued for a scope, settled and
// expired rows included, newest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	h.handleScopeListing(w, r, h.Ledger.HistoryForScope)
}

// handleScopeListing parses the scope query parameters, verifies the caller
// holds the scope's invite privilege, and serves the rows the given lister
// returns.
func (h *Handler) handleScopeListing(w http.ResponseWriter, r *http.Request, list func(context.Context, string, primitive.ObjectID) ([]models.Invitation, error)) {
	scopeType := normalize.ScopeType(r.URL.Query().Get("scope_type"))
	scopeID, err := primitive.ObjectIDFromHex(normalize.QueryParam(r.URL.Query().Get("scope_id")))
	if err != nil {
		apierrors.BadRequest(w, "A valid scope_id query parameter is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, ok := h.currentUser(ctx, w, r)
	if !ok {
		return
	}

	switch scopeType {
	case models.InviteScopeWorkspace:
		if _, err := h.Authz.RequireWorkspace(ctx, scopeID, user.ID, authzpolicy.WorkspaceInvite); err != nil {
			apierrors.FromDomain(w, h.Log, err)
			return
		}
	case models.InviteScopeProject:
		if _, err := h.Authz.RequireProject(ctx, scopeID, user.ID, authzpolicy.ProjectInvite); err != nil {
			apierrors.FromDomain(w, h.Log, err)
			return
		}
	default:
		apierrors.BadRequest(w, `scope_type must be "workspace" or "project".`)
		return
	}

	rows, err := list(ctx, scopeType, scopeID)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	out := make([]invitationResponse, 0, len(rows))
	for _, inv := range rows {
		out = append(out, toInvitationResponse(inv))
	}
	writeJSON(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /invitations/accept                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleAccept settles an invitation and grants the membership it carries.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	token, user, ok := h.settlementInput(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	inv, err := h.Ledger.Accept(ctx, token, user)
	if err != nil {
		if errors.Is(err, invites.ErrNotInvitee) {
			h.AuditLog.InviteDenied(ctx, r, user.ID, "wrong invitee")
		}
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	wsID, pID := scopeIDs(inv)
	h.AuditLog.InviteAccepted(ctx, r, user.ID, wsID, pID)

	writeJSON(w, http.StatusOK, toInvitationResponse(inv))
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /invitations/reject                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleReject declines an invitation. The row stays behind as history.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	token, user, ok := h.settlementInput(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	inv, err := h.Ledger.Reject(ctx, token, user)
	if err != nil {
		if errors.Is(err, invites.ErrNotInvitee) {
			h.AuditLog.InviteDenied(ctx, r, user.ID, "wrong invitee")
		}
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	wsID, pID := scopeIDs(inv)
	h.AuditLog.InviteRejected(ctx, r, user.ID, wsID, pID)

	writeJSON(w, http.StatusOK, toInvitationResponse(inv))
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /invitations/{id}/cancel                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleCancel withdraws a pending invitation. The original inviter may
// always cancel; anyone else must hold the scope's invite privilege.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	invID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.NotFound(w, "Invitation not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, ok := h.currentUser(ctx, w, r)
	if !ok {
		return
	}

	inv, err := h.Ledger.Find(ctx, invID)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	if inv.InvitedByUserID != user.ID {
		switch inv.ScopeType {
		case models.InviteScopeProject:
			_, err = h.Authz.RequireProject(ctx, inv.ScopeID, user.ID, authzpolicy.ProjectInvite)
		default:
			_, err = h.Authz.RequireWorkspace(ctx, inv.ScopeID, user.ID, authzpolicy.WorkspaceInvite)
		}
		if err != nil {
			apierrors.FromDomain(w, h.Log, err)
			return
		}
	}

	cancelled, err := h.Ledger.Cancel(ctx, invID)
	if err != nil {
		apierrors.FromDomain(w, h.Log, err)
		return
	}

	wsID, pID := scopeIDs(cancelled)
	h.AuditLog.InviteCancelled(ctx, r, user.ID, wsID, pID, cancelled.Email)

	writeJSON(w, http.StatusOK, toInvitationResponse(cancelled))
}

func (h *Handler) settlementInput(w http.ResponseWriter, r *http.Request) (string, models.User, bool) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return "", models.User{}, false
	}
	if req.Token == "" {
		apierrors.BadRequest(w, "A token is required.")
		return "", models.User{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, ok := h.currentUser(ctx, w, r)
	if !ok {
		return "", models.User{}, false
	}
	return req.Token, user, true
}

func scopeIDs(inv models.Invitation) (workspaceID, projectID *primitive.ObjectID) {
	id := inv.ScopeID
	if inv.ScopeType == models.InviteScopeProject {
		return nil, &id
	}
	return &id, nil
}
