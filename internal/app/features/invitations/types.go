// internal/app/features/invitations/types.go
package invitations

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taskhubapp/taskhub/internal/domain/models"
)

type workspaceInviteRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Message     string `json:"message"`
}

type projectInviteRequest struct {
	ProjectID string `json:"project_id"`
	Email     string `json:"email"`
	RoleID    string `json:"role_id"`
	Message   string `json:"message"`
}

type settleRequest struct {
	Token string `json:"token"`
}

type invitationResponse struct {
	ID         string     `json:"id"`
	ScopeType  string     `json:"scope_type"`
	ScopeID    string     `json:"scope_id"`
	Email      string     `json:"email"`
	Role       string     `json:"role,omitempty"`
	RoleID     string     `json:"role_id,omitempty"`
	Message    string     `json:"message,omitempty"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toInvitationResponse(inv models.Invitation) invitationResponse {
	out := invitationResponse{
		ID:         inv.ID.Hex(),
		ScopeType:  inv.ScopeType,
		ScopeID:    inv.ScopeID.Hex(),
		Email:      inv.Email,
		Role:       inv.Role,
		Message:    inv.Message,
		Status:     inv.Status,
		ExpiresAt:  inv.ExpiresAt,
		AcceptedAt: inv.AcceptedAt,
		CreatedAt:  inv.CreatedAt,
	}
	if inv.RoleID != nil {
		out.RoleID = inv.RoleID.Hex()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
