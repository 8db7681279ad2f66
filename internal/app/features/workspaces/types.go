// internal/app/features/workspaces/types.go
package workspaces

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taskhubapp/taskhub/internal/domain/models"
)

type createRequest struct {
	Name string `json:"name"`
	Type string `json:"type"` // "personal" | "group"
}

type updateRequest struct {
	Name string `json:"name"`
}

type transferRequest struct {
	NewOwnerUserID string `json:"new_owner_user_id"`
}

type memberRoleRequest struct {
	Role string `json:"role"` // "admin" | "member"
}

// workspaceResponse is a workspace as returned by the API.
type workspaceResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	OwnerUserID string     `json:"owner_user_id"`
	Role        string     `json:"role,omitempty"` // caller's role, when resolved
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type memberResponse struct {
	UserID   string    `json:"user_id"`
	FullName string    `json:"full_name,omitempty"`
	Email    string    `json:"email,omitempty"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func toWorkspaceResponse(ws models.Workspace, role string) workspaceResponse {
	return workspaceResponse{
		ID:          ws.ID.Hex(),
		Name:        ws.Name,
		Type:        ws.Type,
		OwnerUserID: ws.OwnerUserID.Hex(),
		Role:        role,
		DeletedAt:   ws.DeletedAt,
		CreatedAt:   ws.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
