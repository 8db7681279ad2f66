// internal/app/features/projects/types.go
package projects

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taskhubapp/taskhub/internal/domain/models"
)

type createRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

type memberRoleRequest struct {
	RoleID string `json:"role_id"`
}

type projectResponse struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatorID   string     `json:"creator_user_id"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type roleResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Permissions    []string `json:"permissions"`
	System         bool     `json:"system"`
	Administrative bool     `json:"administrative"`
}

type memberResponse struct {
	UserID   string    `json:"user_id"`
	FullName string    `json:"full_name,omitempty"`
	Email    string    `json:"email,omitempty"`
	RoleID   string    `json:"role_id"`
	RoleName string    `json:"role_name,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

func toProjectResponse(p models.Project) projectResponse {
	return projectResponse{
		ID:          p.ID.Hex(),
		WorkspaceID: p.WorkspaceID.Hex(),
		Name:        p.Name,
		Description: p.Description,
		CreatorID:   p.CreatorUserID.Hex(),
		DeletedAt:   p.DeletedAt,
		CreatedAt:   p.CreatedAt,
	}
}

func toRoleResponse(r models.ProjectRole) roleResponse {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleResponse{
		ID:             r.ID.Hex(),
		Name:           r.Name,
		Permissions:    perms,
		System:         r.System,
		Administrative: r.Administrative,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
