// internal/app/features/projects/routes.go
package projects

import "github.com/go-chi/chi/v5"

// Routes mounts the project endpoints. The session middleware has already
// required a signed-in user; per-project authorization happens in the
// handlers through the policy engine.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)

	r.Get("/{id}", h.HandleGet)
	r.Patch("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)
	r.Post("/{id}/restore", h.HandleRestore)

	r.Get("/{id}/roles", h.HandleListRoles)
	r.Post("/{id}/roles", h.HandleCreateRole)
	r.Patch("/{id}/roles/{roleID}", h.HandleUpdateRole)
	r.Delete("/{id}/roles/{roleID}", h.HandleDeleteRole)

	r.Get("/{id}/members", h.HandleListMembers)
	r.Post("/{id}/members", h.HandleAddMember)
	r.Patch("/{id}/members/{userID}", h.HandleSetMemberRole)
	r.Delete("/{id}/members/{userID}", h.HandleRemoveMember)

	return r
}
