// internal/app/features/workspaces/routes.go
package workspaces

import "github.com/go-chi/chi/v5"

// Routes mounts the workspace endpoints. The session middleware has already
// required a signed-in user; per-workspace authorization happens in the
// handlers through the policy engine.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)

	r.Get("/{id}", h.HandleGet)
	r.Patch("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)
	r.Post("/{id}/restore", h.HandleRestore)
	r.Post("/{id}/transfer", h.HandleTransferOwner)

	r.Get("/{id}/members", h.HandleListMembers)
	r.Patch("/{id}/members/{userID}", h.HandleSetMemberRole)
	r.Delete("/{id}/members/{userID}", h.HandleRemoveMember)

	return r
}
