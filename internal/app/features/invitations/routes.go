// internal/app/features/invitations/routes.go
package invitations

import "github.com/go-chi/chi/v5"

// Routes mounts the invitation endpoints. The session middleware has
// already required a signed-in user.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/workspace", h.HandleInviteWorkspace)
	r.Post("/project", h.HandleInviteProject)

	r.Get("/pending", h.HandlePending)
	r.Get("/scope/pending", h.HandleScopePending)
	r.Get("/history", h.HandleHistory)

	r.Post("/accept", h.HandleAccept)
	r.Post("/reject", h.HandleReject)
	r.Post("/{id}/cancel", h.HandleCancel)

	return r
}
