// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes returns the credential endpoints; mounted at the router root.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.HandleLogin)
	r.Post("/register", h.HandleRegister)
	return r
}
