// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// HandleLogout handles POST /logout. Clearing the cookie always succeeds
// from the client's point of view, even if the session failed to decode.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("logout: clear session", zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}
