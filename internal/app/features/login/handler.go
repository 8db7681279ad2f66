// internal/app/features/login/handler.go
package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/validate"
	apierrors "github.com/taskhubapp/taskhub/internal/app/features/errors"
	userstore "github.com/taskhubapp/taskhub/internal/app/store/users"
	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"github.com/taskhubapp/taskhub/internal/app/system/authutil"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
		Log:        logger,
	}
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the signed-in user as returned by register and login.
type userResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /register                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRegister creates a password account and signs it in.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}

	req.FullName = normalize.Name(req.FullName)
	req.Email = normalize.Email(req.Email)

	if req.FullName == "" {
		apierrors.Unprocessable(w, "invalid_name", "Full name is required.")
		return
	}
	if !validate.SimpleEmailValid(req.Email) {
		apierrors.Unprocessable(w, "invalid_email", "A valid email address is required.")
		return
	}
	if err := authutil.ValidatePassword(req.Password); err != nil {
		apierrors.Unprocessable(w, "invalid_password", authutil.PasswordRules())
		return
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		AuthMethod:   models.AuthMethodInternal,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			apierrors.Conflict(w, "email_taken", "An account with this email already exists.")
			return
		}
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.UserRegistered(ctx, r, u.ID, u.AuthMethod, u.Email)

	if err := h.signIn(w, r, u); err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	writeUserJSON(w, http.StatusCreated, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLogin verifies email+password credentials and creates a session.
//
// Failed lookups and wrong passwords return the same 401 so the response
// does not reveal whether an account exists.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.BadRequest(w, "Invalid JSON body.")
		return
	}

	email := normalize.Email(req.Email)
	if email == "" || strings.TrimSpace(req.Password) == "" {
		apierrors.BadRequest(w, "Email and password are required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}
	if u == nil {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		apierrors.Write(w, http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password.")
		return
	}

	if normalize.Status(u.Status) == "disabled" {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, email)
		apierrors.Forbidden(w, "This account is disabled.")
		return
	}

	if normalize.AuthMethod(u.AuthMethod) == models.AuthMethodGoogle || u.PasswordHash == "" {
		apierrors.Unprocessable(w, "wrong_auth_method", "This account signs in with Google.")
		return
	}

	if !authutil.CheckPassword(req.Password, u.PasswordHash) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID, email)
		apierrors.Write(w, http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password.")
		return
	}

	if err := h.signIn(w, r, *u); err != nil {
		apierrors.Internal(w, h.Log, err)
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, u.ID, normalize.AuthMethod(u.AuthMethod), u.Email)

	writeUserJSON(w, http.StatusOK, *u)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, u models.User) error {
	return h.SessionMgr.SignIn(w, r, auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
	})
}

func writeUserJSON(w http.ResponseWriter, status int, u models.User) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(userResponse{
		ID:       u.ID.Hex(),
		FullName: u.FullName,
		Email:    u.Email,
	})
}
