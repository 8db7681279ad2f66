// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/taskhubapp/taskhub/internal/app/store/oauthstate"
	userstore "github.com/taskhubapp/taskhub/internal/app/store/users"
	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Handler handles "Sign in with Google". Accounts are provisioned on first
// sign-in, so an invited email can land directly in Google OAuth without
// registering a password first.
type Handler struct {
	Users      *userstore.Store
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	StateStore *oauthstate.Store

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://taskhub.app/auth/google/callback"
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(
	users *userstore.Store,
	sessionMgr *auth.SessionManager,
	audit *auditlog.Logger,
	stateStore *oauthstate.Store,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:        users,
		Log:          logger,
		SessionMgr:   sessionMgr,
		AuditLog:     audit,
		StateStore:   stateStore,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Initiates the Google OAuth flow by redirecting to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		http.Redirect(w, r, "/login?error=google_not_configured", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	returnURL := r.URL.Query().Get("return")

	// Store state with 10-minute expiry
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	expiresAt := time.Now().UTC().Add(10 * time.Minute)
	if err := h.StateStore.Save(ctx, state, returnURL, expiresAt); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline)

	h.Log.Debug("initiating Google OAuth flow",
		zap.String("redirect_url", url),
		zap.String("return_url", returnURL))

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Exchanges the code for tokens, fetches the Google profile, finds or creates  |
| the account, and signs it in.                                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Check for errors from Google
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Redirect(w, r, "/login?error=google_denied", http.StatusSeeOther)
		return
	}

	// Validate state parameter
	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, valid, err := h.StateStore.Validate(ctxTimeout, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		http.Redirect(w, r, "/login?error=invalid_code", http.StatusSeeOther)
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		http.Redirect(w, r, "/login?error=token_exchange", http.StatusSeeOther)
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		http.Redirect(w, r, "/login?error=user_info", http.StatusSeeOther)
		return
	}
	if !googleUser.EmailVerified {
		h.Log.Warn("Google account email not verified", zap.String("email", googleUser.Email))
		http.Redirect(w, r, "/login?error=email_unverified", http.StatusSeeOther)
		return
	}

	u, err := h.findOrCreateUser(ctxTimeout, r, googleUser)
	if err != nil {
		if errors.Is(err, errUserDisabled) {
			http.Redirect(w, r, "/login?error=account_disabled", http.StatusSeeOther)
			return
		}
		h.Log.Error("failed to resolve Google user", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	if err := h.SessionMgr.SignIn(w, r, auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
	}); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		http.Redirect(w, r, "/login?error=session", http.StatusSeeOther)
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, u.ID, models.AuthMethodGoogle, u.Email)

	h.Log.Info("user logged in via Google OAuth",
		zap.String("user_id", u.ID.Hex()),
		zap.String("email", u.Email))

	dest := safeReturn(returnURL)
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| User resolution                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

var errUserDisabled = errors.New("user disabled")

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &info, nil
}

// findOrCreateUser resolves the Google profile to an account. The email is
// verified by Google, so an existing account with the same email is signed
// in regardless of how it was created; a missing account is provisioned with
// the google auth method.
func (h *Handler) findOrCreateUser(ctx context.Context, r *http.Request, g *googleUserInfo) (*models.User, error) {
	u, err := h.Users.FindByEmail(ctx, g.Email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		if normalize.Status(u.Status) == "disabled" {
			h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, g.Email)
			return nil, errUserDisabled
		}
		return u, nil
	}

	created, err := h.Users.Create(ctx, models.User{
		FullName:   g.Name,
		Email:      g.Email,
		AuthMethod: models.AuthMethodGoogle,
	})
	if err != nil {
		// Lost a race with a concurrent first sign-in; reload.
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return h.Users.FindByEmail(ctx, g.Email)
		}
		return nil, err
	}

	h.AuditLog.UserRegistered(ctx, r, created.ID, created.AuthMethod, created.Email)
	return &created, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// safeReturn accepts only same-site paths; anything else falls back to "/".
func safeReturn(returnURL string) string {
	if returnURL == "" || returnURL[0] != '/' {
		return "/"
	}
	if len(returnURL) > 1 && returnURL[1] == '/' {
		return "/"
	}
	return returnURL
}
