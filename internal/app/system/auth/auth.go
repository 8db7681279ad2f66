// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	isAuthKey  = "is_authenticated"
	userIDKey  = "user_id"
	userNameK  = "user_name"
	userEmailK = "user_email"
)

// SessionUser is what we cache in the session & inject into r.Context().
// Roles are deliberately absent: access is always resolved per workspace
// or project at request time, never from the cookie.
type SessionUser struct {
	ID    string
	Name  string
	Email string
}

// UserFetcher refreshes a session user from the database on each request.
// Returning (nil, nil) means the account no longer exists or is disabled,
// and the session is treated as signed out.
type UserFetcher interface {
	FetchSessionUser(ctx context.Context, userID string) (*SessionUser, error)
}

// SessionManager owns the cookie store and the middleware built on it.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	logger  *zap.Logger
}

// NewSessionManager builds a cookie-backed session manager.
// The `secure` flag controls whether cookies are marked Secure and which
// SameSite mode is used: in production (secure=true) cookies are
// Secure + SameSite=None; over http://localhost use secure=false so
// cookies are accepted.
func NewSessionManager(sessionKey, sessionName, domain string, ttl time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if sessionName == "" {
		sessionName = "taskhub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("ttl", ttl))

	return &SessionManager{store: store, name: sessionName, logger: logger}, nil
}

// SetUserFetcher enables per-request revalidation of the session user.
// Optional; without it the cookie contents are trusted until expiry.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) {
	sm.fetcher = f
}

// SignIn records the user in the session cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userNameK] = u.Name
	sess.Values[userEmailK] = u.Email
	return sess.Save(r, w)
}

// SignOut clears the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser injects the user into context if they are signed in.
// When a fetcher is configured, the user is re-read from the database so
// disabled or deleted accounts stop working immediately, and name/email
// edits show up without a fresh login.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sm.store.Get(r, sm.name)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			u := &SessionUser{
				ID:    getString(sess, userIDKey),
				Name:  getString(sess, userNameK),
				Email: getString(sess, userEmailK),
			}
			if sm.fetcher != nil {
				fresh, err := sm.fetcher.FetchSessionUser(r.Context(), u.ID)
				switch {
				case err != nil:
					sm.logger.Warn("session user fetch failed; using cookie values",
						zap.String("user_id", u.ID), zap.Error(err))
				case fresh == nil:
					u = nil
				default:
					u = fresh
				}
			}
			if u != nil {
				r = withUser(r, u)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login?return=...
//   - HTML: 303 redirect to /login?return=...
//   - API:  401 Unauthorized with a plain error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		ret := url.QueryEscape(currentURI(r))

		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", "/login?return="+ret)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if wantsHTML(r) {
			http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
			return
		}

		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects a session user into the request context.
// Test helper only; production code goes through LoadSessionUser.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func wantsHTML(r *http.Request) bool {
	// Very light heuristic: treat it as HTML if it's HTMX or Accepts text/html.
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

func currentURI(r *http.Request) string {
	// Preserve path + query as a return param.
	u := *r.URL
	return u.RequestURI()
}
