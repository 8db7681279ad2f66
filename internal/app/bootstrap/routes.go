// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	authgooglefeature "github.com/taskhubapp/taskhub/internal/app/features/authgoogle"
	healthfeature "github.com/taskhubapp/taskhub/internal/app/features/health"
	invitationsfeature "github.com/taskhubapp/taskhub/internal/app/features/invitations"
	loginfeature "github.com/taskhubapp/taskhub/internal/app/features/login"
	logoutfeature "github.com/taskhubapp/taskhub/internal/app/features/logout"
	projectsfeature "github.com/taskhubapp/taskhub/internal/app/features/projects"
	workspacesfeature "github.com/taskhubapp/taskhub/internal/app/features/workspaces"
	"github.com/taskhubapp/taskhub/internal/app/invites"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/hierarchypolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/rolepolicy"
	auditstore "github.com/taskhubapp/taskhub/internal/app/store/audit"
	invitationstore "github.com/taskhubapp/taskhub/internal/app/store/invitations"
	"github.com/taskhubapp/taskhub/internal/app/store/oauthstate"
	projectmemberstore "github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	projectrolestore "github.com/taskhubapp/taskhub/internal/app/store/projectroles"
	projectstore "github.com/taskhubapp/taskhub/internal/app/store/projects"
	userstore "github.com/taskhubapp/taskhub/internal/app/store/users"
	wsmemberstore "github.com/taskhubapp/taskhub/internal/app/store/workspacemembers"
	workspacestore "github.com/taskhubapp/taskhub/internal/app/store/workspaces"
	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"github.com/taskhubapp/taskhub/internal/app/system/mailer"
	"github.com/taskhubapp/taskhub/internal/app/system/txn"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. All stores, policies, and the invitation
// ledger are built here once and shared by the feature handlers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.TaskHubMongoDatabase
	client := deps.TaskHubMongoClient

	// Sessions carry only identity; roles are resolved per request so
	// membership changes take effect immediately. The fetcher additionally
	// revalidates the account each request, dropping disabled users.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(
		appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain,
		appCfg.SessionTTL, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	// Stores.
	users := userstore.New(db)
	workspaces := workspacestore.New(db)
	wsMembers := wsmemberstore.New(db)
	projects := projectstore.New(db)
	projectRoles := projectrolestore.New(db)
	projectMembers := projectmemberstore.New(db)
	invitations := invitationstore.New(db)
	states := oauthstate.New(db)

	// Policy layer.
	resolver := rolepolicy.New(workspaces, wsMembers, projects, projectMembers, projectRoles)
	engine := authzpolicy.New(resolver)
	guard := hierarchypolicy.New(resolver)

	// Audit trail.
	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Auth:      appCfg.AuditLogAuth,
		Workspace: appCfg.AuditLogWorkspace,
		Project:   appCfg.AuditLogProject,
		Invite:    appCfg.AuditLogInvite,
	})

	// Invitation ledger with email notification.
	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)
	notifier := invites.NewEmailNotifier(mail, users, workspaces, projects,
		appCfg.SiteName, appCfg.BaseURL, appCfg.InviteTTL, logger)
	ledger := invites.New(invitations, users, workspaces, projects, projectRoles,
		wsMembers, projectMembers, guard, txn.NewRunner(client), notifier, logger,
		invites.WithTTL(appCfg.InviteTTL))

	r := chi.NewRouter()

	// Loads the SessionUser into context when a valid cookie is present.
	r.Use(sessionMgr.LoadSessionUser)

	healthHandler := healthfeature.NewHandler(client, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	loginHandler := loginfeature.NewHandler(users, sessionMgr, audit, logger)
	r.Mount("/", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, audit, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	googleHandler := authgooglefeature.NewHandler(users, sessionMgr, audit, states,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	// Everything below requires a signed-in user; scoped authorization
	// happens inside the handlers through the policy engine.
	r.Group(func(r chi.Router) {
		r.Use(sessionMgr.RequireSignedIn)

		workspacesHandler := workspacesfeature.NewHandler(client, workspaces,
			wsMembers, projects, projectMembers, users, engine, audit, logger)
		r.Mount("/workspaces", workspacesfeature.Routes(workspacesHandler))

		projectsHandler := projectsfeature.NewHandler(client, projects,
			projectRoles, projectMembers, users, engine, guard, audit, logger)
		r.Mount("/projects", projectsfeature.Routes(projectsHandler))

		invitationsHandler := invitationsfeature.NewHandler(ledger, users, engine, audit, logger)
		r.Mount("/invitations", invitationsfeature.Routes(invitationsHandler))
	})

	return r, nil
}
