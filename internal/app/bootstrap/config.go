// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/taskhubapp/taskhub/internal/app/invites"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for TaskHub. They are loaded
// via WAFFLE's config system with support for config files, environment
// variables (TASKHUB_MONGO_URI, TASKHUB_SESSION_KEY, …), and command-line
// flags, merged with precedence flags > env > files > defaults.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "taskhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "taskhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_ttl", Default: "720h", Desc: "Session lifetime (e.g., 720h, 24h)"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@taskhub.app", Desc: "From email address"},
	{Name: "mail_from_name", Default: "TaskHub", Desc: "From display name"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for invitation links and OAuth callbacks"},
	{Name: "site_name", Default: "TaskHub", Desc: "Display name used in email subjects"},

	{Name: "invite_ttl", Default: "168h", Desc: "Invitation lifetime (e.g., 168h for 7 days)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_workspace", Default: "all", Desc: "Workspace event logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_log_project", Default: "all", Desc: "Project event logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_log_invite", Default: "all", Desc: "Invitation event logging: 'all', 'db', 'log', or 'off'"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},
}

// LoadConfig loads WAFFLE core config and app-specific config. It runs
// early in startup so both layers are available before any backends or
// handlers are built.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TASKHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionTTL:    appValues.Duration("session_ttl", 30*24*time.Hour),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		BaseURL:  appValues.String("base_url"),
		SiteName: appValues.String("site_name"),

		InviteTTL: appValues.Duration("invite_ttl", invites.DefaultTTL),

		AuditLogAuth:      appValues.String("audit_log_auth"),
		AuditLogWorkspace: appValues.String("audit_log_workspace"),
		AuditLogProject:   appValues.String("audit_log_project"),
		AuditLogInvite:    appValues.String("audit_log_invite"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig enforces invariants that would otherwise surface as
// confusing runtime failures.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 characters")
	}
	if appCfg.InviteTTL <= 0 {
		return fmt.Errorf("invite_ttl must be positive")
	}
	return nil
}
