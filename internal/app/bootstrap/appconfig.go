// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS,
// logging, CORS). AppConfig is everything specific to TaskHub: the
// database, sessions, mail, invitations, audit switches, and OAuth.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // secret for signing session cookies; must be strong in production
	SessionName   string
	SessionDomain string // blank means current host
	SessionTTL    time.Duration

	// Email/SMTP configuration
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// BaseURL is used for invitation links and OAuth callbacks,
	// e.g. "https://taskhub.app" or "http://localhost:3000".
	BaseURL  string
	SiteName string

	// InviteTTL is how long invitations stay acceptable.
	InviteTTL time.Duration

	// Audit logging switches per event family:
	// "all" (db+log), "db", "log", or "off".
	AuditLogAuth      string
	AuditLogWorkspace string
	AuditLogProject   string
	AuditLogInvite    string

	// Google OAuth configuration
	GoogleClientID     string
	GoogleClientSecret string
}
