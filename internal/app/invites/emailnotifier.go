// internal/app/invites/emailnotifier.go
package invites

import (
	"context"
	"fmt"
	"time"

	"github.com/taskhubapp/taskhub/internal/app/system/htmlsanitize"
	"github.com/taskhubapp/taskhub/internal/app/system/mailer"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserDirectory resolves accounts by ID for notification addressing.
type UserDirectory interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// EmailNotifier delivers invitation email via the SMTP mailer.
// It resolves display names at send time so the email reflects renames
// that happened after the invitation was issued.
type EmailNotifier struct {
	mail       *mailer.Mailer
	users      UserDirectory
	workspaces WorkspaceStore
	projects   ProjectStore
	logger     *zap.Logger

	siteName string
	baseURL  string // e.g. https://taskhub.app, no trailing slash
	ttl      time.Duration
}

// NewEmailNotifier builds an EmailNotifier. ttl is only used for the
// "expires in" wording; actual expiry lives on the invitation.
func NewEmailNotifier(mail *mailer.Mailer, users UserDirectory, workspaces WorkspaceStore, projects ProjectStore, siteName, baseURL string, ttl time.Duration, logger *zap.Logger) *EmailNotifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EmailNotifier{
		mail:       mail,
		users:      users,
		workspaces: workspaces,
		projects:   projects,
		logger:     logger,
		siteName:   siteName,
		baseURL:    baseURL,
		ttl:        ttl,
	}
}

// InvitationSent emails the invitee a link to view the invitation.
func (n *EmailNotifier) InvitationSent(ctx context.Context, inv models.Invitation) {
	scopeName, ok := n.scopeName(ctx, inv)
	if !ok {
		return
	}

	inviter := "A workspace member"
	if u, err := n.users.GetByID(ctx, inv.InvitedByUserID); err == nil {
		inviter = u.FullName
	}

	email := mailer.BuildInvitationEmail(mailer.InvitationEmailData{
		SiteName:    n.siteName,
		InviterName: inviter,
		ScopeType:   inv.ScopeType,
		ScopeName:   scopeName,
		Message:     htmlsanitize.PrepareForDisplay(inv.Message),
		AcceptURL:   fmt.Sprintf("%s/invitations/%s", n.baseURL, inv.Token),
		ExpiresIn:   humanDuration(n.ttl),
	})
	email.To = inv.Email

	if err := n.mail.Send(email); err != nil {
		n.logger.Warn("invitation email not delivered",
			zap.String("invitation_id", inv.ID.Hex()),
			zap.Error(err))
	}
}

// InvitationAccepted notifies the inviter that the invitee joined.
func (n *EmailNotifier) InvitationAccepted(ctx context.Context, inv models.Invitation) {
	n.notifyInviter(ctx, inv, "accepted")
}

// InvitationRejected notifies the inviter that the invitee declined.
func (n *EmailNotifier) InvitationRejected(ctx context.Context, inv models.Invitation) {
	n.notifyInviter(ctx, inv, "declined")
}

func (n *EmailNotifier) notifyInviter(ctx context.Context, inv models.Invitation, verb string) {
	inviter, err := n.users.GetByID(ctx, inv.InvitedByUserID)
	if err != nil {
		n.logger.Warn("inviter lookup failed for settlement notice",
			zap.String("invitation_id", inv.ID.Hex()),
			zap.Error(err))
		return
	}
	scopeName, ok := n.scopeName(ctx, inv)
	if !ok {
		return
	}

	email := mailer.Email{
		To:      inviter.Email,
		Subject: fmt.Sprintf("%s %s your invitation to %q", inv.Email, verb, scopeName),
		TextBody: fmt.Sprintf("%s %s your invitation to join the %s %q on %s.\n",
			inv.Email, verb, inv.ScopeType, scopeName, n.siteName),
	}
	if err := n.mail.Send(email); err != nil {
		n.logger.Warn("settlement notice not delivered",
			zap.String("invitation_id", inv.ID.Hex()),
			zap.Error(err))
	}
}

func (n *EmailNotifier) scopeName(ctx context.Context, inv models.Invitation) (string, bool) {
	switch inv.ScopeType {
	case models.InviteScopeWorkspace:
		ws, err := n.workspaces.FindActiveByID(ctx, inv.ScopeID)
		if err != nil || ws == nil {
			return "", false
		}
		return ws.Name, true
	case models.InviteScopeProject:
		p, err := n.projects.FindActiveByID(ctx, inv.ScopeID)
		if err != nil || p == nil {
			return "", false
		}
		return p.Name, true
	}
	return "", false
}

func humanDuration(d time.Duration) string {
	if days := int(d.Hours() / 24); days >= 1 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours <= 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
