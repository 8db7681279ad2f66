// Package invites owns the invitation lifecycle: issuing, accepting, and
// rejecting offers to join workspaces and projects.
//
// State machine: pending -> accepted | rejected, one transition ever, taken
// with a conditional update so two racing accepts resolve to one winner and
// one ErrAlreadyProcessed. Expiry is lazy — a pending invitation past its
// expires_at is reported as ErrExpired on use and is recycled in place by
// the next re-invite.
//
// Acceptance and the membership write happen inside one transaction, and
// the workspace-containment guard re-runs at accept time: an invitation
// issued while the invitee was a workspace member does not survive their
// removal.
package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/pantry/validate"
	"github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	"github.com/taskhubapp/taskhub/internal/app/store/workspacemembers"
	"github.com/taskhubapp/taskhub/internal/app/system/htmlsanitize"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultTTL is how long a fresh or refreshed invitation stays acceptable.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrNotFound is returned when no invitation matches, or when the
	// invited-to scope no longer exists.
	ErrNotFound = errors.New("invitation not found")
	// ErrExpired is returned when the invitation's expiry has passed.
	ErrExpired = errors.New("invitation has expired")
	// ErrAlreadyProcessed is returned when the invitation was already
	// accepted or rejected, including by a concurrent request.
	ErrAlreadyProcessed = errors.New("invitation has already been processed")
	// ErrAlreadyMember is returned when the invitee already holds the
	// membership the invitation would grant.
	ErrAlreadyMember = errors.New("user is already a member")
	// ErrUserNotRegistered is returned for project invitations addressed to
	// an email with no account.
	ErrUserNotRegistered = errors.New("no registered user with this email")
	// ErrNotInvitee is returned when a signed-in user tries to act on an
	// invitation addressed to someone else.
	ErrNotInvitee = errors.New("invitation is addressed to a different user")
	// ErrInvalidState is returned when the invitation cannot be issued or
	// honored as specified (bad role, personal workspace, role deleted).
	ErrInvalidState = errors.New("invalid invitation state")
	// ErrInvalidEmail is returned for syntactically invalid addresses.
	ErrInvalidEmail = errors.New("invalid email address")
)

// InvitationStore persists invitation documents.
type InvitationStore interface {
	UpsertPending(ctx context.Context, inv models.Invitation, ttl time.Duration, now time.Time) (models.Invitation, error)
	FindByToken(ctx context.Context, token string) (*models.Invitation, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invitation, error)
	MarkAccepted(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	MarkRejected(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	ListPendingForEmail(ctx context.Context, email string, now time.Time) ([]models.Invitation, error)
	ListPendingForScope(ctx context.Context, scopeType string, scopeID primitive.ObjectID, now time.Time) ([]models.Invitation, error)
	ListByScope(ctx context.Context, scopeType string, scopeID primitive.ObjectID) ([]models.Invitation, error)
}

// UserStore resolves invitee accounts. nil means not registered.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// WorkspaceStore looks up live workspaces. nil means gone or deleted.
type WorkspaceStore interface {
	FindActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Workspace, error)
}

// ProjectStore looks up live projects. nil means gone or deleted.
type ProjectStore interface {
	FindActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
}

// ProjectRoleStore looks up role definitions. nil means the role is gone.
type ProjectRoleStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.ProjectRole, error)
}

// WorkspaceMemberStore is the roster surface acceptance writes through.
type WorkspaceMemberStore interface {
	GetActive(ctx context.Context, workspaceID, userID primitive.ObjectID) (*models.WorkspaceMember, error)
	Add(ctx context.Context, m models.WorkspaceMember) (models.WorkspaceMember, error)
	Reactivate(ctx context.Context, workspaceID, userID primitive.ObjectID, role string) (int64, error)
}

// ProjectMemberStore is the project roster surface acceptance writes through.
type ProjectMemberStore interface {
	GetActive(ctx context.Context, projectID, userID primitive.ObjectID) (*models.ProjectMember, error)
	Add(ctx context.Context, m models.ProjectMember) (models.ProjectMember, error)
	Reactivate(ctx context.Context, projectID, userID, roleID primitive.ObjectID) (int64, error)
}

// HierarchyGuard re-checks workspace containment before project membership
// is granted.
type HierarchyGuard interface {
	CheckProjectMembership(ctx context.Context, workspaceID, userID primitive.ObjectID) error
}

// TxnRunner runs fn atomically. The mongo-backed runner uses a
// multi-document transaction; the in-memory runner serializes.
type TxnRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier delivers invitation email. Implementations log their own
// failures; the ledger fires notifications asynchronously and never fails
// an operation over delivery.
type Notifier interface {
	InvitationSent(ctx context.Context, inv models.Invitation)
	InvitationAccepted(ctx context.Context, inv models.Invitation)
	InvitationRejected(ctx context.Context, inv models.Invitation)
}

// Ledger coordinates invitation issue and settlement.
type Ledger struct {
	invitations    InvitationStore
	users          UserStore
	workspaces     WorkspaceStore
	projects       ProjectStore
	roles          ProjectRoleStore
	wsMembers      WorkspaceMemberStore
	projectMembers ProjectMemberStore
	guard          HierarchyGuard
	txn            TxnRunner
	notifier       Notifier
	logger         *zap.Logger

	ttl time.Duration
	now func() time.Time
}

// Option adjusts ledger construction.
type Option func(*Ledger)

// WithTTL overrides the invitation lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) { l.ttl = ttl }
}

// WithClock overrides the time source. Tests use this to cross expiry
// boundaries deterministically.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(
	invitations InvitationStore,
	users UserStore,
	workspaces WorkspaceStore,
	projects ProjectStore,
	roles ProjectRoleStore,
	wsMembers WorkspaceMemberStore,
	projectMembers ProjectMemberStore,
	guard HierarchyGuard,
	txn TxnRunner,
	notifier Notifier,
	logger *zap.Logger,
	opts ...Option,
) *Ledger {
	l := &Ledger{
		invitations:    invitations,
		users:          users,
		workspaces:     workspaces,
		projects:       projects,
		roles:          roles,
		wsMembers:      wsMembers,
		projectMembers: projectMembers,
		guard:          guard,
		txn:            txn,
		notifier:       notifier,
		logger:         logger,
		ttl:            DefaultTTL,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// InviteToWorkspace issues (or refreshes) a pending invitation to join a
// group workspace as admin or member. The caller has already been
// authorized for the workspace.invite action.
func (l *Ledger) InviteToWorkspace(ctx context.Context, ws models.Workspace, inviter models.User, email, role, message string) (models.Invitation, error) {
	if ws.IsPersonal() {
		return models.Invitation{}, fmt.Errorf("%w: personal workspaces do not take invitations", ErrInvalidState)
	}

	email = normalize.Email(email)
	if !validate.SimpleEmailValid(email) {
		return models.Invitation{}, ErrInvalidEmail
	}

	role = normalize.Role(role)
	switch role {
	case models.WorkspaceRoleAdmin, models.WorkspaceRoleMember:
	default:
		// Ownership is transferred, never granted by invitation.
		return models.Invitation{}, fmt.Errorf("%w: invitation role must be admin or member", ErrInvalidState)
	}

	// Refuse up front when the address already belongs to a member. An
	// unregistered address is fine for workspace invitations; the account
	// check happens at accept time.
	invitee, err := l.users.FindByEmail(ctx, email)
	if err != nil {
		return models.Invitation{}, err
	}
	if invitee != nil {
		already, err := l.holdsWorkspaceMembership(ctx, ws, invitee.ID)
		if err != nil {
			return models.Invitation{}, err
		}
		if already {
			return models.Invitation{}, ErrAlreadyMember
		}
	}

	inv, err := l.invitations.UpsertPending(ctx, models.Invitation{
		ScopeType:       models.InviteScopeWorkspace,
		ScopeID:         ws.ID,
		Email:           email,
		InvitedByUserID: inviter.ID,
		Role:            role,
		Message:         htmlsanitize.Sanitize(message),
	}, l.ttl, l.now())
	if err != nil {
		return models.Invitation{}, err
	}

	l.notifyAsync(func(ctx context.Context) { l.notifier.InvitationSent(ctx, inv) })
	return inv, nil
}

// InviteToProject issues (or refreshes) a pending invitation to join a
// project under a given role. Project invitations are restricted to
// registered users who already belong to the project's workspace.
func (l *Ledger) InviteToProject(ctx context.Context, p models.Project, inviter models.User, email string, roleID primitive.ObjectID, message string) (models.Invitation, error) {
	email = normalize.Email(email)
	if !validate.SimpleEmailValid(email) {
		return models.Invitation{}, ErrInvalidEmail
	}

	invitee, err := l.users.FindByEmail(ctx, email)
	if err != nil {
		return models.Invitation{}, err
	}
	if invitee == nil {
		return models.Invitation{}, ErrUserNotRegistered
	}

	if err := l.guard.CheckProjectMembership(ctx, p.WorkspaceID, invitee.ID); err != nil {
		return models.Invitation{}, err
	}

	role, err := l.roles.FindByID(ctx, roleID)
	if err != nil {
		return models.Invitation{}, err
	}
	if role == nil || role.ProjectID != p.ID {
		return models.Invitation{}, fmt.Errorf("%w: role does not belong to this project", ErrInvalidState)
	}

	m, err := l.projectMembers.GetActive(ctx, p.ID, invitee.ID)
	if err != nil {
		return models.Invitation{}, err
	}
	if m != nil || p.CreatorUserID == invitee.ID {
		return models.Invitation{}, ErrAlreadyMember
	}

	inv, err := l.invitations.UpsertPending(ctx, models.Invitation{
		ScopeType:       models.InviteScopeProject,
		ScopeID:         p.ID,
		Email:           email,
		InvitedByUserID: inviter.ID,
		RoleID:          &roleID,
		Message:         htmlsanitize.Sanitize(message),
	}, l.ttl, l.now())
	if err != nil {
		return models.Invitation{}, err
	}

	l.notifyAsync(func(ctx context.Context) { l.notifier.InvitationSent(ctx, inv) })
	return inv, nil
}

// Accept settles an invitation for the signed-in user and grants the
// membership it carries. The invitation flip and the roster write commit
// together; on any refusal the invitation is left untouched.
func (l *Ledger) Accept(ctx context.Context, token string, user models.User) (models.Invitation, error) {
	inv, err := l.loadForSettlement(ctx, token, user)
	if err != nil {
		return models.Invitation{}, err
	}

	now := l.now()
	switch inv.ScopeType {
	case models.InviteScopeWorkspace:
		err = l.acceptWorkspace(ctx, inv, user, now)
	case models.InviteScopeProject:
		err = l.acceptProject(ctx, inv, user, now)
	default:
		err = fmt.Errorf("%w: unknown scope type %q", ErrInvalidState, inv.ScopeType)
	}
	if err != nil {
		return models.Invitation{}, err
	}

	inv.Status = models.InviteStatusAccepted
	at := now.UTC()
	inv.AcceptedAt = &at

	accepted := *inv
	l.notifyAsync(func(ctx context.Context) { l.notifier.InvitationAccepted(ctx, accepted) })
	return accepted, nil
}

func (l *Ledger) acceptWorkspace(ctx context.Context, inv *models.Invitation, user models.User, now time.Time) error {
	ws, err := l.workspaces.FindActiveByID(ctx, inv.ScopeID)
	if err != nil {
		return err
	}
	if ws == nil {
		// Workspace deleted after the invitation went out.
		return ErrNotFound
	}

	already, err := l.holdsWorkspaceMembership(ctx, *ws, user.ID)
	if err != nil {
		return err
	}
	if already {
		return ErrAlreadyMember
	}

	return l.txn.Run(ctx, func(txCtx context.Context) error {
		if err := l.settle(txCtx, inv.ID, now, l.invitations.MarkAccepted); err != nil {
			return err
		}
		return l.grantWorkspaceMembership(txCtx, ws.ID, user.ID, inv.Role)
	})
}

func (l *Ledger) acceptProject(ctx context.Context, inv *models.Invitation, user models.User, now time.Time) error {
	p, err := l.projects.FindActiveByID(ctx, inv.ScopeID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNotFound
	}

	// Containment re-check: the invitee may have left (or been removed
	// from) the workspace since the invitation was issued.
	if err := l.guard.CheckProjectMembership(ctx, p.WorkspaceID, user.ID); err != nil {
		return err
	}

	if inv.RoleID == nil {
		return fmt.Errorf("%w: project invitation carries no role", ErrInvalidState)
	}
	role, err := l.roles.FindByID(ctx, *inv.RoleID)
	if err != nil {
		return err
	}
	if role == nil || role.ProjectID != p.ID {
		return fmt.Errorf("%w: invitation role no longer exists", ErrInvalidState)
	}

	m, err := l.projectMembers.GetActive(ctx, p.ID, user.ID)
	if err != nil {
		return err
	}
	if m != nil {
		return ErrAlreadyMember
	}

	return l.txn.Run(ctx, func(txCtx context.Context) error {
		if err := l.settle(txCtx, inv.ID, now, l.invitations.MarkAccepted); err != nil {
			return err
		}
		return l.grantProjectMembership(txCtx, p.WorkspaceID, p.ID, user.ID, role.ID)
	})
}

// Reject settles an invitation as declined. No membership is written; the
// terminal row stays behind as history.
func (l *Ledger) Reject(ctx context.Context, token string, user models.User) (models.Invitation, error) {
	inv, err := l.loadForSettlement(ctx, token, user)
	if err != nil {
		return models.Invitation{}, err
	}

	if err := l.settle(ctx, inv.ID, l.now(), l.invitations.MarkRejected); err != nil {
		return models.Invitation{}, err
	}

	inv.Status = models.InviteStatusRejected
	rejected := *inv
	l.notifyAsync(func(ctx context.Context) { l.notifier.InvitationRejected(ctx, rejected) })
	return rejected, nil
}

// Find loads an invitation by ID so callers can authorize against its scope.
func (l *Ledger) Find(ctx context.Context, id primitive.ObjectID) (models.Invitation, error) {
	inv, err := l.invitations.FindByID(ctx, id)
	if err != nil {
		return models.Invitation{}, err
	}
	if inv == nil {
		return models.Invitation{}, ErrNotFound
	}
	return *inv, nil
}

// Cancel withdraws a pending invitation. The caller has already been
// verified as the original inviter or authorized for the scope's invite
// action. The row settles as rejected and stays behind as history; the
// invitee is not notified of a withdrawal.
func (l *Ledger) Cancel(ctx context.Context, invitationID primitive.ObjectID) (models.Invitation, error) {
	inv, err := l.invitations.FindByID(ctx, invitationID)
	if err != nil {
		return models.Invitation{}, err
	}
	if inv == nil {
		return models.Invitation{}, ErrNotFound
	}
	if inv.Status != models.InviteStatusPending {
		return models.Invitation{}, ErrInvalidState
	}
	now := l.now()
	if !now.Before(inv.ExpiresAt) {
		return models.Invitation{}, ErrExpired
	}

	ok, err := l.invitations.MarkRejected(ctx, invitationID, now)
	if err != nil {
		return models.Invitation{}, err
	}
	if !ok {
		// Lost a race with an accept or another cancel.
		return models.Invitation{}, ErrAlreadyProcessed
	}

	inv.Status = models.InviteStatusRejected
	inv.UpdatedAt = now
	return *inv, nil
}

// PendingForUser lists the live invitations addressed to the user's email.
func (l *Ledger) PendingForUser(ctx context.Context, user models.User) ([]models.Invitation, error) {
	return l.invitations.ListPendingForEmail(ctx, user.Email, l.now())
}

// PendingForScope lists the live invitations outstanding for a scope,
// newest first. Settled and expired rows are excluded.
func (l *Ledger) PendingForScope(ctx context.Context, scopeType string, scopeID primitive.ObjectID) ([]models.Invitation, error) {
	return l.invitations.ListPendingForScope(ctx, scopeType, scopeID, l.now())
}

// HistoryForScope lists every invitation ever issued for a scope, newest
// first, for admin views.
func (l *Ledger) HistoryForScope(ctx context.Context, scopeType string, scopeID primitive.ObjectID) ([]models.Invitation, error) {
	return l.invitations.ListByScope(ctx, scopeType, scopeID)
}

// loadForSettlement fetches an invitation by token and verifies the caller
// is its addressee and that it is still live.
func (l *Ledger) loadForSettlement(ctx context.Context, token string, user models.User) (*models.Invitation, error) {
	inv, err := l.invitations.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrNotFound
	}
	if inv.Email != normalize.Email(user.Email) {
		return nil, ErrNotInvitee
	}
	if inv.Status != models.InviteStatusPending {
		return nil, ErrAlreadyProcessed
	}
	if !l.now().Before(inv.ExpiresAt) {
		return nil, ErrExpired
	}
	return inv, nil
}

// settle performs the conditional pending -> terminal flip and classifies a
// miss: a concurrent settlement shows as ErrAlreadyProcessed, a crossed
// expiry boundary as ErrExpired.
func (l *Ledger) settle(ctx context.Context, id primitive.ObjectID, now time.Time, mark func(context.Context, primitive.ObjectID, time.Time) (bool, error)) error {
	ok, err := mark(ctx, id, now)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	cur, err := l.invitations.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return ErrNotFound
	}
	if cur.Status != models.InviteStatusPending {
		return ErrAlreadyProcessed
	}
	return ErrExpired
}

func (l *Ledger) holdsWorkspaceMembership(ctx context.Context, ws models.Workspace, userID primitive.ObjectID) (bool, error) {
	if ws.OwnerUserID == userID {
		return true, nil
	}
	m, err := l.wsMembers.GetActive(ctx, ws.ID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// grantWorkspaceMembership inserts a roster row, reviving a soft-deleted
// one when the user had been a member before. Losing both paths to a
// concurrent write means someone else granted the membership first.
func (l *Ledger) grantWorkspaceMembership(ctx context.Context, workspaceID, userID primitive.ObjectID, role string) error {
	_, err := l.wsMembers.Add(ctx, models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
	})
	if err == nil {
		return nil
	}
	if !isDuplicate(err) {
		return err
	}
	n, err := l.wsMembers.Reactivate(ctx, workspaceID, userID, role)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyMember
	}
	return nil
}

func (l *Ledger) grantProjectMembership(ctx context.Context, workspaceID, projectID, userID, roleID primitive.ObjectID) error {
	_, err := l.projectMembers.Add(ctx, models.ProjectMember{
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		UserID:      userID,
		RoleID:      roleID,
	})
	if err == nil {
		return nil
	}
	if !isDuplicate(err) {
		return err
	}
	n, err := l.projectMembers.Reactivate(ctx, projectID, userID, roleID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// notifyAsync runs a notification off the request path. Delivery failures
// are the notifier's to log; a panic here must not take the process down.
func (l *Ledger) notifyAsync(fn func(ctx context.Context)) {
	if l.notifier == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("invitation notifier panicked", zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		fn(ctx)
	}()
}

// isDuplicate reports whether a roster Add failed on the unique
// (scope, user) index.
func isDuplicate(err error) bool {
	return errors.Is(err, workspacemembers.ErrDuplicateMembership) ||
		errors.Is(err, projectmembers.ErrDuplicateMembership)
}
