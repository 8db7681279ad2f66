// internal/app/features/errors/map.go
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/taskhubapp/taskhub/internal/app/invites"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/hierarchypolicy"
	"github.com/taskhubapp/taskhub/internal/app/store/invitations"
	"github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	"github.com/taskhubapp/taskhub/internal/app/store/projectroles"
	"github.com/taskhubapp/taskhub/internal/app/store/projects"
	"github.com/taskhubapp/taskhub/internal/app/store/users"
	"github.com/taskhubapp/taskhub/internal/app/store/workspacemembers"
	"github.com/taskhubapp/taskhub/internal/app/store/workspaces"
	"go.uber.org/zap"
)

// FromDomain translates a sentinel from the policy, ledger, or store
// layers into the matching HTTP error response. Anything unrecognized is
// treated as an internal error and logged.
func FromDomain(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case stderrors.Is(err, authzpolicy.ErrForbidden):
		Forbidden(w, "")
	case stderrors.Is(err, invites.ErrNotInvitee):
		Forbidden(w, "this invitation was sent to a different address")

	case stderrors.Is(err, authzpolicy.ErrNotFound),
		stderrors.Is(err, invites.ErrNotFound),
		stderrors.Is(err, invitations.ErrNotFound),
		stderrors.Is(err, userstore.ErrNotFound),
		stderrors.Is(err, workspacestore.ErrNotFound),
		stderrors.Is(err, workspacemembers.ErrNotFound),
		stderrors.Is(err, projectstore.ErrNotFound),
		stderrors.Is(err, projectroles.ErrNotFound),
		stderrors.Is(err, projectmembers.ErrNotFound):
		NotFound(w, "")

	case stderrors.Is(err, invites.ErrExpired):
		Write(w, http.StatusGone, "expired", "this invitation has expired")

	case stderrors.Is(err, invites.ErrAlreadyProcessed):
		Conflict(w, "already_processed", "this invitation was already accepted or rejected")
	case stderrors.Is(err, invites.ErrAlreadyMember),
		stderrors.Is(err, workspacemembers.ErrDuplicateMembership),
		stderrors.Is(err, projectmembers.ErrDuplicateMembership):
		Conflict(w, "already_member", "already a member of this scope")
	case stderrors.Is(err, userstore.ErrDuplicateEmail):
		Conflict(w, "duplicate_email", "an account with this email already exists")
	case stderrors.Is(err, projectroles.ErrDuplicateName):
		Conflict(w, "duplicate_name", "a role with this name already exists in the project")

	case stderrors.Is(err, projectroles.ErrSystemRole):
		Unprocessable(w, "invalid_state", "the system Admin role cannot be modified or deleted")
	case stderrors.Is(err, invites.ErrInvalidState):
		Unprocessable(w, "invalid_state", err.Error())
	case stderrors.Is(err, invites.ErrInvalidEmail):
		Unprocessable(w, "invalid_email", "the email address is not valid")
	case stderrors.Is(err, invites.ErrUserNotRegistered):
		Unprocessable(w, "user_not_registered", "project invitations require a registered account")
	case stderrors.Is(err, hierarchypolicy.ErrViolation):
		Unprocessable(w, "hierarchy_violation", "the user is not a member of the parent workspace")

	default:
		Internal(w, logger, err)
	}
}
