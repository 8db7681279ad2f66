// Package hierarchypolicy enforces the containment rule: a user may only
// hold project membership while they hold live membership in the project's
// parent workspace.
//
// The guard runs at project-invite time and again at accept time — the
// workspace roster can change between the two, so passing the first check
// never guarantees the second.
package hierarchypolicy

import (
	"context"
	"errors"

	"github.com/taskhubapp/taskhub/internal/app/policy/rolepolicy"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrViolation is returned when an operation would create project
// membership for a user without workspace membership.
var ErrViolation = errors.New("user is not a member of the project's workspace")

// WorkspaceResolver is the slice of rolepolicy the guard needs.
type WorkspaceResolver interface {
	Workspace(ctx context.Context, workspaceID, userID primitive.ObjectID) (rolepolicy.WorkspaceAccess, error)
}

// Guard checks hierarchy constraints before membership-granting writes.
type Guard struct {
	resolver WorkspaceResolver
}

func New(resolver WorkspaceResolver) *Guard {
	return &Guard{resolver: resolver}
}

// CheckProjectMembership verifies the user holds live workspace membership
// (any role, owner included) in the given workspace. Returns ErrViolation
// when they do not, and rolepolicy's zero-access result also covers the
// workspace having been deleted.
func (g *Guard) CheckProjectMembership(ctx context.Context, workspaceID, userID primitive.ObjectID) error {
	access, err := g.resolver.Workspace(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !access.Found() || !access.HasAccess() {
		return ErrViolation
	}
	return nil
}
