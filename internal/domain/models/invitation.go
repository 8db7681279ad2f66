// internal/domain/models/invitation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation scope types.
const (
	InviteScopeWorkspace = "workspace"
	InviteScopeProject   = "project"
)

// Invitation statuses. Pending transitions to accepted or rejected; both
// are terminal. There is no stored "expired" status — a pending invitation
// whose expires_at has passed simply stops matching the pending filters and
// becomes permanently unselectable.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRejected = "rejected"
)

// Invitation is a token-bearing offer to join a workspace or project.
//
// At most one pending, unexpired invitation exists per
// (scope_type, scope_id, email); re-inviting while one is pending updates
// the existing document in place. Invitations are never hard-deleted —
// terminal rows remain as an audit trail.
type Invitation struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	ScopeType string             `bson:"scope_type" json:"scope_type"` // "workspace" | "project"
	ScopeID   primitive.ObjectID `bson:"scope_id" json:"scope_id"`

	Email           string             `bson:"email" json:"email"`
	InvitedByUserID primitive.ObjectID `bson:"invited_by_user_id" json:"invited_by_user_id"`

	// RoleID is set for project invitations (the project role the invitee
	// will hold) and for workspace invitations carries no meaning — the
	// workspace role to grant is stored in Role.
	RoleID *primitive.ObjectID `bson:"role_id,omitempty" json:"role_id,omitempty"`

	// Role is the workspace role to grant on accept ("admin" | "member").
	// Empty for project invitations.
	Role string `bson:"role,omitempty" json:"role,omitempty"`

	// Message is an optional note from the inviter, sanitized before storage.
	Message string `bson:"message,omitempty" json:"message,omitempty"`

	// Token is a crypto-random opaque string, globally unique.
	Token string `bson:"token" json:"-"`

	Status string `bson:"status" json:"status"`

	ExpiresAt  time.Time  `bson:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsPending reports whether the invitation is pending and unexpired at the
// given instant.
func (i Invitation) IsPending(now time.Time) bool {
	return i.Status == InviteStatusPending && now.Before(i.ExpiresAt)
}
